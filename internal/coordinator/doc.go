// Package coordinator keeps the local store and the remote engine in step.
//
// Every mutation is a small state machine:
//
//	local_pending -> remote_in_flight -> committed | compensated
//
// Creates and enables write locally first and undo the local write when the
// remote call fails. Deletes and disables call the remote engine first and
// touch the local store only after it succeeded, so a failed remote delete
// never drops the local record. When the local side cannot be brought back
// in line the mutation ends in the diverged state and the caller receives a
// *ConsistencyError.
//
// Remote calls run on the engine.Supervisor loop; every exported method is
// a plain blocking call.
package coordinator
