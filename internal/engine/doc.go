// Package engine owns the single background event loop that drives every
// conversation with the remote Jasmin engine.
//
// ARCHITECTURE:
//
// Single Event Loop:
// One Supervisor runs one loop goroutine for the lifetime of the process.
// Foreground goroutines (CLI commands, API handlers, manifest appliers)
// never talk to the remote engine directly. They submit a unit of work and
// block on the returned Future until the loop has executed it.
//
// Unit Processing Flow:
//  1. Submit() stamps the unit with a logical seq and enqueues it (FIFO)
//  2. The loop dequeues units one at a time
//  3. The unit runs with the caller's context, so transport deadlines and
//     cancellation still reach the RPC layer
//  4. The unit's value or error is published to its Future exactly once
//
// A panicking unit never takes the loop down. The panic is recovered at the
// loop boundary and surfaces to the blocked caller as a *PanicError.
//
// Units submitted from inside a running unit execute inline. A nested
// Submit would otherwise wait on the loop that is busy running its parent.
//
// Ordering: units submitted by different goroutines run in arrival order,
// which is not the same as the order the callers started in. Within one
// unit, whatever the unit does (connect, mutate, persist, disconnect) is
// strictly sequential.
package engine
