// Package pb is the remote-control client for the Jasmin router and SMPP
// client manager.
//
// Every high-level operation runs inside one session envelope:
//
//	connect (login) -> operation(s) -> [persist] -> disconnect
//
// The disconnect step runs exactly once for every successful connect,
// whether the operation succeeded, failed or panicked. Sessions are never
// kept open between operations.
//
// The transport is abstracted behind Dialer and Session. NetDialer speaks
// the CBOR request/response protocol over TCP; Server is its counterpart,
// used by tests and the mock-engine command.
package pb
