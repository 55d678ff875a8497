// Package testutil provides an in-memory stand-in for the remote SMS
// engine.
//
// FakeEngine implements pb.Dialer directly, for unit tests, and can also
// register its operations on a pb.Server, which is how the mock-engine
// command serves it over TCP. Both paths share the same handlers and
// state, so behavior seen in tests is the behavior seen on the wire.
package testutil
