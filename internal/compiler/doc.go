// Package compiler translates local configuration entities into the
// objects the remote engine's control interface accepts.
//
// Compilation is side-effect free apart from the script checks, which stat
// the file they reference. Every rejection is a *ValidationError raised
// before any remote call is attempted.
package compiler
