// Package model defines the locally persisted configuration entities and
// their defaults.
//
// These are the records the store owns. The remote engine only ever sees
// what the compiler derives from them.
package model
