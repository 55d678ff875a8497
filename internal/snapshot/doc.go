// Package snapshot caches the last successful bulk read of each remote
// table, so reads can degrade to a recent view when the engine is
// unreachable.
//
// Values are stored CBOR-encoded, optionally compressed, behind a small
// header:
//
//	byte 0     compression tag
//	bytes 1-4  uncompressed length, big endian
//	bytes 5-   payload
//
// Memory keeps entries in process; Redis shares them between processes.
package snapshot
