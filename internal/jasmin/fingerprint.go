package jasmin

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/roach88/quark/internal/codec"
)

// fingerprintKey is the BLAKE3 key for rule fingerprints: the ASCII domain
// name zero-padded to 32 bytes. Changing it invalidates every stored digest.
var fingerprintKey = [32]byte{
	'q', 'u', 'a', 'r', 'k', '.', 'j', 'a', 's', 'm', 'i', 'n', '.',
	'r', 'u', 'l', 'e', '.', 'v', '1',
}

// Fingerprint returns the hex BLAKE3 keyed hash of the deterministic CBOR
// encoding of a wire value. Two rules with the same fingerprint compile to
// the same engine object.
func Fingerprint(wire any) (string, error) {
	data, err := codec.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("fingerprint: encoding: %w", err)
	}
	h, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
