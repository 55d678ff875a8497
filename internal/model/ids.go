package model

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxGIDLength is the longest group id the engine accepts.
const MaxGIDLength = 16

// NormalizeID turns a human-entered name into an engine identifier:
// diacritics stripped, lowercased, and every character outside
// [a-z0-9_] replaced with '_'.
func NormalizeID(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range strings.ToLower(stripped) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// GroupID normalizes a group name and enforces the length limit.
func GroupID(name string) (string, error) {
	gid := NormalizeID(name)
	if gid == "" {
		return "", fmt.Errorf("group id is empty")
	}
	if len(gid) > MaxGIDLength {
		return "", fmt.Errorf("group id %q is longer than %d characters", gid, MaxGIDLength)
	}
	return gid, nil
}

// ConnectorCID derives a connector id from its type and name. It is set
// once when the connector is created and never changes.
func ConnectorCID(t ConnectorType, name string) string {
	prefix := "smppc_"
	if t == ConnectorHTTP {
		prefix = "http_"
	}
	return prefix + NormalizeID(name)
}
