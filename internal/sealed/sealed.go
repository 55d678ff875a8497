// Package sealed encrypts stored secrets with age.
//
// Sealed values are "age:" followed by the base64 ciphertext, encrypted to
// the recipient of an X25519 identity. Values without the prefix are
// returned unchanged by Unseal, so a database written before sealing was
// configured stays readable.
package sealed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
)

// Prefix marks a sealed value.
const Prefix = "age:"

// Sealer encrypts to its identity's recipient and decrypts with the
// identity. It implements store.Sealer.
type Sealer struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// New creates a sealer from an AGE-SECRET-KEY-1... string.
func New(privateKey string) (*Sealer, error) {
	identity, err := age.ParseX25519Identity(strings.TrimSpace(privateKey))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return &Sealer{identity: identity, recipient: identity.Recipient()}, nil
}

// Load reads an identity file as written by age-keygen or
// GenerateIdentityFile.
func Load(path string) (*Sealer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening identity file: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parsing identity file %s: %w", path, err)
	}
	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			return &Sealer{identity: x, recipient: x.Recipient()}, nil
		}
	}
	return nil, fmt.Errorf("identity file %s holds no X25519 identity", path)
}

// GenerateIdentityFile writes a new identity to path with mode 0600 and
// returns its public recipient. An existing file is never overwritten.
func GenerateIdentityFile(path string) (string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating age identity: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating identity file: %w", err)
	}
	defer f.Close()

	recipient := identity.Recipient().String()
	if _, err := fmt.Fprintf(f, "# public key: %s\n%s\n", recipient, identity.String()); err != nil {
		return "", fmt.Errorf("writing identity file: %w", err)
	}
	return recipient, nil
}

// Recipient returns the public key values are sealed to.
func (s *Sealer) Recipient() string {
	return s.recipient.String()
}

// Seal encrypts plaintext. The empty string stays empty.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}
	return Prefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Unseal decrypts a sealed value. Unsealed input is returned as is.
func (s *Sealer) Unseal(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", fmt.Errorf("decoding base64 ciphertext: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), s.identity)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	return string(plaintext), nil
}

// IsSealed reports whether value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, Prefix)
}
