package store

// Sealer encrypts secrets before they are written and decrypts them after
// they are read.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Unseal(sealed string) (string, error)
}

// PlainSealer stores secrets as given.
type PlainSealer struct{}

func (PlainSealer) Seal(plaintext string) (string, error) { return plaintext, nil }
func (PlainSealer) Unseal(sealed string) (string, error)  { return sealed, nil }
