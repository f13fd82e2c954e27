package cryptoutil

import (
	"crypto/rand"
	"errors"
	"io"
)

// SecretProvider produces wallet secrets
type SecretProvider interface {
	GenerateSecret() ([]byte, error)
}

// RandomSecretProvider generates secrets from high-entropy random data.
// The resulting wallet cannot be recreated from anything but the secret
// itself, which makes it the more secure choice.
type RandomSecretProvider struct {
	bits   int
	source io.Reader
}

// NewRandomSecretProvider creates a provider yielding bitsOfEntropy bits per
// secret; zero selects DefaultEntropyBits.
func NewRandomSecretProvider(bitsOfEntropy int) *RandomSecretProvider {
	return &RandomSecretProvider{bits: bitsOfEntropy, source: rand.Reader}
}

// GenerateSecret implements SecretProvider
func (p *RandomSecretProvider) GenerateSecret() ([]byte, error) {
	return randomSecret(p.source, p.bits)
}

// PassphraseSecretProvider derives the secret from a passphrase, so the
// wallet can be recovered by anyone who knows it.
type PassphraseSecretProvider struct {
	passphrase string
}

// NewPassphraseSecretProvider creates a provider for passphrase
func NewPassphraseSecretProvider(passphrase string) *PassphraseSecretProvider {
	return &PassphraseSecretProvider{passphrase: passphrase}
}

// GenerateSecret implements SecretProvider
func (p *PassphraseSecretProvider) GenerateSecret() ([]byte, error) {
	if p.passphrase == "" {
		return nil, errors.New("passphrase is empty")
	}
	return DeriveSecret(p.passphrase), nil
}
