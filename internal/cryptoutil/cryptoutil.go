// Package cryptoutil holds the key derivation and EdDSA primitives behind
// wallet ownership proofs.
package cryptoutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	secretSalt       = "salt"
	secretIterations = 64000
	secretBits       = 512

	// DefaultEntropyBits is the entropy of a random wallet secret
	DefaultEntropyBits = 256
)

// ErrEmptySecret is returned when a key pair is requested for an empty secret
var ErrEmptySecret = errors.New("secret is empty")

// KeyPair is an Ed25519 key pair. It is re-derived from its secret whenever
// needed and never persisted.
type KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// DeriveSecret stretches a seed with PBKDF2-HMAC-SHA512 into a 64-byte
// secret. The same seed always yields the same secret.
func DeriveSecret(seed string) []byte {
	return pbkdf2.Key([]byte(seed), []byte(secretSalt), secretIterations, secretBits/8, sha512.New)
}

// KeyPairFromSecret deterministically derives a key pair. A secret of
// ed25519.SeedSize bytes is used as the seed as is; other lengths are
// reduced with SHA-256 first.
func KeyPairFromSecret(secret []byte) (KeyPair, error) {
	if len(secret) == 0 {
		return KeyPair{}, ErrEmptySecret
	}

	seed := secret
	if len(seed) != ed25519.SeedSize {
		sum := sha256.Sum256(secret)
		seed = sum[:]
	}

	priv := ed25519.NewKeyFromSeed(seed)
	return KeyPair{
		PublicKey:  priv.Public().(ed25519.PublicKey),
		PrivateKey: priv,
	}, nil
}

// Sign produces a deterministic signature of message
func Sign(privateKey, message []byte) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length %d", len(privateKey))
	}
	return ed25519.Sign(ed25519.PrivateKey(privateKey), message), nil
}

// Verify reports whether signature is valid for message under publicKey.
// Malformed keys or signatures yield false.
func Verify(publicKey, signature, message []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

// GenerateRandomSecret returns bitsOfEntropy/8 bytes from crypto/rand. Zero
// selects DefaultEntropyBits.
func GenerateRandomSecret(bitsOfEntropy int) ([]byte, error) {
	return randomSecret(rand.Reader, bitsOfEntropy)
}

func randomSecret(src io.Reader, bitsOfEntropy int) ([]byte, error) {
	if bitsOfEntropy == 0 {
		bitsOfEntropy = DefaultEntropyBits
	}
	if bitsOfEntropy < 0 || bitsOfEntropy%8 != 0 {
		return nil, fmt.Errorf("entropy must be a positive multiple of 8 bits, got %d", bitsOfEntropy)
	}

	secret := make([]byte, bitsOfEntropy/8)
	if _, err := io.ReadFull(src, secret); err != nil {
		return nil, fmt.Errorf("failed to read random secret: %w", err)
	}
	return secret, nil
}
