// Package hashing computes content hashes of ledger entities over their
// canonical encoding.
package hashing

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/thanhnp/coin-ledger/internal/encoding"
)

// Algorithm names accepted by New
const (
	SHA256  = "sha256"
	SHA256d = "sha256d"
	Blake2b = "blake2b"
	SHA3    = "sha3"
)

// Size is the digest length in bytes of every supported algorithm
const Size = 32

// Provider hashes entities. Implementations must be deterministic and safe
// for concurrent use.
type Provider interface {
	// ComputeHash returns the digest of the entity's hashable encoding
	ComputeHash(e encoding.Hashable) []byte

	// Sum returns the digest of raw bytes
	Sum(data []byte) []byte

	// Name returns the algorithm name
	Name() string
}

// ObjectHashProvider is a Provider backed by a plain digest function.
type ObjectHashProvider struct {
	name string
	sum  func([]byte) []byte
}

// New returns the provider for the named algorithm
func New(name string) (*ObjectHashProvider, error) {
	switch name {
	case SHA256, "":
		return &ObjectHashProvider{name: SHA256, sum: chainhash.HashB}, nil
	case SHA256d:
		return &ObjectHashProvider{name: SHA256d, sum: chainhash.DoubleHashB}, nil
	case Blake2b:
		return &ObjectHashProvider{name: Blake2b, sum: func(b []byte) []byte {
			h := blake2b.Sum256(b)
			return h[:]
		}}, nil
	case SHA3:
		return &ObjectHashProvider{name: SHA3, sum: func(b []byte) []byte {
			h := sha3.Sum256(b)
			return h[:]
		}}, nil
	}
	return nil, fmt.Errorf("unknown hash algorithm: %s", name)
}

// Default returns the SHA-256 provider
func Default() *ObjectHashProvider {
	p, _ := New(SHA256)
	return p
}

// ComputeHash implements Provider
func (p *ObjectHashProvider) ComputeHash(e encoding.Hashable) []byte {
	return p.sum(encoding.MarshalHashable(e))
}

// Sum implements Provider
func (p *ObjectHashProvider) Sum(data []byte) []byte {
	return p.sum(data)
}

// Name implements Provider
func (p *ObjectHashProvider) Name() string {
	return p.name
}
