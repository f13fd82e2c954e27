// Package wallet keeps the key pairs a user signs with and renders their
// addresses for display.
package wallet

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/thanhnp/coin-ledger/internal/cryptoutil"
)

// ErrUnknownAddress is returned for an address the wallet holds no key for
var ErrUnknownAddress = errors.New("address does not belong to wallet")

type walletKey struct {
	secret []byte
	keys   cryptoutil.KeyPair
}

// Wallet is a deterministic chain of key pairs grown from one secret. The
// first address is derived from the secret and each later one from the
// seed of the key before it.
type Wallet struct {
	ID string

	mu     sync.RWMutex
	secret []byte
	keys   []walletKey
}

// New creates an empty wallet whose secret comes from provider
func New(provider cryptoutil.SecretProvider) (*Wallet, error) {
	secret, err := provider.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate wallet secret: %w", err)
	}
	return &Wallet{ID: uuid.NewV4().String(), secret: secret}, nil
}

// GenerateAddress derives the next key pair and returns its address
func (w *Wallet) GenerateAddress() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	seed := w.secret
	if n := len(w.keys); n > 0 {
		seed = w.keys[n-1].keys.PrivateKey.Seed()
	}

	kp, err := cryptoutil.KeyPairFromSecret(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key pair: %w", err)
	}
	w.keys = append(w.keys, walletKey{secret: seed, keys: kp})
	return []byte(kp.PublicKey), nil
}

// Addresses lists the wallet's addresses in the order they were generated
func (w *Wallet) Addresses() [][]byte {
	w.mu.RLock()
	defer w.mu.RUnlock()

	addresses := make([][]byte, 0, len(w.keys))
	for _, k := range w.keys {
		addresses = append(addresses, []byte(k.keys.PublicKey))
	}
	return addresses
}

func (w *Wallet) lookup(address []byte) (walletKey, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, k := range w.keys {
		if bytes.Equal(k.keys.PublicKey, address) {
			return k, true
		}
	}
	return walletKey{}, false
}

// KeyPair returns the key pair owning address
func (w *Wallet) KeyPair(address []byte) (cryptoutil.KeyPair, error) {
	k, ok := w.lookup(address)
	if !ok {
		return cryptoutil.KeyPair{}, ErrUnknownAddress
	}
	return k.keys, nil
}

// Secret returns the secret to sign spends from address with
func (w *Wallet) Secret(address []byte) ([]byte, error) {
	k, ok := w.lookup(address)
	if !ok {
		return nil, ErrUnknownAddress
	}
	return append([]byte(nil), k.secret...), nil
}
