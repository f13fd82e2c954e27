package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/thanhnp/coin-ledger/internal/cryptoutil"
)

// AddressFormat converts wallet addresses to and from a printable form
type AddressFormat interface {
	Export(w *Wallet, address []byte) (string, error)
	Import(w *Wallet, input string) (cryptoutil.KeyPair, error)
}

// AddressVersion prefixes every Base58 address
const AddressVersion byte = 0x1c

// Base58Format renders addresses as Base58Check strings
type Base58Format struct {
	Version byte
}

// NewBase58Format returns a format using AddressVersion
func NewBase58Format() *Base58Format {
	return &Base58Format{Version: AddressVersion}
}

// Export implements AddressFormat
func (f *Base58Format) Export(w *Wallet, address []byte) (string, error) {
	if _, err := w.KeyPair(address); err != nil {
		return "", err
	}
	return base58.CheckEncode(address, f.Version), nil
}

// Import implements AddressFormat
func (f *Base58Format) Import(w *Wallet, input string) (cryptoutil.KeyPair, error) {
	address, version, err := base58.CheckDecode(input)
	if err != nil {
		return cryptoutil.KeyPair{}, fmt.Errorf("invalid address %q: %w", input, err)
	}
	if version != f.Version {
		return cryptoutil.KeyPair{}, fmt.Errorf("invalid address %q: version %#x, expected %#x", input, version, f.Version)
	}
	return w.KeyPair(address)
}

// HexFormat renders addresses as lowercase hex, the form the HTTP API uses
type HexFormat struct{}

// Export implements AddressFormat
func (HexFormat) Export(w *Wallet, address []byte) (string, error) {
	if _, err := w.KeyPair(address); err != nil {
		return "", err
	}
	return hex.EncodeToString(address), nil
}

// Import implements AddressFormat
func (HexFormat) Import(w *Wallet, input string) (cryptoutil.KeyPair, error) {
	address, err := hex.DecodeString(input)
	if err != nil {
		return cryptoutil.KeyPair{}, fmt.Errorf("invalid address %q: %w", input, err)
	}
	return w.KeyPair(address)
}
