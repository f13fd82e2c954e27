package wallet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhnp/coin-ledger/internal/cryptoutil"
	"github.com/thanhnp/coin-ledger/internal/hashing"
	"github.com/thanhnp/coin-ledger/internal/models"
	"github.com/thanhnp/coin-ledger/internal/txbuilder"
)

type failingProvider struct{}

func (failingProvider) GenerateSecret() ([]byte, error) {
	return nil, errors.New("no entropy")
}

func TestPassphraseWalletIsDeterministic(t *testing.T) {
	a, err := New(cryptoutil.NewPassphraseSecretProvider("correct horse"))
	require.NoError(t, err)
	b, err := New(cryptoutil.NewPassphraseSecretProvider("correct horse"))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	for i := 0; i < 3; i++ {
		addrA, err := a.GenerateAddress()
		require.NoError(t, err)
		addrB, err := b.GenerateAddress()
		require.NoError(t, err)
		assert.Equal(t, addrA, addrB)
	}

	addresses := a.Addresses()
	require.Len(t, addresses, 3)
	assert.NotEqual(t, addresses[0], addresses[1])
	assert.NotEqual(t, addresses[1], addresses[2])

	first, err := cryptoutil.KeyPairFromSecret(cryptoutil.DeriveSecret("correct horse"))
	require.NoError(t, err)
	assert.Equal(t, []byte(first.PublicKey), addresses[0])
}

func TestNewPropagatesProviderError(t *testing.T) {
	_, err := New(failingProvider{})
	assert.Error(t, err)
}

func TestSecretSignsSpends(t *testing.T) {
	hp := hashing.Default()
	w, err := New(cryptoutil.NewRandomSecretProvider(0))
	require.NoError(t, err)
	_, err = w.GenerateAddress()
	require.NoError(t, err)
	addr, err := w.GenerateAddress()
	require.NoError(t, err)

	secret, err := w.Secret(addr)
	require.NoError(t, err)

	tx, err := txbuilder.New(hp).
		From([]models.UnspentOutput{{TransactionID: "fund", Address: addr, Amount: 10}}).
		To([]byte("dest"), 5).
		Fee(1).
		Sign(secret).
		Build()
	require.NoError(t, err)
	tx.Seal(hp)

	view := models.MapView{{TransactionID: "fund"}: {Address: addr, Amount: 10}}
	assert.NoError(t, tx.Check(hp, view, models.DefaultCoinSettings()))

	_, err = w.Secret([]byte("stranger"))
	assert.ErrorIs(t, err, ErrUnknownAddress)
}

func TestAddressFormats(t *testing.T) {
	w, err := New(cryptoutil.NewPassphraseSecretProvider("formats"))
	require.NoError(t, err)
	addr, err := w.GenerateAddress()
	require.NoError(t, err)

	formats := map[string]AddressFormat{
		"base58": NewBase58Format(),
		"hex":    HexFormat{},
	}
	for name, format := range formats {
		t.Run(name, func(t *testing.T) {
			s, err := format.Export(w, addr)
			require.NoError(t, err)

			kp, err := format.Import(w, s)
			require.NoError(t, err)
			assert.Equal(t, addr, []byte(kp.PublicKey))

			_, err = format.Export(w, []byte("stranger"))
			assert.ErrorIs(t, err, ErrUnknownAddress)

			_, err = format.Import(w, "!!not an address!!")
			assert.Error(t, err)
		})
	}
}

func TestBase58RejectsOtherVersion(t *testing.T) {
	w, err := New(cryptoutil.NewPassphraseSecretProvider("versions"))
	require.NoError(t, err)
	addr, err := w.GenerateAddress()
	require.NoError(t, err)

	s, err := (&Base58Format{Version: 0x00}).Export(w, addr)
	require.NoError(t, err)
	_, err = NewBase58Format().Import(w, s)
	assert.Error(t, err)
}
