package cryptoutil

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSecretIsDeterministic(t *testing.T) {
	a := DeriveSecret("alice")
	assert.Len(t, a, 64)
	assert.Equal(t, a, DeriveSecret("alice"))
	assert.NotEqual(t, a, DeriveSecret("bob"))
}

func TestKeyPairFromDerivedSecret(t *testing.T) {
	first, err := KeyPairFromSecret(DeriveSecret("alice"))
	require.NoError(t, err)
	second, err := KeyPairFromSecret(DeriveSecret("alice"))
	require.NoError(t, err)

	assert.Len(t, first.PublicKey, 32)
	assert.Len(t, first.PrivateKey, 64)
	assert.Equal(t, first, second)
}

func TestKeyPairFromSeedSizedSecret(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	kp, err := KeyPairFromSecret(seed)
	require.NoError(t, err)
	assert.Equal(t, seed, []byte(kp.PrivateKey.Seed()))

	_, err = KeyPairFromSecret(nil)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestSignVerify(t *testing.T) {
	kp, err := KeyPairFromSecret(DeriveSecret("alice"))
	require.NoError(t, err)
	other, err := KeyPairFromSecret(DeriveSecret("bob"))
	require.NoError(t, err)

	msg := []byte("message")
	sig, err := Sign(kp.PrivateKey, msg)
	require.NoError(t, err)

	again, err := Sign(kp.PrivateKey, msg)
	require.NoError(t, err)
	assert.Equal(t, sig, again, "signatures are deterministic")

	assert.True(t, Verify(kp.PublicKey, sig, msg))

	badSig := append([]byte(nil), sig...)
	badSig[0] ^= 0x01
	assert.False(t, Verify(kp.PublicKey, badSig, msg))
	assert.False(t, Verify(kp.PublicKey, sig, []byte("messagf")))
	assert.False(t, Verify(other.PublicKey, sig, msg))

	assert.False(t, Verify(kp.PublicKey[:5], sig, msg))
	assert.False(t, Verify(kp.PublicKey, sig[:10], msg))
	assert.False(t, Verify(nil, nil, nil))

	_, err = Sign([]byte{1, 2, 3}, msg)
	assert.Error(t, err)
}

func TestGenerateRandomSecret(t *testing.T) {
	s, err := GenerateRandomSecret(0)
	require.NoError(t, err)
	assert.Len(t, s, 32)

	s, err = GenerateRandomSecret(128)
	require.NoError(t, err)
	assert.Len(t, s, 16)

	_, err = GenerateRandomSecret(12)
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestSecretProviders(t *testing.T) {
	random := NewRandomSecretProvider(256)
	a, err := random.GenerateSecret()
	require.NoError(t, err)
	b, err := random.GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)

	broken := &RandomSecretProvider{bits: 256, source: failingReader{}}
	_, err = broken.GenerateSecret()
	assert.Error(t, err)

	var provider SecretProvider = NewPassphraseSecretProvider("alice")
	s, err := provider.GenerateSecret()
	require.NoError(t, err)
	assert.Equal(t, DeriveSecret("alice"), s)

	_, err = NewPassphraseSecretProvider("").GenerateSecret()
	assert.Error(t, err)
}
