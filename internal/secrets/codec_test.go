package secrets

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestKey(t *testing.T) {
	t.Helper()
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, Init())
	t.Cleanup(Reset)
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	initTestKey(t)

	for _, plaintext := range []string{"key_abc", "", "sk-live-9f8e7d6c5b4a", "日本語 ключ"} {
		ciphertext, err := Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		recovered, err := Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, recovered)
	}
}

func TestEncryptNonDeterministic(t *testing.T) {
	initTestKey(t)

	c1, err := Encrypt("same plaintext")
	require.NoError(t, err)
	c2, err := Encrypt("same plaintext")
	require.NoError(t, err)

	// Random nonce means ciphertexts should differ
	assert.NotEqual(t, c1, c2)
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	initTestKey(t)

	ciphertext, err := Encrypt("tamper test")
	require.NoError(t, err)

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xFF

	_, err = Decrypt(base64.StdEncoding.EncodeToString(sealed))
	assert.Error(t, err)
}

func TestDecryptTruncatedCiphertext(t *testing.T) {
	initTestKey(t)

	_, err := Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestDecryptNotBase64(t *testing.T) {
	initTestKey(t)

	_, err := Decrypt("%%% not base64 %%%")
	assert.Error(t, err)
}

func TestDecryptWrongKey(t *testing.T) {
	initTestKey(t)

	ciphertext, err := Encrypt("secret")
	require.NoError(t, err)

	t.Setenv("ENCRYPTION_KEY", "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	require.NoError(t, Init())

	_, err = Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestInitMissingKey(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	Reset()
	assert.ErrorIs(t, Init(), ErrKeyMissing)

	_, err := Encrypt("anything")
	assert.ErrorIs(t, err, ErrKeyMissing)
}

func TestInitPassphraseDerivation(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "not-a-hex-key-just-a-passphrase")
	require.NoError(t, Init())
	t.Cleanup(Reset)

	ciphertext, err := Encrypt("key_abc")
	require.NoError(t, err)

	recovered, err := Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "key_abc", recovered)
}
