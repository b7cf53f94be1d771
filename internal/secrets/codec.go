// Package secrets provides AES-GCM encryption for provider credentials at
// rest. The key lives in process configuration, never in the data store.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/scrypt"
)

const (
	// NonceSize is the GCM standard nonce size (12 bytes).
	NonceSize = 12
	// KeySize is the required key length for AES-256-GCM (32 bytes).
	KeySize = 32
)

var (
	ErrKeyMissing         = errors.New("ENCRYPTION_KEY is not set")
	ErrInvalidKeySize     = fmt.Errorf("key must be exactly %d bytes", KeySize)
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

var key []byte

// Init loads the encryption key from ENCRYPTION_KEY. A 64-character hex
// value is decoded directly; any other non-empty value is stretched to 32
// bytes with scrypt so operators can configure a passphrase.
func Init() error {
	raw := os.Getenv("ENCRYPTION_KEY")
	if raw == "" {
		return ErrKeyMissing
	}

	if len(raw) == KeySize*2 {
		if decoded, err := hex.DecodeString(raw); err == nil {
			key = decoded
			return nil
		}
	}

	derived, err := scrypt.Key([]byte(raw), []byte("voiceboard.credentials.v1"), 1<<15, 8, 1, KeySize)
	if err != nil {
		return fmt.Errorf("derive encryption key: %w", err)
	}
	key = derived
	return nil
}

// Reset drops the loaded key. Used by tests.
func Reset() {
	key = nil
}

// Encrypt seals plaintext with AES-256-GCM and returns base64 text with the
// nonce prepended: base64([nonce(12)] + [ciphertext]).
func Encrypt(plaintext string) (string, error) {
	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered, truncated, or otherwise malformed
// ciphertext fails; corrupted plaintext is never returned silently.
func Decrypt(ciphertext string) (string, error) {
	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(sealed) < NonceSize {
		return "", ErrCiphertextTooShort
	}

	nonce, data := sealed[:NonceSize], sealed[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, data, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	return string(plaintext), nil
}

func newGCM() (cipher.AEAD, error) {
	if len(key) == 0 {
		return nil, ErrKeyMissing
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	return cipher.NewGCM(block)
}
