package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
	"sync"
)

// DevelopmentKey is in effect until Configure is called. It is published in
// source and must never protect real data.
const DevelopmentKey = "32-byte-key-for-aes-encryption!!"

var (
	keyMu sync.RWMutex
	// Encryption key for contact data at rest. Replaced at startup by Configure.
	encryptionKey = []byte(DevelopmentKey)
)

// ErrInvalidKey is returned when the configured key is not a valid AES-256 key
var ErrInvalidKey = errors.New("encryption key must be 32 bytes")

// Configure sets the AES-256 key used by Encrypt and Decrypt
func Configure(key string) error {
	if len(key) != 32 {
		return ErrInvalidKey
	}
	keyMu.Lock()
	encryptionKey = []byte(key)
	keyMu.Unlock()
	return nil
}

func newGCM() (cipher.AEAD, error) {
	keyMu.RLock()
	block, err := aes.NewCipher(encryptionKey)
	keyMu.RUnlock()
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt encrypts data using AES-GCM and returns the ciphertext and nonce
func Encrypt(plaintext string) ([]byte, []byte, error) {
	aesgcm, err := newGCM()
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}

	ciphertext := aesgcm.Seal(nil, nonce, []byte(plaintext), nil)
	return ciphertext, nonce, nil
}

// Decrypt decrypts AES-GCM encrypted data
func Decrypt(ciphertext, nonce []byte) (string, error) {
	aesgcm, err := newGCM()
	if err != nil {
		return "", err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
