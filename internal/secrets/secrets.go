// Package secrets provides passphrase-based encryption for small values
// that must be stored at rest, such as generated peer private keys.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 100000
)

// ErrDecrypt is returned when a sealed value cannot be decrypted, either
// because the passphrase is wrong or the data was altered.
var ErrDecrypt = errors.New("secrets: cannot decrypt value")

// Seal encrypts plaintext with a key derived from passphrase using
// PBKDF2-SHA256 and AES-256-GCM. The result has the form
// "base64(salt):base64(nonce||ciphertext)".
func Seal(plaintext, passphrase string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func Open(sealed, passphrase string) (string, error) {
	saltPart, dataPart, ok := strings.Cut(sealed, ":")
	if !ok {
		return "", ErrDecrypt
	}
	salt, err := base64.StdEncoding.DecodeString(saltPart)
	if err != nil || len(salt) != saltSize {
		return "", ErrDecrypt
	}
	data, err := base64.StdEncoding.DecodeString(dataPart)
	if err != nil {
		return "", ErrDecrypt
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", ErrDecrypt
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
