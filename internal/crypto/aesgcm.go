package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"fromchat/internal/domain"
)

const (
	// KeyBytes is the AES-256 key size.
	KeyBytes = 32
	// NonceBytes is the GCM nonce size.
	NonceBytes = 12
	// SaltBytes is the size of KDF salts.
	SaltBytes = 16
)

// Key is an imported symmetric key handle.
type Key struct {
	aead cipher.AEAD
}

// ImportKey wraps raw key material for use with Encrypt/Decrypt. Material
// that is not exactly 32 bytes is rejected.
func ImportKey(raw []byte) (Key, error) {
	if len(raw) != KeyBytes {
		return Key{}, fmt.Errorf("%w: want %d bytes, got %d", domain.ErrInvalidKey, KeyBytes, len(raw))
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	return Key{aead: aead}, nil
}

// Encrypt seals plaintext under key with a fresh random 12-byte nonce.
// The returned ciphertext has the GCM tag appended.
func Encrypt(key Key, plaintext []byte) (iv, ciphertext []byte, err error) {
	iv = make([]byte, NonceBytes)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, err
	}
	ciphertext = key.aead.Seal(nil, iv, plaintext, nil)
	return iv, ciphertext, nil
}

// Decrypt opens ciphertext. Any failure (bad tag, wrong key, wrong iv)
// means the plaintext is unrecoverable, never that it was empty.
func Decrypt(key Key, iv, ciphertext []byte) ([]byte, error) {
	if len(iv) != NonceBytes {
		return nil, fmt.Errorf("%w: bad nonce size %d", domain.ErrAuthentication, len(iv))
	}
	pt, err := key.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, domain.ErrAuthentication
	}
	return pt, nil
}
