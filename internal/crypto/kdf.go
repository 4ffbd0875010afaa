package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// KEKIterations is the PBKDF2 iteration count for backup key derivation.
// Changing it invalidates blobs that do not carry their own count, so the
// value is also recorded inside every encoded blob.
const KEKIterations = 210_000

// WrapInfoV1 is the HKDF domain-separation tag for DM wrapping keys.
var WrapInfoV1 = []byte{0x01}

// PasswordKey is an imported password handle. Importing does not derive any
// bytes; derivation happens in DeriveKEK.
type PasswordKey struct {
	raw []byte
}

// ImportPassword wraps a password for key derivation.
func ImportPassword(password string) PasswordKey {
	return PasswordKey{raw: []byte(password)}
}

// DeriveKEK derives a 256-bit key-encryption key from the password and salt
// using PBKDF2 with a SHA-256 core.
func DeriveKEK(pk PasswordKey, salt []byte, iterations int) []byte {
	return pbkdf2.Key(pk.raw, salt, iterations, KeyBytes, sha256.New)
}

// DeriveWrappingKey runs HKDF-SHA256 extract-and-expand over a Diffie-Hellman
// shared secret. info provides domain separation; WrapInfoV1 for DM keys.
func DeriveWrappingKey(sharedSecret, salt, info []byte) ([]byte, error) {
	out := make([]byte, KeyBytes)
	r := hkdf.New(sha256.New, sharedSecret, salt, info)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}
