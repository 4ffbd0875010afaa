// Package backup serializes the private key bundle and protects it under a
// password-derived key for server-side escrow.
package backup

import (
	"encoding/binary"
	"fmt"

	"fromchat/internal/crypto"
	"fromchat/internal/domain"
)

const (
	// blobVersion is the current encoded blob format.
	blobVersion = 1
	// kdfName records the KDF family inside the blob so old backups stay
	// readable if the policy constant ever changes.
	kdfName = "pbkdf2-sha256"

	bundleHeaderLen = 1 + 4 // version byte + little-endian length prefix
)

// Serialize encodes the bundle with a fixed layout: one version byte, a
// 4-byte little-endian length prefix, then the raw private key bytes.
func Serialize(b domain.PrivateKeyBundle) []byte {
	out := make([]byte, bundleHeaderLen+len(b.PrivateKey))
	out[0] = byte(b.Version)
	binary.LittleEndian.PutUint32(out[1:5], uint32(len(b.PrivateKey)))
	copy(out[bundleHeaderLen:], b.PrivateKey)
	return out
}

// Deserialize is the exact inverse of Serialize.
func Deserialize(data []byte) (domain.PrivateKeyBundle, error) {
	if len(data) < bundleHeaderLen {
		return domain.PrivateKeyBundle{}, fmt.Errorf("%w: bundle too short", domain.ErrBackupDecryption)
	}
	version := int(data[0])
	if version != domain.BundleVersion {
		return domain.PrivateKeyBundle{}, fmt.Errorf("%w: unsupported bundle version %d", domain.ErrBackupDecryption, version)
	}
	n := binary.LittleEndian.Uint32(data[1:5])
	if int(n) != len(data)-bundleHeaderLen {
		return domain.PrivateKeyBundle{}, fmt.Errorf("%w: bundle length mismatch", domain.ErrBackupDecryption)
	}
	key := make([]byte, n)
	copy(key, data[bundleHeaderLen:])
	return domain.PrivateKeyBundle{Version: version, PrivateKey: key}, nil
}

// EncryptWithPassword seals the bundle under a KEK derived from password.
// The salt is freshly random on every call, so encrypting the same bundle
// twice yields unlinkable ciphertexts.
func EncryptWithPassword(password string, bundle domain.PrivateKeyBundle) (domain.EncryptedBackupBlob, error) {
	salt, err := crypto.RandomBytes(crypto.SaltBytes)
	if err != nil {
		return domain.EncryptedBackupBlob{}, err
	}
	kek := crypto.DeriveKEK(crypto.ImportPassword(password), salt, crypto.KEKIterations)
	defer crypto.Wipe(kek)

	key, err := crypto.ImportKey(kek)
	if err != nil {
		return domain.EncryptedBackupBlob{}, err
	}
	serialized := Serialize(bundle)
	defer crypto.Wipe(serialized)

	iv, ct, err := crypto.Encrypt(key, serialized)
	if err != nil {
		return domain.EncryptedBackupBlob{}, err
	}
	return domain.EncryptedBackupBlob{Salt: salt, IV: iv, Ciphertext: ct}, nil
}

// DecryptWithPassword is the inverse of EncryptWithPassword. Wrong password,
// corruption and tampering are indistinguishable; all surface as
// ErrBackupDecryption and never as partial data.
func DecryptWithPassword(password string, blob domain.EncryptedBackupBlob) (domain.PrivateKeyBundle, error) {
	return decryptWithIterations(password, blob, crypto.KEKIterations)
}

func decryptWithIterations(password string, blob domain.EncryptedBackupBlob, iterations int) (domain.PrivateKeyBundle, error) {
	kek := crypto.DeriveKEK(crypto.ImportPassword(password), blob.Salt, iterations)
	defer crypto.Wipe(kek)

	key, err := crypto.ImportKey(kek)
	if err != nil {
		return domain.PrivateKeyBundle{}, fmt.Errorf("%w: %v", domain.ErrBackupDecryption, err)
	}
	serialized, err := crypto.Decrypt(key, blob.IV, blob.Ciphertext)
	if err != nil {
		return domain.PrivateKeyBundle{}, fmt.Errorf("%w: wrong password or corrupted blob", domain.ErrBackupDecryption)
	}
	defer crypto.Wipe(serialized)
	return Deserialize(serialized)
}
