package backup

import (
	"encoding/json"
	"fmt"

	"fromchat/internal/crypto"
	"fromchat/internal/domain"
)

// encodedBlob is the transport text form stored server-side. Binary fields
// marshal as standard base64. V, KDF and Iters are recorded so the KDF
// policy can change without orphaning old backups; blobs written by clients
// that omitted them decode with the current defaults.
type encodedBlob struct {
	V          int    `json:"v,omitempty"`
	KDF        string `json:"kdf,omitempty"`
	Iters      int    `json:"iters,omitempty"`
	Salt       []byte `json:"salt"`
	IV         []byte `json:"iv"`
	Ciphertext []byte `json:"ciphertext"`
}

// EncodeBlob renders the blob as a JSON record of base64 fields.
func EncodeBlob(blob domain.EncryptedBackupBlob) (string, error) {
	b, err := json.Marshal(encodedBlob{
		V:          blobVersion,
		KDF:        kdfName,
		Iters:      crypto.KEKIterations,
		Salt:       blob.Salt,
		IV:         blob.IV,
		Ciphertext: blob.Ciphertext,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeBlob is the lossless inverse of EncodeBlob.
func DecodeBlob(text string) (domain.EncryptedBackupBlob, error) {
	blob, _, err := decodeBlobFull(text)
	return blob, err
}

// DecryptEncoded decodes the transport form and decrypts it, honoring the
// iteration count stored inside the blob.
func DecryptEncoded(password, text string) (domain.PrivateKeyBundle, error) {
	blob, iters, err := decodeBlobFull(text)
	if err != nil {
		return domain.PrivateKeyBundle{}, err
	}
	return decryptWithIterations(password, blob, iters)
}

func decodeBlobFull(text string) (domain.EncryptedBackupBlob, int, error) {
	var enc encodedBlob
	if err := json.Unmarshal([]byte(text), &enc); err != nil {
		return domain.EncryptedBackupBlob{}, 0, fmt.Errorf("%w: malformed blob: %v", domain.ErrBackupDecryption, err)
	}
	if enc.V > blobVersion {
		return domain.EncryptedBackupBlob{}, 0, fmt.Errorf("%w: unsupported blob version %d", domain.ErrBackupDecryption, enc.V)
	}
	iters := enc.Iters
	if iters == 0 {
		iters = crypto.KEKIterations
	}
	blob := domain.EncryptedBackupBlob{Salt: enc.Salt, IV: enc.IV, Ciphertext: enc.Ciphertext}
	return blob, iters, nil
}
