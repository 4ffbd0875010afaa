package domain

// UserID identifies a user on the chat server.
type UserID int64

// BundleVersion is the serialization version tag of PrivateKeyBundle.
const BundleVersion = 1

// PrivateKeyBundle is the payload protected by the password backup. It exists
// only inside the encrypt/decrypt boundary of the backup codec.
type PrivateKeyBundle struct {
	Version    int
	PrivateKey []byte
}

// EncryptedBackupBlob is the server-stored, password-encrypted private key
// backup. Salt and IV are freshly random on every encryption.
type EncryptedBackupBlob struct {
	Salt       []byte
	IV         []byte
	Ciphertext []byte
}

// SealedMessage holds the five cryptographic fields of one encrypted DM:
// IV/Ciphertext protect the plaintext under a one-time message key, and
// Salt/IV2/WrappedMK protect that message key under a wrapping key derived
// from the sender-recipient Diffie-Hellman secret.
type SealedMessage struct {
	IV         []byte
	Ciphertext []byte
	Salt       []byte
	IV2        []byte
	WrappedMK  []byte
}

// DmEnvelope is the wire/persisted form of one encrypted DM. Binary fields
// marshal as standard base64, matching the server's JSON schema. Envelopes
// are immutable once created.
type DmEnvelope struct {
	ID          int64  `json:"id"`
	SenderID    UserID `json:"senderId"`
	RecipientID UserID `json:"recipientId"`
	IV          []byte `json:"iv"`
	Ciphertext  []byte `json:"ciphertext"`
	Salt        []byte `json:"salt"`
	IV2         []byte `json:"iv2"`
	WrappedMK   []byte `json:"wrappedMk"`
	Timestamp   string `json:"timestamp"`
}

// Sealed returns the envelope's cryptographic fields.
func (e DmEnvelope) Sealed() SealedMessage {
	return SealedMessage{
		IV:         e.IV,
		Ciphertext: e.Ciphertext,
		Salt:       e.Salt,
		IV2:        e.IV2,
		WrappedMK:  e.WrappedMK,
	}
}

// DmSendRequest is the body posted to /dm/send (or carried by a dmSend
// websocket frame).
type DmSendRequest struct {
	RecipientID UserID `json:"recipientId"`
	IV          []byte `json:"iv"`
	Ciphertext  []byte `json:"ciphertext"`
	Salt        []byte `json:"salt"`
	IV2         []byte `json:"iv2"`
	WrappedMK   []byte `json:"wrappedMk"`
}

// DecryptedDM is an envelope whose plaintext was recovered locally.
type DecryptedDM struct {
	ID        int64
	SenderID  UserID
	Plaintext []byte
	Timestamp string
}
