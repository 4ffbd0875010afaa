package domain

import "context"

// DeliveryClient is how we talk to the chat server's crypto and DM
// endpoints. Fetch methods with an ok return distinguish "nothing stored"
// from transport failure.
type DeliveryClient interface {
	// Own key material.
	FetchPublicKey(ctx context.Context) (X25519Public, bool, error)
	PublishPublicKey(ctx context.Context, pub X25519Public) error
	FetchBackup(ctx context.Context) (blob string, ok bool, err error)
	UploadBackup(ctx context.Context, blob string) error

	// Peers and messages.
	PublicKeyOf(ctx context.Context, user UserID) (X25519Public, error)
	SendDM(ctx context.Context, req DmSendRequest) error
	FetchDMs(ctx context.Context, since int64) ([]DmEnvelope, error)
	History(ctx context.Context, peer UserID) ([]DmEnvelope, error)
}

// KeyManager owns the session's in-memory key pair.
type KeyManager interface {
	EnsureKeysOnLogin(ctx context.Context, password string) (KeyPair, error)
	CurrentKeys() (KeyPair, bool)
	Logout()
}

// DMSender delivers a sealed message, either over the realtime channel or
// the REST endpoint.
type DMSender interface {
	SendDM(ctx context.Context, req DmSendRequest) error
}

// DMService encrypts, sends, fetches and decrypts direct messages.
type DMService interface {
	Send(ctx context.Context, recipient UserID, recipientPub X25519Public, plaintext []byte) error
	Fetch(ctx context.Context, since int64) ([]DecryptedDM, error)
	History(ctx context.Context, peer UserID, peerPub X25519Public) ([]DecryptedDM, error)
	Decrypt(env DmEnvelope, counterpartyPub X25519Public) (DecryptedDM, error)
}
