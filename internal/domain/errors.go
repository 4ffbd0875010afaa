package domain

import "errors"

// Error taxonomy for the DM crypto subsystem. None of these are fatal to the
// process; they are scoped to the DM feature and reported per operation.
var (
	// ErrInvalidKey means malformed key material failed local validation.
	// Not retried.
	ErrInvalidKey = errors.New("invalid key material")

	// ErrAuthentication means an AEAD tag did not verify. The plaintext is
	// unrecoverable; callers must never treat this as an empty message.
	ErrAuthentication = errors.New("authentication failed")

	// ErrBackupDecryption means the backup blob could not be decrypted:
	// wrong password, corruption, or tampering.
	ErrBackupDecryption = errors.New("backup decryption failed")

	// ErrKeysNotInitialized means a DM operation ran before
	// EnsureKeysOnLogin completed. An ordering bug in the caller.
	ErrKeysNotInitialized = errors.New("keys not initialized")

	// ErrKeyProvisioning means a network or server failure during key
	// setup. Recoverable by retrying login-triggered provisioning; the rest
	// of the chat stays usable, DMs stay unavailable until retried.
	ErrKeyProvisioning = errors.New("key provisioning failed")

	// ErrDmDecryption means an envelope could not be opened. The message is
	// dropped from the rendered view, never shown partially.
	ErrDmDecryption = errors.New("dm decryption failed")

	// ErrProvisioningInFlight means EnsureKeysOnLogin was called while a
	// previous call was still running.
	ErrProvisioningInFlight = errors.New("key provisioning already in flight")

	// ErrRequestTimeout means a websocket request/response exchange did not
	// complete within the deadline. Not retried automatically.
	ErrRequestTimeout = errors.New("request timed out")
)
