// Package envelope implements per-message encryption for direct messages.
//
// Each message is encrypted under a fresh random message key; the message
// key itself is wrapped under a key derived from the static X25519
// Diffie-Hellman secret between sender and recipient. The scheme is
// deliberately static-key (no ratcheting, no forward secrecy): either party
// can reopen any envelope of the conversation with their own private key and
// the other party's public key.
package envelope
