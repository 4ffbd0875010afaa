package envelope

import (
	"fmt"

	"fromchat/internal/crypto"
	"fromchat/internal/domain"
)

const messageKeyBytes = 32

// Seal encrypts plaintext for the holder of recipientPub.
//
// Per message it generates a fresh 32-byte message key and 16-byte wrapping
// salt, encrypts the plaintext under the message key, then wraps the message
// key under a key derived (HKDF) from the sender-recipient Diffie-Hellman
// secret. No cryptographic material is reused across messages.
func Seal(keys domain.KeyPair, recipientPub domain.X25519Public, plaintext []byte) (domain.SealedMessage, error) {
	mk, err := crypto.RandomBytes(messageKeyBytes)
	if err != nil {
		return domain.SealedMessage{}, err
	}
	defer crypto.Wipe(mk)

	salt, err := crypto.RandomBytes(crypto.SaltBytes)
	if err != nil {
		return domain.SealedMessage{}, err
	}

	wk, err := wrappingKey(keys.Private, recipientPub, salt)
	if err != nil {
		return domain.SealedMessage{}, err
	}

	mkKey, err := crypto.ImportKey(mk)
	if err != nil {
		return domain.SealedMessage{}, err
	}
	iv, ciphertext, err := crypto.Encrypt(mkKey, plaintext)
	if err != nil {
		return domain.SealedMessage{}, err
	}

	iv2, wrappedMK, err := crypto.Encrypt(wk, mk)
	if err != nil {
		return domain.SealedMessage{}, err
	}

	return domain.SealedMessage{
		IV:         iv,
		Ciphertext: ciphertext,
		Salt:       salt,
		IV2:        iv2,
		WrappedMK:  wrappedMK,
	}, nil
}

// Open decrypts a sealed message using the counterparty's public key.
//
// The Diffie-Hellman secret is symmetric, so the same call works whether the
// local party was the sender or the recipient, as long as counterpartyPub is
// the other side of the conversation. Open is deterministic: the same inputs
// always yield the same plaintext or the same failure.
func Open(keys domain.KeyPair, msg domain.SealedMessage, counterpartyPub domain.X25519Public) ([]byte, error) {
	wk, err := wrappingKey(keys.Private, counterpartyPub, msg.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDmDecryption, err)
	}

	mk, err := crypto.Decrypt(wk, msg.IV2, msg.WrappedMK)
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap message key: %v", domain.ErrDmDecryption, err)
	}
	defer crypto.Wipe(mk)

	mkKey, err := crypto.ImportKey(mk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDmDecryption, err)
	}
	plaintext, err := crypto.Decrypt(mkKey, msg.IV, msg.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: open ciphertext: %v", domain.ErrDmDecryption, err)
	}
	return plaintext, nil
}

// wrappingKey derives the per-message key-wrapping key from the DH secret.
func wrappingKey(priv domain.X25519Private, pub domain.X25519Public, salt []byte) (crypto.Key, error) {
	shared, err := crypto.SharedSecret(priv, pub)
	if err != nil {
		return crypto.Key{}, err
	}
	defer crypto.Wipe(shared)

	raw, err := crypto.DeriveWrappingKey(shared, salt, crypto.WrapInfoV1)
	if err != nil {
		return crypto.Key{}, err
	}
	defer crypto.Wipe(raw)

	return crypto.ImportKey(raw)
}
