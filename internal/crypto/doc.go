// Package crypto exposes the primitives used by the DM protocol.
//
// Contents
//
//   - AES-256-GCM authenticated encryption with random nonces (Encrypt,
//     Decrypt, ImportKey)
//   - Password-based and agreement-based key derivation (ImportPassword,
//     DeriveKEK, DeriveWrappingKey) plus RandomBytes
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateKeyPair,
//     SharedSecret)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// All functions are pure over their inputs and safe for concurrent use.
// Callers should treat returned secrets as sensitive and rely on Wipe when
// practical to reduce lifetime in memory. The raw Diffie-Hellman output from
// SharedSecret must always pass through DeriveWrappingKey before use as a
// cipher key.
package crypto
