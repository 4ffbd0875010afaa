// Package relay provides the HTTP implementation of domain.DeliveryClient.
//
// The server acts as a store for public keys, encrypted key backups and
// sealed DM envelopes. This package only moves opaque ciphertext and public
// key material; no plaintext or secret ever crosses it.
//
// All requests are JSON over HTTP with a bearer-token Authorization header
// and accept a context for cancellation and deadlines. "Nothing stored" (404
// or a null field) is reported as ok=false, distinct from transport errors.
package relay
