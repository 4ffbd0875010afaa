// Package dm orchestrates direct-message encryption, delivery and retrieval
// on top of the envelope protocol, the key manager and the delivery client.
package dm
