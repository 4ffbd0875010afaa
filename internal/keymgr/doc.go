// Package keymgr orchestrates per-session key custody: first-time
// provisioning, server publication of the public key, encrypted backup
// upload, and restoration on later logins. It is the only component that
// holds or mutates the session's private key.
package keymgr
