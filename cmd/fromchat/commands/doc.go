// Package commands defines the fromchat CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - login    Restore or provision the account's message keys
//   - pubkey   Print our published public key and fingerprint
//   - send     Encrypt and send a direct message
//   - fetch    Fetch and decrypt queued direct messages
//   - history  Print the decrypted conversation with one user
//   - listen   Stream and decrypt pushed direct messages
//
// # Implementation
//
// The root command builds a dependency graph (relay client, key manager, DM
// service) before any subcommand runs, so handlers share an app context with
// timeouts and connection pooling. listen additionally dials the realtime
// channel and upgrades DM delivery onto it.
package commands
