// Package push maintains the realtime websocket connection to the chat
// server. It carries authenticated request/response exchanges (dmSend, ping)
// and delivers server pushes, most importantly dmNew envelopes announcing
// new direct messages. Exchanges are correlated by message type and bounded
// by a 10-second timeout with no automatic retry.
package push
