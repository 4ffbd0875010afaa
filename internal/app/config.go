package app

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultHTTPTimeout bounds every REST call, including the key-provisioning
// path; a hung server surfaces as a provisioning error instead of a stuck
// login.
const DefaultHTTPTimeout = 15 * time.Second

// Config holds runtime wiring options for building the app.
type Config struct {
	ServerURL string         // REST base URL, e.g. https://chat.example.com/api
	WSURL     string         // websocket URL, e.g. wss://chat.example.com/api/chat/ws
	Token     string         // bearer token for the authenticated session
	HTTP      *http.Client   // optional; defaults to a client with DefaultHTTPTimeout
	Logger    zerolog.Logger // optional; defaults to a disabled logger
}
