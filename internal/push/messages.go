package push

import (
	"encoding/json"
	"fmt"
)

// Message type tags. The channel treats inbound frames as a closed tagged
// union: each tag has exactly one payload shape, decoded by DecodeInbound,
// and unknown tags are dropped rather than field-probed.
const (
	TypePing        = "ping"
	TypeDMSend      = "dmSend"
	TypeDMNew       = "dmNew"
	TypeGetMessages = "getMessages"
	TypeSendMessage = "sendMessage"
	TypeNewMessage  = "newMessage"
	TypeEditMessage = "editMessage"
)

// credentials mirrors the server's frame-level auth object.
type credentials struct {
	Scheme      string `json:"scheme"`
	Credentials string `json:"credentials"`
}

// outbound is a client-to-server frame.
type outbound struct {
	Type        string          `json:"type"`
	Credentials *credentials    `json:"credentials,omitempty"`
	Data        json.RawMessage `json:"data"`
}

// inbound is a server-to-client frame: either a response echoing a request
// type, or a push like dmNew. Exactly one of Data/Error is meaningful.
type inbound struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *ServerError    `json:"error"`
}

// ServerError is the error object the server attaches to failed requests.
type ServerError struct {
	Code   int    `json:"code"`
	Detail string `json:"detail"`
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Detail)
}
