package push_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"fromchat/internal/domain"
	"fromchat/internal/push"
)

type frame struct {
	Type        string          `json:"type"`
	Credentials *struct {
		Scheme      string `json:"scheme"`
		Credentials string `json:"credentials"`
	} `json:"credentials"`
	Data json.RawMessage `json:"data"`
}

// wsServer runs handler for each inbound frame on a test websocket endpoint.
func wsServer(t *testing.T, handler func(conn *websocket.Conn, f frame)) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			handler(conn, f)
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRequestResponse(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn, f frame) {
		if f.Credentials == nil || f.Credentials.Credentials != "tok" {
			t.Errorf("missing credentials in frame %+v", f)
		}
		conn.WriteJSON(map[string]any{"type": f.Type, "data": map[string]string{"status": "success"}})
	})
	defer srv.Close()

	c, err := push.Dial(context.Background(), wsURL(srv), "tok", zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestSendDMAndServerError(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn, f frame) {
		var req domain.DmSendRequest
		if err := json.Unmarshal(f.Data, &req); err != nil {
			t.Errorf("unmarshal dmSend: %v", err)
		}
		if req.RecipientID == 0 {
			conn.WriteJSON(map[string]any{
				"type":  f.Type,
				"error": map[string]any{"code": 400, "detail": "missing recipientId"},
			})
			return
		}
		conn.WriteJSON(map[string]any{"type": f.Type, "data": map[string]any{"status": "ok", "id": 1}})
	})
	defer srv.Close()

	c, err := push.Dial(context.Background(), wsURL(srv), "tok", zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	ok := domain.DmSendRequest{RecipientID: 5, IV: []byte{1}, Ciphertext: []byte{2}, Salt: []byte{3}, IV2: []byte{4}, WrappedMK: []byte{5}}
	if err := c.SendDM(context.Background(), ok); err != nil {
		t.Fatalf("SendDM: %v", err)
	}

	err = c.SendDM(context.Background(), domain.DmSendRequest{})
	var se *push.ServerError
	if !errors.As(err, &se) || se.Code != 400 {
		t.Fatalf("want ServerError 400, got %v", err)
	}
}

func TestDMNewDispatch(t *testing.T) {
	env := domain.DmEnvelope{ID: 9, SenderID: 1, RecipientID: 2, IV: []byte{1}, Ciphertext: []byte{2}}
	srv := wsServer(t, func(conn *websocket.Conn, f frame) {
		// Respond to the ping, then push a DM.
		conn.WriteJSON(map[string]any{"type": f.Type, "data": map[string]string{"status": "success"}})
		conn.WriteJSON(map[string]any{"type": push.TypeDMNew, "data": env})
	})
	defer srv.Close()

	got := make(chan domain.DmEnvelope, 1)
	c, err := push.Dial(context.Background(), wsURL(srv), "tok", zerolog.Nop(), func(e domain.DmEnvelope) {
		got <- e
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	select {
	case e := <-got:
		if e.ID != env.ID || e.SenderID != env.SenderID {
			t.Fatalf("unexpected envelope %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dmNew never dispatched")
	}
}

func TestRequestContextCancel(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn, f frame) {
		// Never respond.
	})
	defer srv.Close()

	c, err := push.Dial(context.Background(), wsURL(srv), "tok", zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Ping(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}
}

func TestClosedChannelRejectsRequests(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn, f frame) {})
	defer srv.Close()

	c, err := push.Dial(context.Background(), wsURL(srv), "tok", zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	c.Close()
	c.Close() // idempotent

	if err := c.Ping(context.Background()); !errors.Is(err, push.ErrChannelClosed) {
		t.Fatalf("want ErrChannelClosed, got %v", err)
	}
}
