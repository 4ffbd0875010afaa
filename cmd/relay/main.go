// Command relay is an in-memory development server for the fromchat client.
// It implements the crypto and DM endpoints plus the websocket push loop, with
// no persistence. Authentication is deliberately trivial: the bearer token is
// the numeric user id.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fromchat/internal/domain"
)

type memoryStore struct {
	mu       sync.RWMutex
	pubkeys  map[domain.UserID]string
	backups  map[domain.UserID]string
	messages []domain.DmEnvelope
	nextID   int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		pubkeys: make(map[domain.UserID]string),
		backups: make(map[domain.UserID]string),
		nextID:  1,
	}
}

func (ms *memoryStore) appendMessage(sender domain.UserID, req domain.DmSendRequest) domain.DmEnvelope {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	env := domain.DmEnvelope{
		ID:          ms.nextID,
		SenderID:    sender,
		RecipientID: req.RecipientID,
		IV:          req.IV,
		Ciphertext:  req.Ciphertext,
		Salt:        req.Salt,
		IV2:         req.IV2,
		WrappedMK:   req.WrappedMK,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	ms.nextID++
	ms.messages = append(ms.messages, env)
	return env
}

func (ms *memoryStore) inbox(user domain.UserID, since int64) []domain.DmEnvelope {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	out := []domain.DmEnvelope{}
	for _, m := range ms.messages {
		if m.RecipientID == user && m.ID > since {
			out = append(out, m)
		}
	}
	return out
}

func (ms *memoryStore) conversation(user, peer domain.UserID) []domain.DmEnvelope {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	out := []domain.DmEnvelope{}
	for _, m := range ms.messages {
		if (m.SenderID == user && m.RecipientID == peer) ||
			(m.SenderID == peer && m.RecipientID == user) {
			out = append(out, m)
		}
	}
	return out
}

// registry tracks which users have a live websocket, for dmNew pushes.
type registry struct {
	mu    sync.Mutex
	conns map[domain.UserID]*wsConn
}

type wsConn struct {
	mu   sync.Mutex // gorilla conns do not allow concurrent writes
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (r *registry) set(user domain.UserID, c *wsConn) {
	r.mu.Lock()
	r.conns[user] = c
	r.mu.Unlock()
}

func (r *registry) drop(user domain.UserID, c *wsConn) {
	r.mu.Lock()
	if r.conns[user] == c {
		delete(r.conns, user)
	}
	r.mu.Unlock()
}

func (r *registry) push(user domain.UserID, frame any) {
	r.mu.Lock()
	c := r.conns[user]
	r.mu.Unlock()
	if c == nil {
		return
	}
	if err := c.writeJSON(frame); err != nil {
		log.Println("push to", user, "failed:", err)
	}
}

// Dev tokens are bare user ids.
func authenticate(r *http.Request) (domain.UserID, bool) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return 0, false
	}
	return parseToken(token)
}

func parseToken(token string) (domain.UserID, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return domain.UserID(id), true
}

type publicKeyBody struct {
	PublicKey *string `json:"publicKey"`
}

type backupBody struct {
	Blob *string `json:"blob"`
}

type messagesBody struct {
	Messages []domain.DmEnvelope `json:"messages"`
}

// Websocket frame shapes, mirroring the client's tagged union.
type wsFrame struct {
	Type        string          `json:"type"`
	Credentials *wsCredentials  `json:"credentials"`
	Data        json.RawMessage `json:"data"`
}

type wsCredentials struct {
	Scheme      string `json:"scheme"`
	Credentials string `json:"credentials"`
}

type wsReply struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error any    `json:"error,omitempty"`
}

type wsError struct {
	Code   int    `json:"code"`
	Detail string `json:"detail"`
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	ms := newMemoryStore()
	reg := &registry{conns: make(map[domain.UserID]*wsConn)}
	upgrader := websocket.Upgrader{}

	http.HandleFunc("/crypto/public-key", func(w http.ResponseWriter, r *http.Request) {
		user, ok := authenticate(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			ms.mu.RLock()
			key, found := ms.pubkeys[user]
			ms.mu.RUnlock()
			if !found {
				http.Error(w, "no public key", http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(publicKeyBody{PublicKey: &key})
		case http.MethodPost:
			defer r.Body.Close()
			var body publicKeyBody
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PublicKey == nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			ms.mu.Lock()
			ms.pubkeys[user] = *body.PublicKey
			ms.mu.Unlock()
			log.Println("stored public key for", user)
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	http.HandleFunc("/crypto/backup", func(w http.ResponseWriter, r *http.Request) {
		user, ok := authenticate(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			ms.mu.RLock()
			blob, found := ms.backups[user]
			ms.mu.RUnlock()
			if !found {
				http.Error(w, "no backup", http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(backupBody{Blob: &blob})
		case http.MethodPost:
			defer r.Body.Close()
			var body backupBody
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Blob == nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			ms.mu.Lock()
			ms.backups[user] = *body.Blob
			ms.mu.Unlock()
			log.Println("stored backup for", user)
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	http.HandleFunc("/crypto/public-key/of/", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authenticate(r); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id, err := strconv.ParseInt(r.URL.Path[len("/crypto/public-key/of/"):], 10, 64)
		if err != nil {
			http.Error(w, "bad user id", http.StatusBadRequest)
			return
		}
		ms.mu.RLock()
		key, found := ms.pubkeys[domain.UserID(id)]
		ms.mu.RUnlock()
		if !found {
			http.Error(w, "no public key", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(publicKeyBody{PublicKey: &key})
	})

	http.HandleFunc("/dm/send", func(w http.ResponseWriter, r *http.Request) {
		user, ok := authenticate(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		defer r.Body.Close()
		var req domain.DmSendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		env := ms.appendMessage(user, req)
		reg.push(env.RecipientID, wsReply{Type: "dmNew", Data: env})
		_ = json.NewEncoder(w).Encode(env)
	})

	http.HandleFunc("/dm/fetch", func(w http.ResponseWriter, r *http.Request) {
		user, ok := authenticate(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var since int64
		if s := r.URL.Query().Get("since"); s != "" {
			var err error
			since, err = strconv.ParseInt(s, 10, 64)
			if err != nil {
				http.Error(w, "bad since", http.StatusBadRequest)
				return
			}
		}
		_ = json.NewEncoder(w).Encode(messagesBody{Messages: ms.inbox(user, since)})
	})

	http.HandleFunc("/dm/history/", func(w http.ResponseWriter, r *http.Request) {
		user, ok := authenticate(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		peer, err := strconv.ParseInt(r.URL.Path[len("/dm/history/"):], 10, 64)
		if err != nil {
			http.Error(w, "bad user id", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(messagesBody{Messages: ms.conversation(user, domain.UserID(peer))})
	})

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &wsConn{conn: conn}
		var user domain.UserID
		defer func() {
			if user != 0 {
				reg.drop(user, c)
			}
			conn.Close()
		}()

		for {
			var frame wsFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Credentials == nil || frame.Credentials.Scheme != "Bearer" {
				_ = c.writeJSON(wsReply{Type: frame.Type, Error: wsError{Code: 401, Detail: "missing credentials"}})
				continue
			}
			id, ok := parseToken(frame.Credentials.Credentials)
			if !ok {
				_ = c.writeJSON(wsReply{Type: frame.Type, Error: wsError{Code: 401, Detail: "bad token"}})
				continue
			}
			if user == 0 {
				user = id
				reg.set(user, c)
				log.Println("user", user, "connected")
			}

			switch frame.Type {
			case "ping":
				_ = c.writeJSON(wsReply{Type: "ping", Data: struct{}{}})
			case "dmSend":
				var req domain.DmSendRequest
				if err := json.Unmarshal(frame.Data, &req); err != nil {
					_ = c.writeJSON(wsReply{Type: "dmSend", Error: wsError{Code: 400, Detail: "malformed dmSend payload"}})
					continue
				}
				env := ms.appendMessage(user, req)
				reg.push(env.RecipientID, wsReply{Type: "dmNew", Data: env})
				_ = c.writeJSON(wsReply{Type: "dmSend", Data: env})
			default:
				_ = c.writeJSON(wsReply{Type: frame.Type, Error: wsError{Code: 400, Detail: fmt.Sprintf("unknown message type %q", frame.Type)}})
			}
		}
	})

	log.Println("relay listening on", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}
