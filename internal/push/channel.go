package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"fromchat/internal/domain"
)

// RequestTimeout bounds every request/response exchange. There is no
// automatic retry; expiry is surfaced to the caller.
const RequestTimeout = 10 * time.Second

// ErrChannelClosed is returned by operations on a closed channel.
var ErrChannelClosed = errors.New("push channel closed")

// DMHandler is invoked for every dmNew push received on the channel.
type DMHandler func(env domain.DmEnvelope)

// Channel is the realtime connection to the chat server. It multiplexes
// request/response exchanges (correlated by message type, the server echoes
// the request type back) and server pushes such as dmNew.
type Channel struct {
	conn  *websocket.Conn
	token string
	log   zerolog.Logger
	onDM  DMHandler

	writeMu sync.Mutex // websocket writes are not concurrency-safe

	mu      sync.Mutex
	pending map[string]chan inbound

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the server's websocket endpoint. onDM may be nil if the
// caller does not consume pushes.
func Dial(ctx context.Context, url, token string, log zerolog.Logger, onDM DMHandler) (*Channel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Channel{
		conn:    conn,
		token:   token,
		log:     log.With().Str("component", "push").Logger(),
		onDM:    onDM,
		pending: make(map[string]chan inbound),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Request sends a frame and waits for the response frame with the same type.
// At most one request per type may be in flight; the exchange times out
// after RequestTimeout.
func (c *Channel) Request(ctx context.Context, msgType string, payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ch := make(chan inbound, 1)
	c.mu.Lock()
	if _, busy := c.pending[msgType]; busy {
		c.mu.Unlock()
		return nil, fmt.Errorf("request %q already in flight", msgType)
	}
	c.pending[msgType] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, msgType)
		c.mu.Unlock()
	}()

	frame := outbound{
		Type:        msgType,
		Credentials: &credentials{Scheme: "Bearer", Credentials: c.token},
		Data:        data,
	}
	if err := c.write(frame); err != nil {
		return nil, err
	}

	timer := time.NewTimer(RequestTimeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Data, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %s", domain.ErrRequestTimeout, msgType, RequestTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrChannelClosed
	}
}

// SendDM delivers a sealed envelope over the realtime channel.
func (c *Channel) SendDM(ctx context.Context, req domain.DmSendRequest) error {
	_, err := c.Request(ctx, TypeDMSend, req)
	return err
}

// Ping authenticates the connection server-side and verifies liveness.
func (c *Channel) Ping(ctx context.Context) error {
	_, err := c.Request(ctx, TypePing, struct{}{})
	return err
}

// Close tears down the connection. Idempotent.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Channel) write(frame outbound) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}
	return c.conn.WriteJSON(frame)
}

func (c *Channel) readLoop() {
	defer c.Close()
	for {
		var in inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Warn().Err(err).Msg("push channel read failed")
			}
			return
		}
		c.dispatch(in)
	}
}

// dispatch routes one inbound frame by its tag.
func (c *Channel) dispatch(in inbound) {
	switch in.Type {
	case TypeDMNew:
		var env domain.DmEnvelope
		if err := json.Unmarshal(in.Data, &env); err != nil {
			c.log.Warn().Err(err).Msg("malformed dmNew payload")
			return
		}
		if c.onDM != nil {
			c.onDM(env)
		}
	case TypeNewMessage, TypeEditMessage:
		// Public chat traffic; not this client's concern.
	default:
		c.mu.Lock()
		ch, ok := c.pending[in.Type]
		c.mu.Unlock()
		if !ok {
			c.log.Debug().Str("type", in.Type).Msg("dropping frame with no consumer")
			return
		}
		ch <- in
	}
}
