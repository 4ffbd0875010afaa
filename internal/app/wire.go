package app

import (
	"context"
	"net/http"

	"fromchat/internal/domain"
	"fromchat/internal/keymgr"
	"fromchat/internal/push"
	"fromchat/internal/relay"
	dmsvc "fromchat/internal/services/dm"
)

// Wire bundles the client's services and stores.
type Wire struct {
	cfg Config

	Relay *relay.Client
	Keys  *keymgr.Manager
	DMs   domain.DMService

	channel *push.Channel
}

// NewWire constructs the dependency graph from cfg. The DM service starts
// REST-only; ConnectPush upgrades it to the realtime channel.
func NewWire(cfg Config) *Wire {
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	rc := relay.New(cfg.ServerURL, cfg.Token, httpClient)
	keys := keymgr.New(rc, cfg.Logger)

	return &Wire{
		cfg:   cfg,
		Relay: rc,
		Keys:  keys,
		DMs:   dmsvc.New(keys, rc, nil, cfg.Logger),
	}
}

// ConnectPush dials the realtime channel, authenticates it with a ping and
// routes DM delivery through it. onDM receives every pushed envelope.
func (w *Wire) ConnectPush(ctx context.Context, onDM push.DMHandler) (*push.Channel, error) {
	ch, err := push.Dial(ctx, w.cfg.WSURL, w.cfg.Token, w.cfg.Logger, onDM)
	if err != nil {
		return nil, err
	}
	if err := ch.Ping(ctx); err != nil {
		ch.Close()
		return nil, err
	}
	w.channel = ch
	w.DMs = dmsvc.New(w.Keys, w.Relay, ch, w.cfg.Logger)
	return ch, nil
}

// Close releases the realtime channel if one is connected and wipes the
// session keys.
func (w *Wire) Close() {
	if w.channel != nil {
		w.channel.Close()
		w.channel = nil
	}
	w.Keys.Logout()
}
