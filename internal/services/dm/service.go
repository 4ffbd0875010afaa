package dm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"fromchat/internal/domain"
	"fromchat/internal/protocol/envelope"
	"fromchat/internal/push"
)

// Service sends and receives encrypted direct messages.
//
// High-level flow:
//   - Send: take the session keys, seal the plaintext for the recipient and
//     hand the envelope to the realtime channel (or the REST endpoint when
//     no channel is connected).
//   - Receive: fetch envelopes, resolve the counterparty's public key,
//     decrypt each one. An envelope that fails to open is dropped from the
//     result and logged; it is never rendered partially.
type Service struct {
	keys     domain.KeyManager
	client   domain.DeliveryClient
	realtime domain.DMSender // optional; nil means REST only
	log      zerolog.Logger
}

// New constructs the service. realtime may be nil.
func New(keys domain.KeyManager, client domain.DeliveryClient, realtime domain.DMSender, log zerolog.Logger) *Service {
	return &Service{
		keys:     keys,
		client:   client,
		realtime: realtime,
		log:      log.With().Str("component", "dm").Logger(),
	}
}

// Send seals plaintext for recipient and delivers it.
func (s *Service) Send(ctx context.Context, recipient domain.UserID, recipientPub domain.X25519Public, plaintext []byte) error {
	keys, ok := s.keys.CurrentKeys()
	if !ok {
		return domain.ErrKeysNotInitialized
	}

	sealed, err := envelope.Seal(keys, recipientPub, plaintext)
	if err != nil {
		return fmt.Errorf("seal dm: %w", err)
	}
	req := domain.DmSendRequest{
		RecipientID: recipient,
		IV:          sealed.IV,
		Ciphertext:  sealed.Ciphertext,
		Salt:        sealed.Salt,
		IV2:         sealed.IV2,
		WrappedMK:   sealed.WrappedMK,
	}

	if s.realtime != nil {
		err := s.realtime.SendDM(ctx, req)
		if err == nil {
			return nil
		}
		if !errors.Is(err, push.ErrChannelClosed) {
			return err
		}
		s.log.Debug().Msg("realtime channel closed, falling back to rest")
	}
	return s.client.SendDM(ctx, req)
}

// Fetch returns new inbound messages, decrypted. Sender public keys are
// resolved per sender; envelopes that fail to decrypt are dropped.
func (s *Service) Fetch(ctx context.Context, since int64) ([]domain.DecryptedDM, error) {
	envs, err := s.client.FetchDMs(ctx, since)
	if err != nil {
		return nil, err
	}

	pubs := make(map[domain.UserID]domain.X25519Public)
	out := make([]domain.DecryptedDM, 0, len(envs))
	for _, env := range envs {
		pub, ok := pubs[env.SenderID]
		if !ok {
			pub, err = s.client.PublicKeyOf(ctx, env.SenderID)
			if err != nil {
				s.log.Warn().Err(err).Int64("sender", int64(env.SenderID)).Msg("no public key for sender, skipping messages")
				continue
			}
			pubs[env.SenderID] = pub
		}
		msg, err := s.Decrypt(env, pub)
		if err != nil {
			s.logUndecryptable(env, err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// History returns the decrypted conversation with peer, both directions.
// The Diffie-Hellman secret is symmetric, so the peer's public key opens our
// own sent messages as well as theirs.
func (s *Service) History(ctx context.Context, peer domain.UserID, peerPub domain.X25519Public) ([]domain.DecryptedDM, error) {
	envs, err := s.client.History(ctx, peer)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DecryptedDM, 0, len(envs))
	for _, env := range envs {
		msg, err := s.Decrypt(env, peerPub)
		if err != nil {
			s.logUndecryptable(env, err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Decrypt opens a single envelope against the counterparty's public key.
func (s *Service) Decrypt(env domain.DmEnvelope, counterpartyPub domain.X25519Public) (domain.DecryptedDM, error) {
	keys, ok := s.keys.CurrentKeys()
	if !ok {
		return domain.DecryptedDM{}, domain.ErrKeysNotInitialized
	}
	plaintext, err := envelope.Open(keys, env.Sealed(), counterpartyPub)
	if err != nil {
		return domain.DecryptedDM{}, err
	}
	return domain.DecryptedDM{
		ID:        env.ID,
		SenderID:  env.SenderID,
		Plaintext: plaintext,
		Timestamp: env.Timestamp,
	}, nil
}

func (s *Service) logUndecryptable(env domain.DmEnvelope, err error) {
	s.log.Warn().
		Err(err).
		Int64("id", env.ID).
		Int64("sender", int64(env.SenderID)).
		Msg("undecryptable dm dropped")
}

// Compile-time assertion that Service implements domain.DMService.
var _ domain.DMService = (*Service)(nil)
