package dm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"fromchat/internal/crypto"
	"fromchat/internal/domain"
	"fromchat/internal/protocol/envelope"
	"fromchat/internal/services/dm"
)

// fixedKeys is a KeyManager holding a static key pair.
type fixedKeys struct {
	keys  domain.KeyPair
	keyed bool
}

func (f *fixedKeys) EnsureKeysOnLogin(ctx context.Context, password string) (domain.KeyPair, error) {
	return f.keys, nil
}
func (f *fixedKeys) CurrentKeys() (domain.KeyPair, bool) { return f.keys, f.keyed }
func (f *fixedKeys) Logout()                             {}

// fakeServer stores envelopes and public keys like the real backend.
type fakeServer struct {
	pubs  map[domain.UserID]domain.X25519Public
	inbox []domain.DmEnvelope
	sent  []domain.DmSendRequest
}

func (f *fakeServer) FetchPublicKey(ctx context.Context) (domain.X25519Public, bool, error) {
	return domain.X25519Public{}, false, nil
}
func (f *fakeServer) PublishPublicKey(ctx context.Context, pub domain.X25519Public) error {
	return nil
}
func (f *fakeServer) FetchBackup(ctx context.Context) (string, bool, error) { return "", false, nil }
func (f *fakeServer) UploadBackup(ctx context.Context, blob string) error   { return nil }

func (f *fakeServer) PublicKeyOf(ctx context.Context, user domain.UserID) (domain.X25519Public, error) {
	pub, ok := f.pubs[user]
	if !ok {
		return domain.X25519Public{}, errors.New("no key")
	}
	return pub, nil
}

func (f *fakeServer) SendDM(ctx context.Context, req domain.DmSendRequest) error {
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeServer) FetchDMs(ctx context.Context, since int64) ([]domain.DmEnvelope, error) {
	return f.inbox, nil
}

func (f *fakeServer) History(ctx context.Context, peer domain.UserID) ([]domain.DmEnvelope, error) {
	return f.inbox, nil
}

func pair(t *testing.T) domain.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return kp
}

func TestSendWithoutKeysFails(t *testing.T) {
	svc := dm.New(&fixedKeys{}, &fakeServer{}, nil, zerolog.Nop())
	err := svc.Send(context.Background(), 2, domain.X25519Public{}, []byte("hi"))
	if !errors.Is(err, domain.ErrKeysNotInitialized) {
		t.Fatalf("want ErrKeysNotInitialized, got %v", err)
	}
}

func TestEndToEnd(t *testing.T) {
	alice := pair(t)
	bob := pair(t)
	server := &fakeServer{pubs: map[domain.UserID]domain.X25519Public{
		1: alice.Public,
		2: bob.Public,
	}}

	// Alice sends "hello" to Bob.
	aliceSvc := dm.New(&fixedKeys{keys: alice, keyed: true}, server, nil, zerolog.Nop())
	if err := aliceSvc.Send(context.Background(), 2, bob.Public, []byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(server.sent) != 1 {
		t.Fatalf("want 1 stored envelope, got %d", len(server.sent))
	}

	// The server stores it and Bob fetches it.
	req := server.sent[0]
	server.inbox = []domain.DmEnvelope{{
		ID: 1, SenderID: 1, RecipientID: req.RecipientID,
		IV: req.IV, Ciphertext: req.Ciphertext, Salt: req.Salt, IV2: req.IV2, WrappedMK: req.WrappedMK,
	}}

	bobSvc := dm.New(&fixedKeys{keys: bob, keyed: true}, server, nil, zerolog.Nop())
	msgs, err := bobSvc.Fetch(context.Background(), 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(msgs) != 1 || string(msgs[0].Plaintext) != "hello" {
		t.Fatalf("unexpected fetch result %+v", msgs)
	}

	// History works for both parties via DH symmetry.
	aliceHist, err := aliceSvc.History(context.Background(), 2, bob.Public)
	if err != nil {
		t.Fatalf("History (sender): %v", err)
	}
	bobHist, err := bobSvc.History(context.Background(), 1, alice.Public)
	if err != nil {
		t.Fatalf("History (recipient): %v", err)
	}
	if len(aliceHist) != 1 || string(aliceHist[0].Plaintext) != "hello" {
		t.Fatalf("sender history wrong: %+v", aliceHist)
	}
	if len(bobHist) != 1 || string(bobHist[0].Plaintext) != "hello" {
		t.Fatalf("recipient history wrong: %+v", bobHist)
	}
}

func TestUndecryptableMessagesDropped(t *testing.T) {
	alice := pair(t)
	bob := pair(t)
	server := &fakeServer{pubs: map[domain.UserID]domain.X25519Public{1: alice.Public}}

	good, err := envelope.Seal(alice, bob.Public, []byte("legit"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	bad := good
	bad.Ciphertext = append([]byte(nil), good.Ciphertext...)
	bad.Ciphertext[0] ^= 1

	server.inbox = []domain.DmEnvelope{
		{ID: 1, SenderID: 1, IV: bad.IV, Ciphertext: bad.Ciphertext, Salt: bad.Salt, IV2: bad.IV2, WrappedMK: bad.WrappedMK},
		{ID: 2, SenderID: 1, IV: good.IV, Ciphertext: good.Ciphertext, Salt: good.Salt, IV2: good.IV2, WrappedMK: good.WrappedMK},
	}

	svc := dm.New(&fixedKeys{keys: bob, keyed: true}, server, nil, zerolog.Nop())
	msgs, err := svc.Fetch(context.Background(), 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != 2 {
		t.Fatalf("tampered envelope not dropped: %+v", msgs)
	}
}

// realtimeSender records whether the realtime path was used.
type realtimeSender struct {
	used bool
	err  error
}

func (r *realtimeSender) SendDM(ctx context.Context, req domain.DmSendRequest) error {
	r.used = true
	return r.err
}

func TestSendPrefersRealtime(t *testing.T) {
	alice := pair(t)
	bob := pair(t)
	server := &fakeServer{}
	rt := &realtimeSender{}

	svc := dm.New(&fixedKeys{keys: alice, keyed: true}, server, rt, zerolog.Nop())
	if err := svc.Send(context.Background(), 2, bob.Public, []byte("hi")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !rt.used {
		t.Fatal("realtime sender not used")
	}
	if len(server.sent) != 0 {
		t.Fatal("rest fallback used despite healthy realtime channel")
	}
}
