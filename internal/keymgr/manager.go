package keymgr

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"fromchat/internal/backup"
	"fromchat/internal/crypto"
	"fromchat/internal/domain"
)

// State is the session's key lifecycle state.
type State int

const (
	StateUnkeyed State = iota
	StateRestoring
	StateProvisioning
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnkeyed:
		return "unkeyed"
	case StateRestoring:
		return "restoring"
	case StateProvisioning:
		return "provisioning"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Manager owns the session's in-memory key pair. Keys are never written to
// durable local storage; the only persistent copy of the private key is the
// password-encrypted backup held by the server.
type Manager struct {
	client domain.DeliveryClient
	log    zerolog.Logger

	mu       sync.Mutex
	inFlight bool
	state    State
	keys     *domain.KeyPair
}

// New returns an unkeyed manager talking to the given delivery client.
func New(client domain.DeliveryClient, log zerolog.Logger) *Manager {
	return &Manager{client: client, log: log.With().Str("component", "keymgr").Logger()}
}

// EnsureKeysOnLogin restores the key pair from the server-held backup, or
// provisions a fresh one on first login.
//
// Restore path: the backup blob is decrypted under password and the
// server-recorded public key is adopted as the session public key. If the
// server has a backup but no public key on record, provisioning is treated
// as corrupted and a brand-new key pair replaces it: the new public key is
// published and a fresh backup overwrites the old one under the current
// password. The old key pair becomes permanently unrecoverable; that loss is
// accepted over leaving the account unable to use DMs.
//
// Only one call may run at a time; a second call while one is in flight
// returns ErrProvisioningInFlight.
func (m *Manager) EnsureKeysOnLogin(ctx context.Context, password string) (domain.KeyPair, error) {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return domain.KeyPair{}, domain.ErrProvisioningInFlight
	}
	m.inFlight = true
	m.mu.Unlock()

	keys, state, err := m.ensure(ctx, password)

	m.mu.Lock()
	m.inFlight = false
	if err == nil {
		m.keys = &keys
		m.state = StateReady
	} else {
		m.state = StateUnkeyed
	}
	m.mu.Unlock()

	if err != nil {
		return domain.KeyPair{}, err
	}
	m.log.Info().
		Stringer("path", state).
		Str("fingerprint", crypto.Fingerprint(keys.Public)).
		Msg("session keys ready")
	return keys, nil
}

func (m *Manager) ensure(ctx context.Context, password string) (domain.KeyPair, State, error) {
	blob, haveBackup, err := m.client.FetchBackup(ctx)
	if err != nil {
		return domain.KeyPair{}, StateUnkeyed, fmt.Errorf("%w: fetch backup: %v", domain.ErrKeyProvisioning, err)
	}
	if !haveBackup {
		keys, err := m.provision(ctx, password)
		return keys, StateProvisioning, err
	}

	m.setState(StateRestoring)
	bundle, err := backup.DecryptEncoded(password, blob)
	if err != nil {
		return domain.KeyPair{}, StateRestoring, err
	}
	if len(bundle.PrivateKey) != 32 {
		return domain.KeyPair{}, StateRestoring,
			fmt.Errorf("%w: backup holds a %d-byte private key", domain.ErrBackupDecryption, len(bundle.PrivateKey))
	}
	priv := domain.MustX25519Private(bundle.PrivateKey)
	crypto.Wipe(bundle.PrivateKey)

	serverPub, havePub, err := m.client.FetchPublicKey(ctx)
	if err != nil {
		return domain.KeyPair{}, StateRestoring, fmt.Errorf("%w: fetch public key: %v", domain.ErrKeyProvisioning, err)
	}
	if !havePub {
		// Backup without a public key on record: incomplete provisioning.
		// The key-agreement library is the sole trusted source of public
		// keys here, so regenerate rather than guess.
		m.log.Warn().Msg("backup exists but server has no public key; regenerating key pair")
		keys, err := m.provision(ctx, password)
		return keys, StateRestoring, err
	}

	m.log.Debug().
		Str("fingerprint", crypto.Fingerprint(serverPub)).
		Msg("adopted server-recorded public key")
	return domain.KeyPair{Public: serverPub, Private: priv}, StateRestoring, nil
}

// provision generates a fresh key pair, publishes the public half and
// uploads a password-encrypted backup of the private half.
func (m *Manager) provision(ctx context.Context, password string) (domain.KeyPair, error) {
	m.setState(StateProvisioning)

	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("%w: generate key pair: %v", domain.ErrKeyProvisioning, err)
	}
	if err := m.client.PublishPublicKey(ctx, keys.Public); err != nil {
		return domain.KeyPair{}, fmt.Errorf("%w: publish public key: %v", domain.ErrKeyProvisioning, err)
	}

	blob, err := backup.EncryptWithPassword(password, domain.PrivateKeyBundle{
		Version:    domain.BundleVersion,
		PrivateKey: keys.Private.Slice(),
	})
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("%w: encrypt backup: %v", domain.ErrKeyProvisioning, err)
	}
	text, err := backup.EncodeBlob(blob)
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("%w: encode backup: %v", domain.ErrKeyProvisioning, err)
	}
	if err := m.client.UploadBackup(ctx, text); err != nil {
		return domain.KeyPair{}, fmt.Errorf("%w: upload backup: %v", domain.ErrKeyProvisioning, err)
	}
	return keys, nil
}

// CurrentKeys returns the session key pair, or false if the session is not
// keyed yet.
func (m *Manager) CurrentKeys() (domain.KeyPair, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		return domain.KeyPair{}, false
	}
	return *m.keys, true
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Logout wipes the in-memory keys and returns the manager to unkeyed. No
// re-fetch of the backup happens until the next login with a password.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys != nil {
		crypto.Wipe(m.keys.Private[:])
		m.keys = nil
	}
	m.state = StateUnkeyed
	m.log.Info().Msg("session keys cleared")
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Compile-time assertion that Manager implements domain.KeyManager.
var _ domain.KeyManager = (*Manager)(nil)
