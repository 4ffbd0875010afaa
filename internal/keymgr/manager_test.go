package keymgr_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"fromchat/internal/domain"
	"fromchat/internal/keymgr"
)

// fakeDelivery is an in-memory stand-in for the server's crypto endpoints.
type fakeDelivery struct {
	mu        sync.Mutex
	publicKey *domain.X25519Public
	blob      *string

	failFetchBackup bool
	failPublish     bool
	enterFetch      chan struct{} // if set, FetchBackup signals then blocks on releaseFetch
	releaseFetch    chan struct{}
}

var errNetwork = errors.New("network down")

func (f *fakeDelivery) FetchPublicKey(ctx context.Context) (domain.X25519Public, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publicKey == nil {
		return domain.X25519Public{}, false, nil
	}
	return *f.publicKey, true, nil
}

func (f *fakeDelivery) PublishPublicKey(ctx context.Context, pub domain.X25519Public) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPublish {
		return errNetwork
	}
	f.publicKey = &pub
	return nil
}

func (f *fakeDelivery) FetchBackup(ctx context.Context) (string, bool, error) {
	if f.enterFetch != nil {
		f.enterFetch <- struct{}{}
		<-f.releaseFetch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFetchBackup {
		return "", false, errNetwork
	}
	if f.blob == nil {
		return "", false, nil
	}
	return *f.blob, true, nil
}

func (f *fakeDelivery) UploadBackup(ctx context.Context, blob string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blob = &blob
	return nil
}

func (f *fakeDelivery) PublicKeyOf(ctx context.Context, user domain.UserID) (domain.X25519Public, error) {
	return domain.X25519Public{}, errors.New("not implemented")
}

func (f *fakeDelivery) SendDM(ctx context.Context, req domain.DmSendRequest) error {
	return errors.New("not implemented")
}

func (f *fakeDelivery) FetchDMs(ctx context.Context, since int64) ([]domain.DmEnvelope, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDelivery) History(ctx context.Context, peer domain.UserID) ([]domain.DmEnvelope, error) {
	return nil, errors.New("not implemented")
}

func newManager(f *fakeDelivery) *keymgr.Manager {
	return keymgr.New(f, zerolog.Nop())
}

func TestFirstTimeProvisioning(t *testing.T) {
	f := &fakeDelivery{}
	m := newManager(f)

	keys, err := m.EnsureKeysOnLogin(context.Background(), "pw1")
	if err != nil {
		t.Fatalf("EnsureKeysOnLogin: %v", err)
	}
	if f.publicKey == nil || *f.publicKey != keys.Public {
		t.Fatal("public key not published to the server")
	}
	if f.blob == nil {
		t.Fatal("backup not uploaded")
	}
	if m.State() != keymgr.StateReady {
		t.Fatalf("want Ready, got %v", m.State())
	}
}

func TestRestoreRecoversSamePrivateKey(t *testing.T) {
	f := &fakeDelivery{}

	first := newManager(f)
	keys1, err := first.EnsureKeysOnLogin(context.Background(), "pw1")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	first.Logout()

	// New session, same account, same password.
	second := newManager(f)
	keys2, err := second.EnsureKeysOnLogin(context.Background(), "pw1")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if keys1.Private != keys2.Private {
		t.Fatal("restored private key differs from the provisioned one")
	}
	if keys1.Public != keys2.Public {
		t.Fatal("restored public key differs from the provisioned one")
	}
}

func TestWrongPasswordOnRestore(t *testing.T) {
	f := &fakeDelivery{}
	if _, err := newManager(f).EnsureKeysOnLogin(context.Background(), "pw1"); err != nil {
		t.Fatalf("provision: %v", err)
	}

	_, err := newManager(f).EnsureKeysOnLogin(context.Background(), "wrong")
	if !errors.Is(err, domain.ErrBackupDecryption) {
		t.Fatalf("want ErrBackupDecryption, got %v", err)
	}
}

func TestRecoveryOfLastResort(t *testing.T) {
	f := &fakeDelivery{}
	keys1, err := newManager(f).EnsureKeysOnLogin(context.Background(), "pw1")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	oldBlob := *f.blob

	// Server lost the public key record but still has the backup.
	f.publicKey = nil

	keys2, err := newManager(f).EnsureKeysOnLogin(context.Background(), "pw1")
	if err != nil {
		t.Fatalf("recovery login: %v", err)
	}
	if keys2.Private == keys1.Private || keys2.Public == keys1.Public {
		t.Fatal("recovery did not generate a new key pair")
	}
	if f.publicKey == nil || *f.publicKey != keys2.Public {
		t.Fatal("new public key not published")
	}
	if *f.blob == oldBlob {
		t.Fatal("backup not overwritten with the new key")
	}
}

func TestNetworkFailureIsProvisioningError(t *testing.T) {
	f := &fakeDelivery{failFetchBackup: true}
	_, err := newManager(f).EnsureKeysOnLogin(context.Background(), "pw1")
	if !errors.Is(err, domain.ErrKeyProvisioning) {
		t.Fatalf("want ErrKeyProvisioning, got %v", err)
	}

	f2 := &fakeDelivery{failPublish: true}
	_, err = newManager(f2).EnsureKeysOnLogin(context.Background(), "pw1")
	if !errors.Is(err, domain.ErrKeyProvisioning) {
		t.Fatalf("want ErrKeyProvisioning, got %v", err)
	}
}

func TestSingleFlightGuard(t *testing.T) {
	f := &fakeDelivery{
		enterFetch:   make(chan struct{}, 1),
		releaseFetch: make(chan struct{}),
	}
	m := newManager(f)

	done := make(chan error, 1)
	go func() {
		_, err := m.EnsureKeysOnLogin(context.Background(), "pw1")
		done <- err
	}()
	<-f.enterFetch // first call is now inside FetchBackup

	if _, err := m.EnsureKeysOnLogin(context.Background(), "pw1"); !errors.Is(err, domain.ErrProvisioningInFlight) {
		t.Fatalf("want ErrProvisioningInFlight, got %v", err)
	}

	f.enterFetch = nil
	close(f.releaseFetch)
	if err := <-done; err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	// After completion the guard is released.
	if _, err := m.EnsureKeysOnLogin(context.Background(), "pw1"); err != nil {
		t.Fatalf("retry after completion: %v", err)
	}
}

func TestCurrentKeysBeforeLogin(t *testing.T) {
	m := newManager(&fakeDelivery{})
	if _, ok := m.CurrentKeys(); ok {
		t.Fatal("unkeyed manager reported keys")
	}
}

func TestLogoutClearsKeys(t *testing.T) {
	f := &fakeDelivery{}
	m := newManager(f)
	if _, err := m.EnsureKeysOnLogin(context.Background(), "pw1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	m.Logout()
	if _, ok := m.CurrentKeys(); ok {
		t.Fatal("keys survived logout")
	}
	if m.State() != keymgr.StateUnkeyed {
		t.Fatalf("want Unkeyed after logout, got %v", m.State())
	}
}
