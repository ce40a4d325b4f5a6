package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
	cryptoService "github.com/allisson/secretvault/internal/crypto/service"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
	"github.com/allisson/secretvault/internal/vault/repository/memory"
)

var (
	_ SecretRepository = (*memory.SecretRepository)(nil)
	_ ShareRepository  = (*memory.ShareRepository)(nil)
	_ AuditRepository  = (*memory.AuditRepository)(nil)
	_ OrgMembership    = (*memory.OrgMembership)(nil)
	_ EnvelopeCipher   = (*cryptoService.EnvelopeCipher)(nil)
	_ AuditSigner      = (*cryptoService.AuditSigner)(nil)
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	names  []string
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, name string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.names = append(p.names, name)
	p.events = append(p.events, payload)
	return nil
}

func (p *recordingPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.names...)
}

type fakeAttestor struct {
	mu     sync.Mutex
	hashes map[string][]byte
}

func (a *fakeAttestor) Attest(_ context.Context, hash []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hashes == nil {
		a.hashes = map[string][]byte{}
	}
	ref := uuid.NewString()
	a.hashes[ref] = bytes.Clone(hash)
	return ref, nil
}

func (a *fakeAttestor) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.hashes)
}

func (a *fakeAttestor) Verify(_ context.Context, ref string, hash []byte) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	stored, ok := a.hashes[ref]
	return ok && bytes.Equal(stored, hash), nil
}

// failingAttestor counts submissions and rejects every one of them.
type failingAttestor struct {
	calls atomic.Int32
}

func (a *failingAttestor) Attest(context.Context, []byte) (string, error) {
	a.calls.Add(1)
	return "", errors.New("chain unavailable")
}

func (a *failingAttestor) Verify(context.Context, string, []byte) (bool, error) {
	return false, errors.New("chain unavailable")
}

// interleavedSecrets runs hook once, right after the next successful Get, to let another
// writer commit between a read and the compare-and-swap that follows it.
type interleavedSecrets struct {
	SecretRepository
	armed atomic.Bool
	hook  func()
}

func (s *interleavedSecrets) arm(hook func()) {
	s.hook = hook
	s.armed.Store(true)
}

func (s *interleavedSecrets) Get(ctx context.Context, id uuid.UUID) (*vaultDomain.Secret, error) {
	secret, err := s.SecretRepository.Get(ctx, id)
	if err == nil && s.armed.CompareAndSwap(true, false) {
		s.hook()
	}
	return secret, err
}

// failingReplaceSecrets fails every ReplaceBundle with err.
type failingReplaceSecrets struct {
	SecretRepository
	err error
}

func (s *failingReplaceSecrets) ReplaceBundle(context.Context, *vaultDomain.Secret, int64) error {
	return s.err
}

type fakeValidator struct {
	got []byte
}

func (f *fakeValidator) Validate(
	_ context.Context,
	_ string,
	_ vaultDomain.SecretType,
	value []byte,
) (*CredentialTestResult, error) {
	f.got = bytes.Clone(value)
	return &CredentialTestResult{Valid: bytes.HasPrefix(value, []byte("sk-")), Message: "checked"}, nil
}

type fixtureOptions struct {
	activeKeyID string
	rotation    RotationConfig
	attestor    BlockchainAttestor
	validator   ProviderValidator
	secrets     func(SecretRepository) SecretRepository
}

type fixture struct {
	store     *memory.Store
	clock     *testClock
	publisher *recordingPublisher
	uc        *vaultUseCase
	keys      *cryptoDomain.MasterKeyChain
}

func testMasterKeyChain(t *testing.T, activeID string) *cryptoDomain.MasterKeyChain {
	t.Helper()
	chain, err := cryptoDomain.NewMasterKeyChain(activeID,
		&cryptoDomain.MasterKey{ID: "key1", Key: bytes.Repeat([]byte{0x11}, cryptoDomain.KeySize)},
		&cryptoDomain.MasterKey{ID: "key2", Key: bytes.Repeat([]byte{0x22}, cryptoDomain.KeySize)},
	)
	require.NoError(t, err)
	t.Cleanup(chain.Close)
	return chain
}

func newFixture(t *testing.T, opts ...func(o *fixtureOptions)) *fixture {
	t.Helper()
	o := fixtureOptions{activeKeyID: "key1", rotation: DefaultRotationConfig}
	for _, opt := range opts {
		opt(&o)
	}
	f := &fixture{
		store:     memory.NewStore(),
		clock:     newTestClock(),
		publisher: &recordingPublisher{},
	}
	f.uc = f.newUseCase(t, o)
	return f
}

// newUseCase builds a use case over the fixture's store, clock and publisher.
func (f *fixture) newUseCase(t *testing.T, o fixtureOptions) *vaultUseCase {
	t.Helper()
	if o.activeKeyID == "" {
		o.activeKeyID = "key1"
	}
	f.keys = testMasterKeyChain(t, o.activeKeyID)
	deriver, err := cryptoService.NewKeyDeriver(f.keys, cryptoDomain.MinKDFIterations)
	require.NoError(t, err)
	envelope, err := cryptoService.NewEnvelopeCipher(deriver, cryptoService.NewAEADManager(), cryptoDomain.AESGCM)
	require.NoError(t, err)

	var secrets SecretRepository = f.store.Secrets()
	if o.secrets != nil {
		secrets = o.secrets(secrets)
	}

	return newVaultUseCase(
		f.store.TxManager(),
		secrets,
		f.store.Shares(),
		f.store.Audit(),
		envelope,
		cryptoService.NewAuditSigner(f.keys),
		f.store.Orgs(),
		f.publisher,
		o.attestor,
		o.validator,
		o.rotation,
		slog.New(slog.DiscardHandler),
		f.clock.Now,
	)
}

func (f *fixture) createSecret(t *testing.T, owner uuid.UUID, value string) *vaultDomain.Secret {
	t.Helper()
	secret, err := f.uc.CreateSecret(context.Background(), owner, vaultDomain.DraftInput{
		Type:     string(vaultDomain.SecretTypeAPIKey),
		Provider: "stripe",
		Name:     "payments",
		Tags:     []string{"prod"},
		Value:    []byte(value),
	})
	require.NoError(t, err)
	return secret
}

func (f *fixture) auditFor(secretID uuid.UUID, action vaultDomain.AuditAction) []*vaultDomain.AuditEntry {
	var out []*vaultDomain.AuditEntry
	for _, e := range f.store.AuditEntries() {
		if e.Action == action && e.SecretID != nil && *e.SecretID == secretID {
			out = append(out, e)
		}
	}
	return out
}

func (f *fixture) lastAudit() *vaultDomain.AuditEntry {
	entries := f.store.AuditEntries()
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1]
}
