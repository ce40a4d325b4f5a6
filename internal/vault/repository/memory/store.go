// Package memory provides in-process implementations of the vault repositories and transaction
// manager. It backs usecase tests and local experiments; state is lost on exit.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretvault/internal/crypto/domain"
	"github.com/allisson/secretvault/internal/database"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

type txKey struct{}

// Store holds every vault table in memory.
//
// A single mutex serializes transactions. Calls made outside a transaction take the same mutex
// for their own duration, so they never observe a transaction half applied. A failed
// transaction restores the snapshot taken when it began.
type Store struct {
	mu sync.Mutex

	secrets  map[uuid.UUID]*vaultDomain.Secret
	archived []*vaultDomain.ArchivedBundle
	shares   map[uuid.UUID]*vaultDomain.ShareGrant
	audit    []*vaultDomain.AuditEntry
	members  map[uuid.UUID]map[uuid.UUID]bool

	appendErr func(entry *vaultDomain.AuditEntry) error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		secrets: map[uuid.UUID]*vaultDomain.Secret{},
		shares:  map[uuid.UUID]*vaultDomain.ShareGrant{},
		members: map[uuid.UUID]map[uuid.UUID]bool{},
	}
}

// Secrets returns the secret repository view of the store.
func (s *Store) Secrets() *SecretRepository { return &SecretRepository{store: s} }

// Shares returns the share repository view of the store.
func (s *Store) Shares() *ShareRepository { return &ShareRepository{store: s} }

// Audit returns the audit repository view of the store.
func (s *Store) Audit() *AuditRepository { return &AuditRepository{store: s} }

// Orgs returns the organization membership view of the store.
func (s *Store) Orgs() *OrgMembership { return &OrgMembership{store: s} }

// TxManager returns a database.TxManager running transactions against the store.
func (s *Store) TxManager() database.TxManager { return &txManager{store: s} }

// FailAuditAppends makes every subsequent audit append return the error fn returns for it.
// A nil fn restores normal behaviour.
func (s *Store) FailAuditAppends(fn func(entry *vaultDomain.AuditEntry) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = fn
}

// Mutate applies fn to the stored secret in place, bypassing every repository check. It exists
// to simulate out-of-band corruption of persisted data.
func (s *Store) Mutate(id uuid.UUID, fn func(secret *vaultDomain.Secret)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.secrets[id]
	if ok {
		fn(secret)
	}
	return ok
}

// TamperAudit applies fn to the stored audit entry id in place, simulating an edit made
// directly in the database.
func (s *Store) TamperAudit(id uuid.UUID, fn func(entry *vaultDomain.AuditEntry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.audit {
		if e.ID == id {
			c := cloneAuditEntry(e)
			fn(c)
			s.audit[i] = c
			return true
		}
	}
	return false
}

// AuditEntries returns a copy of every audit entry in append order.
func (s *Store) AuditEntries() []*vaultDomain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*vaultDomain.AuditEntry, 0, len(s.audit))
	for _, e := range s.audit {
		out = append(out, cloneAuditEntry(e))
	}
	return out
}

// ArchivedBundles returns copies of the archived bundles of secretID.
func (s *Store) ArchivedBundles(secretID uuid.UUID) []*vaultDomain.ArchivedBundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*vaultDomain.ArchivedBundle
	for _, a := range s.archived {
		if a.SecretID == secretID {
			c := *a
			c.Bundle = cloneBundle(a.Bundle)
			out = append(out, &c)
		}
	}
	return out
}

// lock takes the store mutex unless ctx belongs to a running transaction, which already holds it.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	secrets  map[uuid.UUID]*vaultDomain.Secret
	archived []*vaultDomain.ArchivedBundle
	shares   map[uuid.UUID]*vaultDomain.ShareGrant
	audit    []*vaultDomain.AuditEntry
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		secrets:  make(map[uuid.UUID]*vaultDomain.Secret, len(s.secrets)),
		archived: make([]*vaultDomain.ArchivedBundle, 0, len(s.archived)),
		shares:   make(map[uuid.UUID]*vaultDomain.ShareGrant, len(s.shares)),
		audit:    slices.Clone(s.audit),
	}
	for id, secret := range s.secrets {
		snap.secrets[id] = cloneSecret(secret)
	}
	for _, a := range s.archived {
		c := *a
		c.Bundle = cloneBundle(a.Bundle)
		snap.archived = append(snap.archived, &c)
	}
	for id, g := range s.shares {
		snap.shares[id] = cloneShare(g)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.secrets = snap.secrets
	s.archived = snap.archived
	s.shares = snap.shares
	s.audit = snap.audit
}

type txManager struct {
	store *Store
}

// WithTx runs fn while holding the store mutex, restoring the prior state if fn fails.
func (t *txManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == t.store {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	snap := t.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, t.store)); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

func cloneBundle(b cryptoDomain.Bundle) cryptoDomain.Bundle {
	b.Ciphertext = slices.Clone(b.Ciphertext)
	b.WrappedDEK = slices.Clone(b.WrappedDEK)
	b.Salt = slices.Clone(b.Salt)
	b.Nonce = slices.Clone(b.Nonce)
	return b
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSecret(s *vaultDomain.Secret) *vaultDomain.Secret {
	c := *s
	c.Bundle = cloneBundle(s.Bundle)
	c.OrganizationID = clonePtr(s.OrganizationID)
	c.Tags = slices.Clone(s.Tags)
	c.Metadata = maps.Clone(s.Metadata)
	c.RotationPolicy = clonePtr(s.RotationPolicy)
	c.ExpiresAt = clonePtr(s.ExpiresAt)
	c.LastAccessedAt = clonePtr(s.LastAccessedAt)
	c.LastRotatedAt = clonePtr(s.LastRotatedAt)
	c.DeletedAt = clonePtr(s.DeletedAt)
	return &c
}

func cloneShare(g *vaultDomain.ShareGrant) *vaultDomain.ShareGrant {
	c := *g
	c.GranteeUserID = clonePtr(g.GranteeUserID)
	c.GranteeOrgID = clonePtr(g.GranteeOrgID)
	c.ExpiresAt = clonePtr(g.ExpiresAt)
	c.RevokedAt = clonePtr(g.RevokedAt)
	return &c
}

func cloneAuditEntry(e *vaultDomain.AuditEntry) *vaultDomain.AuditEntry {
	c := *e
	c.SecretID = clonePtr(e.SecretID)
	c.Metadata = maps.Clone(e.Metadata)
	c.Signature = slices.Clone(e.Signature)
	return &c
}
