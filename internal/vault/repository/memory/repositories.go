package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/secretvault/internal/errors"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

// SecretRepository is the in-memory secret table.
type SecretRepository struct {
	store *Store
}

func (r *SecretRepository) Create(ctx context.Context, secret *vaultDomain.Secret) error {
	defer r.store.lock(ctx)()
	if _, exists := r.store.secrets[secret.ID]; exists {
		return apperrors.Wrap(apperrors.ErrConflict, "secret already exists")
	}
	r.store.secrets[secret.ID] = cloneSecret(secret)
	return nil
}

func (r *SecretRepository) Get(ctx context.Context, id uuid.UUID) (*vaultDomain.Secret, error) {
	defer r.store.lock(ctx)()
	secret, ok := r.store.secrets[id]
	if !ok {
		return nil, vaultDomain.ErrSecretNotFound
	}
	return cloneSecret(secret), nil
}

// casTarget returns the stored secret with its revision bumped when it is active and still at
// expectedRevision.
func (r *SecretRepository) casTarget(id uuid.UUID, expectedRevision int64) (*vaultDomain.Secret, error) {
	stored, ok := r.store.secrets[id]
	if !ok {
		return nil, vaultDomain.ErrSecretNotFound
	}
	if stored.Revision != expectedRevision || !stored.Active {
		return nil, vaultDomain.ErrVersionConflict
	}
	stored.Revision++
	return stored, nil
}

func copyDescriptive(dst, src *vaultDomain.Secret) {
	c := cloneSecret(src)
	dst.Name = c.Name
	dst.Description = c.Description
	dst.Provider = c.Provider
	dst.Tags = c.Tags
	dst.Metadata = c.Metadata
	dst.RotationPolicy = c.RotationPolicy
	dst.ExpiresAt = c.ExpiresAt
	dst.UpdatedAt = c.UpdatedAt
}

func (r *SecretRepository) UpdateMetadata(
	ctx context.Context,
	secret *vaultDomain.Secret,
	expectedRevision int64,
) error {
	defer r.store.lock(ctx)()
	stored, err := r.casTarget(secret.ID, expectedRevision)
	if err != nil {
		return err
	}
	copyDescriptive(stored, secret)
	return nil
}

func (r *SecretRepository) ReplaceBundle(
	ctx context.Context,
	secret *vaultDomain.Secret,
	expectedRevision int64,
) error {
	defer r.store.lock(ctx)()
	stored, err := r.casTarget(secret.ID, expectedRevision)
	if err != nil {
		return err
	}
	copyDescriptive(stored, secret)
	stored.Bundle = cloneBundle(secret.Bundle)
	stored.Version = secret.Version
	stored.LastRotatedAt = clonePtr(secret.LastRotatedAt)
	stored.AttestationRef = secret.AttestationRef
	return nil
}

func (r *SecretRepository) SetAttestationRef(
	ctx context.Context,
	id uuid.UUID,
	version int,
	ref string,
) error {
	defer r.store.lock(ctx)()
	stored, ok := r.store.secrets[id]
	if ok && stored.Active && stored.Version == version {
		stored.AttestationRef = ref
	}
	return nil
}

func (r *SecretRepository) TouchAccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	defer r.store.lock(ctx)()
	stored, ok := r.store.secrets[id]
	if !ok {
		return vaultDomain.ErrSecretNotFound
	}
	stored.AccessCount++
	stored.LastAccessedAt = &at
	return nil
}

func (r *SecretRepository) SoftDelete(
	ctx context.Context,
	id uuid.UUID,
	expectedRevision int64,
	at time.Time,
	wipe bool,
) error {
	defer r.store.lock(ctx)()
	stored, err := r.casTarget(id, expectedRevision)
	if err != nil {
		return err
	}
	stored.Active = false
	stored.DeletedAt = &at
	stored.UpdatedAt = at
	if wipe {
		stored.Bundle.Wipe()
	}
	return nil
}

func (r *SecretRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	defer r.store.lock(ctx)()
	if _, ok := r.store.secrets[id]; !ok {
		return vaultDomain.ErrSecretNotFound
	}
	delete(r.store.secrets, id)
	for shareID, g := range r.store.shares {
		if g.SecretID == id {
			delete(r.store.shares, shareID)
		}
	}
	r.store.archived = slices.DeleteFunc(r.store.archived, func(a *vaultDomain.ArchivedBundle) bool {
		return a.SecretID == id
	})
	return nil
}

func (r *SecretRepository) List(
	ctx context.Context,
	filter vaultDomain.SecretFilter,
) ([]*vaultDomain.Secret, error) {
	defer r.store.lock(ctx)()

	var matched []*vaultDomain.Secret
	for _, s := range r.store.secrets {
		if !s.Active {
			continue
		}
		visible := s.OwnerUserID == filter.AccessibleTo
		if !visible && !filter.OwnedOnly {
			visible = slices.Contains(filter.SharedIDs, s.ID)
		}
		if !visible {
			continue
		}
		if filter.OrganizationID != nil && (s.OrganizationID == nil || *s.OrganizationID != *filter.OrganizationID) {
			continue
		}
		if filter.Type != "" && s.Type != filter.Type {
			continue
		}
		if filter.Provider != "" && s.Provider != filter.Provider {
			continue
		}
		if !containsAll(s.Tags, filter.Tags) {
			continue
		}
		matched = append(matched, s)
	}

	slices.SortFunc(matched, func(a, b *vaultDomain.Secret) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})
	return page(matched, filter.Offset, filter.Limit, cloneSecret), nil
}

func (r *SecretRepository) ListDueForRotation(
	ctx context.Context,
	now time.Time,
	offset, limit int,
) ([]*vaultDomain.Secret, error) {
	return r.listByID(ctx, offset, limit, func(s *vaultDomain.Secret) bool {
		return s.IsDueForRotation(now)
	}), nil
}

func (r *SecretRepository) ListNotUsingMasterKey(
	ctx context.Context,
	masterKeyID string,
	offset, limit int,
) ([]*vaultDomain.Secret, error) {
	return r.listByID(ctx, offset, limit, func(s *vaultDomain.Secret) bool {
		return s.MasterKeyID != masterKeyID
	}), nil
}

func (r *SecretRepository) listByID(
	ctx context.Context,
	offset, limit int,
	match func(s *vaultDomain.Secret) bool,
) []*vaultDomain.Secret {
	defer r.store.lock(ctx)()

	var matched []*vaultDomain.Secret
	for _, s := range r.store.secrets {
		if s.Active && match(s) {
			matched = append(matched, s)
		}
	}
	slices.SortFunc(matched, func(a, b *vaultDomain.Secret) int {
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return page(matched, offset, limit, cloneSecret)
}

func (r *SecretRepository) Archive(ctx context.Context, archived *vaultDomain.ArchivedBundle) error {
	defer r.store.lock(ctx)()
	c := *archived
	c.Bundle = cloneBundle(archived.Bundle)
	r.store.archived = append(r.store.archived, &c)
	return nil
}

func (r *SecretRepository) PurgeArchived(ctx context.Context, before time.Time) (int64, error) {
	defer r.store.lock(ctx)()
	n := len(r.store.archived)
	r.store.archived = slices.DeleteFunc(r.store.archived, func(a *vaultDomain.ArchivedBundle) bool {
		return a.ExpiresAt.Before(before)
	})
	return int64(n - len(r.store.archived)), nil
}

// ShareRepository is the in-memory share grant table.
type ShareRepository struct {
	store *Store
}

func (r *ShareRepository) Create(ctx context.Context, grant *vaultDomain.ShareGrant) error {
	defer r.store.lock(ctx)()
	if _, exists := r.store.shares[grant.ID]; exists {
		return apperrors.Wrap(apperrors.ErrConflict, "share already exists")
	}
	grantee := vaultDomain.Grantee{UserID: grant.GranteeUserID, OrgID: grant.GranteeOrgID}
	if grant.Active && r.activeForGrantee(grant.SecretID, grantee) != nil {
		return apperrors.Wrap(apperrors.ErrConflict, "active share for grantee already exists")
	}
	r.store.shares[grant.ID] = cloneShare(grant)
	return nil
}

func (r *ShareRepository) Update(ctx context.Context, grant *vaultDomain.ShareGrant) error {
	defer r.store.lock(ctx)()
	if _, ok := r.store.shares[grant.ID]; !ok {
		return vaultDomain.ErrShareNotFound
	}
	r.store.shares[grant.ID] = cloneShare(grant)
	return nil
}

func (r *ShareRepository) Get(ctx context.Context, id uuid.UUID) (*vaultDomain.ShareGrant, error) {
	defer r.store.lock(ctx)()
	g, ok := r.store.shares[id]
	if !ok {
		return nil, vaultDomain.ErrShareNotFound
	}
	return cloneShare(g), nil
}

func (r *ShareRepository) GetActiveForGrantee(
	ctx context.Context,
	secretID uuid.UUID,
	grantee vaultDomain.Grantee,
) (*vaultDomain.ShareGrant, error) {
	defer r.store.lock(ctx)()
	g := r.activeForGrantee(secretID, grantee)
	if g == nil {
		return nil, vaultDomain.ErrShareNotFound
	}
	return cloneShare(g), nil
}

func (r *ShareRepository) activeForGrantee(secretID uuid.UUID, grantee vaultDomain.Grantee) *vaultDomain.ShareGrant {
	for _, g := range r.store.shares {
		if !g.Active || g.SecretID != secretID {
			continue
		}
		if grantee.UserID != nil && g.GranteeUserID != nil && *g.GranteeUserID == *grantee.UserID {
			return g
		}
		if grantee.OrgID != nil && g.GranteeOrgID != nil && *g.GranteeOrgID == *grantee.OrgID {
			return g
		}
	}
	return nil
}

func (r *ShareRepository) ListBySecret(
	ctx context.Context,
	secretID uuid.UUID,
) ([]*vaultDomain.ShareGrant, error) {
	defer r.store.lock(ctx)()
	var out []*vaultDomain.ShareGrant
	for _, g := range r.store.shares {
		if g.SecretID == secretID {
			out = append(out, cloneShare(g))
		}
	}
	sortShares(out)
	return out, nil
}

func (r *ShareRepository) ListActiveForUser(
	ctx context.Context,
	userID uuid.UUID,
	orgIDs []uuid.UUID,
	now time.Time,
) ([]*vaultDomain.ShareGrant, error) {
	defer r.store.lock(ctx)()
	var out []*vaultDomain.ShareGrant
	for _, g := range r.store.shares {
		if !g.IsEffective(now) {
			continue
		}
		if (g.GranteeUserID != nil && *g.GranteeUserID == userID) ||
			(g.GranteeOrgID != nil && slices.Contains(orgIDs, *g.GranteeOrgID)) {
			out = append(out, cloneShare(g))
		}
	}
	sortShares(out)
	return out, nil
}

func sortShares(grants []*vaultDomain.ShareGrant) {
	slices.SortFunc(grants, func(a, b *vaultDomain.ShareGrant) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}

// AuditRepository is the in-memory, append-only audit table.
type AuditRepository struct {
	store *Store
}

func (r *AuditRepository) NextSequence(ctx context.Context, secretID uuid.UUID) (int64, error) {
	defer r.store.lock(ctx)()
	var maxSeq int64
	for _, e := range r.store.audit {
		if e.SecretID != nil && *e.SecretID == secretID && e.Sequence > maxSeq {
			maxSeq = e.Sequence
		}
	}
	return maxSeq + 1, nil
}

func (r *AuditRepository) Append(ctx context.Context, entry *vaultDomain.AuditEntry) error {
	defer r.store.lock(ctx)()
	if r.store.appendErr != nil {
		if err := r.store.appendErr(entry); err != nil {
			return err
		}
	}
	if entry.SecretID != nil {
		for _, e := range r.store.audit {
			if e.SecretID != nil && *e.SecretID == *entry.SecretID && e.Sequence == entry.Sequence {
				return vaultDomain.ErrAuditSequenceConflict
			}
		}
	}
	r.store.audit = append(r.store.audit, cloneAuditEntry(entry))
	return nil
}

func (r *AuditRepository) ListBySecret(
	ctx context.Context,
	secretID uuid.UUID,
	offset, limit int,
) ([]*vaultDomain.AuditEntry, error) {
	defer r.store.lock(ctx)()
	var matched []*vaultDomain.AuditEntry
	for _, e := range r.store.audit {
		if e.SecretID != nil && *e.SecretID == secretID {
			matched = append(matched, e)
		}
	}
	slices.SortFunc(matched, func(a, b *vaultDomain.AuditEntry) int {
		return cmp.Compare(b.Sequence, a.Sequence)
	})
	return page(matched, offset, limit, cloneAuditEntry), nil
}

func (r *AuditRepository) ListRange(
	ctx context.Context,
	filter vaultDomain.AuditFilter,
) ([]*vaultDomain.AuditEntry, error) {
	defer r.store.lock(ctx)()
	var matched []*vaultDomain.AuditEntry
	for _, e := range r.store.audit {
		if filter.SecretID != nil && (e.SecretID == nil || *e.SecretID != *filter.SecretID) {
			continue
		}
		if filter.CreatedAt != nil && e.CreatedAt.Before(*filter.CreatedAt) {
			continue
		}
		if filter.Before != nil && !e.CreatedAt.Before(*filter.Before) {
			continue
		}
		matched = append(matched, e)
	}
	slices.SortStableFunc(matched, func(a, b *vaultDomain.AuditEntry) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return page(matched, filter.Offset, filter.Limit, cloneAuditEntry), nil
}

// OrgMembership is an in-memory organization_members table.
type OrgMembership struct {
	store *Store
}

// AddMember records userID as a member of orgID.
func (o *OrgMembership) AddMember(orgID, userID uuid.UUID) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	if o.store.members[orgID] == nil {
		o.store.members[orgID] = map[uuid.UUID]bool{}
	}
	o.store.members[orgID][userID] = true
}

// RemoveMember removes userID from orgID.
func (o *OrgMembership) RemoveMember(orgID, userID uuid.UUID) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	delete(o.store.members[orgID], userID)
}

func (o *OrgMembership) IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	defer o.store.lock(ctx)()
	return o.store.members[orgID][userID], nil
}

func (o *OrgMembership) ListOrganizations(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	defer o.store.lock(ctx)()
	var orgs []uuid.UUID
	for orgID, users := range o.store.members {
		if users[userID] {
			orgs = append(orgs, orgID)
		}
	}
	slices.SortFunc(orgs, func(a, b uuid.UUID) int { return cmp.Compare(a.String(), b.String()) })
	return orgs, nil
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

func page[T any](items []*T, offset, limit int, clone func(*T) *T) []*T {
	if offset >= len(items) {
		return []*T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	out := make([]*T, 0, len(items))
	for _, item := range items {
		out = append(out, clone(item))
	}
	return out
}
