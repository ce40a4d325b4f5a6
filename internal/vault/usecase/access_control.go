package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

// AccessControl resolves whether a requester may act on a secret.
//
// Grant state is read from the store on every check so a revocation is observed by the very
// next request.
type AccessControl struct {
	shares ShareRepository
	orgs   OrgMembership
	now    func() time.Time
}

// NewAccessControl creates an AccessControl.
func NewAccessControl(shares ShareRepository, orgs OrgMembership, now func() time.Time) *AccessControl {
	if now == nil {
		now = time.Now
	}
	return &AccessControl{shares: shares, orgs: orgs, now: now}
}

// EffectiveLevel returns the highest level requester holds on secret, or "" when none.
// The owner always holds admin. The second return is the highest level among the requester's
// active but expired grants.
func (a *AccessControl) EffectiveLevel(
	ctx context.Context,
	secret *vaultDomain.Secret,
	requester uuid.UUID,
) (level, expired vaultDomain.PermissionLevel, err error) {
	if secret.OwnerUserID == requester {
		return vaultDomain.PermissionAdmin, "", nil
	}

	grants, err := a.shares.ListBySecret(ctx, secret.ID)
	if err != nil {
		return "", "", err
	}

	now := a.now()
	memberOf := map[uuid.UUID]bool{}

	for _, g := range grants {
		if !g.Active {
			continue
		}

		applies := false
		switch {
		case g.GranteeUserID != nil:
			applies = *g.GranteeUserID == requester
		case g.GranteeOrgID != nil:
			member, checked := memberOf[*g.GranteeOrgID]
			if !checked {
				member, err = a.orgs.IsMember(ctx, *g.GranteeOrgID, requester)
				if err != nil {
					return "", "", err
				}
				memberOf[*g.GranteeOrgID] = member
			}
			applies = member
		}
		if !applies {
			continue
		}

		if !g.IsEffective(now) {
			if g.PermissionLevel.Satisfies(expired) {
				expired = g.PermissionLevel
			}
			continue
		}
		if g.PermissionLevel.Satisfies(level) {
			level = g.PermissionLevel
		}
	}

	return level, expired, nil
}

// CheckAccess returns nil when requester holds at least required on secret.
//
// It returns ErrShareExpired when the only grant that would satisfy required has expired and
// ErrPermissionDenied otherwise.
func (a *AccessControl) CheckAccess(
	ctx context.Context,
	secret *vaultDomain.Secret,
	requester uuid.UUID,
	required vaultDomain.PermissionLevel,
) error {
	level, expired, err := a.EffectiveLevel(ctx, secret, requester)
	if err != nil {
		return err
	}
	if level.Satisfies(required) {
		return nil
	}
	if expired.Satisfies(required) {
		return vaultDomain.ErrShareExpired
	}
	return vaultDomain.ErrPermissionDenied
}

// CheckOwner returns ErrPermissionDenied unless requester owns secret.
func (a *AccessControl) CheckOwner(secret *vaultDomain.Secret, requester uuid.UUID) error {
	if secret.OwnerUserID != requester {
		return vaultDomain.ErrPermissionDenied
	}
	return nil
}
