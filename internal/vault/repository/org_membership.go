package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/secretvault/internal/database"
	apperrors "github.com/allisson/secretvault/internal/errors"
)

// SQLOrgMembership reads the organization_members table, which the surrounding platform
// maintains. The vault never writes to it.
type SQLOrgMembership struct {
	db     *sql.DB
	driver string
}

// NewSQLOrgMembership creates an organization membership reader for driver ("postgres" or "mysql").
func NewSQLOrgMembership(db *sql.DB, driver string) *SQLOrgMembership {
	return &SQLOrgMembership{db: db, driver: driver}
}

func (o *SQLOrgMembership) id(id uuid.UUID) any {
	if o.driver == "mysql" {
		return uuidBytes(id)
	}
	return id
}

func (o *SQLOrgMembership) rebind(query string) string {
	if o.driver == "mysql" {
		return query
	}
	return database.Rebind(query)
}

// IsMember reports whether userID belongs to orgID.
func (o *SQLOrgMembership) IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, o.db)

	query := o.rebind(`SELECT EXISTS(SELECT 1 FROM organization_members WHERE organization_id = ? AND user_id = ?)`)

	var member bool
	if err := querier.QueryRowContext(ctx, query, o.id(orgID), o.id(userID)).Scan(&member); err != nil {
		return false, apperrors.Storage(err, "failed to check organization membership")
	}
	return member, nil
}

// ListOrganizations returns every organization userID belongs to.
func (o *SQLOrgMembership) ListOrganizations(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	querier := database.GetTx(ctx, o.db)

	query := o.rebind(`SELECT organization_id FROM organization_members WHERE user_id = ? ORDER BY organization_id`)

	rows, err := querier.QueryContext(ctx, query, o.id(userID))
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list organizations")
	}
	defer rows.Close() //nolint:errcheck

	var orgs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.Storage(err, "failed to scan organization id")
		}
		orgs = append(orgs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage(err, "failed to iterate organizations")
	}
	return orgs, nil
}
