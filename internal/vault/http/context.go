// Package http provides HTTP handlers and middleware for the vault API.
package http

import (
	"context"

	"github.com/google/uuid"
)

// requesterKey is a context key type for storing the requesting user.
type requesterKey struct{}

// WithRequester stores the requesting user id in the context.
func WithRequester(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, requesterKey{}, userID)
}

// GetRequester retrieves the requesting user id from the context.
// Returns (uuid.Nil, false) when RequesterMiddleware did not run.
func GetRequester(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(requesterKey{}).(uuid.UUID)
	return userID, ok
}
