package session

import (
	"context"

	"crmhub/internal/models"
)

// Identity is the signed-in caller of one request. Profile may be nil when
// the profile row does not exist yet.
type Identity struct {
	UserID    string          `json:"user_id"`
	Email     string          `json:"email"`
	SessionID string          `json:"session_id"`
	Profile   *models.Profile `json:"profile"`
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
