package repository

import (
	"context"
	"time"

	"github.com/pillarworks/storefront/models"
)

// RefreshTokenRepository stores refresh-token families. Rows are kept after
// redemption so that a replayed token can be recognised.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	// Redeem moves an issued token to redeemed. It returns pkg.ErrNotFound
	// when the token is no longer issued, i.e. a concurrent redeem won.
	Redeem(ctx context.Context, id string, at time.Time) error
	MarkExpired(ctx context.Context, id string) error
	RevokeFamily(ctx context.Context, familyID string) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	// DeleteStale removes every family whose newest token expired before cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}
