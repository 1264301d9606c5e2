package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
)

type sqliteRefreshTokenRepo struct {
	db database.TxQuerier
}

// NewSQLiteRefreshTokenRepo, constructor.
func NewSQLiteRefreshTokenRepo(db database.TxQuerier) RefreshTokenRepository {
	return &sqliteRefreshTokenRepo{db: db}
}

func (r *sqliteRefreshTokenRepo) Create(ctx context.Context, t *models.RefreshToken) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.RefreshIssued
	}
	t.ExpiresAt = t.ExpiresAt.UTC()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO refresh_tokens (id, family_id, user_id, token_hash, status, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING created_at`,
		t.ID, t.FamilyID, t.UserID, t.TokenHash, t.Status, t.ExpiresAt,
	).Scan(&t.CreatedAt)
	if err != nil {
		return mapWriteError(err, "create refresh token", "refresh token collision", "unknown user")
	}
	return nil
}

func (r *sqliteRefreshTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	t := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, family_id, user_id, token_hash, status, expires_at, redeemed_at, created_at
		FROM refresh_tokens WHERE token_hash = ?`, tokenHash,
	).Scan(&t.ID, &t.FamilyID, &t.UserID, &t.TokenHash, &t.Status, &t.ExpiresAt, &t.RedeemedAt, &t.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return t, nil
}

func (r *sqliteRefreshTokenRepo) Redeem(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET status = ?, redeemed_at = ?
		WHERE id = ? AND status = ?`,
		models.RefreshRedeemed, at.UTC(), id, models.RefreshIssued)
	if err != nil {
		return fmt.Errorf("failed to redeem refresh token: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteRefreshTokenRepo) MarkExpired(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET status = ? WHERE id = ? AND status = ?`,
		models.RefreshExpired, id, models.RefreshIssued)
	if err != nil {
		return fmt.Errorf("failed to expire refresh token: %w", err)
	}
	return nil
}

func (r *sqliteRefreshTokenRepo) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET status = ?
		WHERE family_id = ? AND status IN (?, ?)`,
		models.RefreshRevoked, familyID, models.RefreshIssued, models.RefreshRedeemed)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke token family: %w", err)
	}
	return res.RowsAffected()
}

func (r *sqliteRefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET status = ?
		WHERE user_id = ? AND status IN (?, ?)`,
		models.RefreshRevoked, userID, models.RefreshIssued, models.RefreshRedeemed)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return res.RowsAffected()
}

func (r *sqliteRefreshTokenRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE family_id IN (
			SELECT family_id FROM refresh_tokens
			GROUP BY family_id HAVING MAX(expires_at) < ?
		)`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale refresh tokens: %w", err)
	}
	return res.RowsAffected()
}
