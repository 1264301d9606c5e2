package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
)

type sqliteIntegrationRepo struct {
	db database.TxQuerier
}

// NewSQLiteIntegrationRepo, constructor.
func NewSQLiteIntegrationRepo(db database.TxQuerier) IntegrationRepository {
	return &sqliteIntegrationRepo{db: db}
}

const integrationColumns = `provider, enabled, config, secret_enc, last_tested_at, last_test_ok, last_test_error, updated_at`

func scanIntegration(row interface{ Scan(...any) error }) (*models.Integration, error) {
	in := &models.Integration{}
	var cfg string
	err := row.Scan(&in.Provider, &in.Enabled, &cfg, &in.SecretEnc, &in.LastTestedAt, &in.LastTestOK,
		&in.LastTestError, &in.UpdatedAt)
	if err != nil {
		return nil, err
	}
	in.Config = json.RawMessage(cfg)
	return in, nil
}

func (r *sqliteIntegrationRepo) Get(ctx context.Context, provider models.IntegrationProvider) (*models.Integration, error) {
	in, err := scanIntegration(r.db.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE provider = ?`, provider))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return in, nil
}

func (r *sqliteIntegrationRepo) List(ctx context.Context) ([]models.Integration, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+integrationColumns+` FROM integrations ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer rows.Close()

	var out []models.Integration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integration: %w", err)
		}
		out = append(out, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating integrations: %w", err)
	}
	return out, nil
}

func (r *sqliteIntegrationRepo) Upsert(ctx context.Context, in *models.Integration) error {
	cfg := string(in.Config)
	if cfg == "" {
		cfg = "{}"
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO integrations (provider, enabled, config, secret_enc, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(provider) DO UPDATE SET
			enabled = excluded.enabled,
			config = excluded.config,
			secret_enc = excluded.secret_enc,
			updated_at = CURRENT_TIMESTAMP
		RETURNING updated_at`,
		in.Provider, in.Enabled, cfg, in.SecretEnc,
	).Scan(&in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save integration: %w", err)
	}
	return nil
}

// RecordTest stores the outcome of a connection test. The row is created if
// the provider is still running on environment defaults.
func (r *sqliteIntegrationRepo) RecordTest(ctx context.Context, provider models.IntegrationProvider, ok bool, errMsg string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO integrations (provider, last_tested_at, last_test_ok, last_test_error)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			last_tested_at = excluded.last_tested_at,
			last_test_ok = excluded.last_test_ok,
			last_test_error = excluded.last_test_error`,
		provider, at.UTC(), ok, errMsg)
	if err != nil {
		return fmt.Errorf("failed to record integration test: %w", err)
	}
	return nil
}
