package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
)

type sqlitePillarRepo struct {
	db database.TxQuerier
}

// NewSQLitePillarRepo, constructor.
func NewSQLitePillarRepo(db database.TxQuerier) PillarRepository {
	return &sqlitePillarRepo{db: db}
}

const pillarColumns = `id, name, slug, description, icon, sort_order, is_active, created_at, updated_at`

func scanPillar(row interface{ Scan(...any) error }) (*models.Pillar, error) {
	p := &models.Pillar{}
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Icon, &p.SortOrder, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *sqlitePillarRepo) Create(ctx context.Context, p *models.Pillar) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO pillars (name, slug, description, icon, sort_order, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, created_at, updated_at`,
		p.Name, p.Slug, p.Description, p.Icon, p.SortOrder, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "create pillar", "a pillar with this slug already exists", "invalid pillar reference")
	}
	return nil
}

func (r *sqlitePillarRepo) GetByID(ctx context.Context, id int64) (*models.Pillar, error) {
	p, err := scanPillar(r.db.QueryRowContext(ctx, `SELECT `+pillarColumns+` FROM pillars WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: pillar not found", pkg.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pillar: %w", err)
	}
	return p, nil
}

func (r *sqlitePillarRepo) GetBySlug(ctx context.Context, slug string) (*models.Pillar, error) {
	p, err := scanPillar(r.db.QueryRowContext(ctx, `SELECT `+pillarColumns+` FROM pillars WHERE slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: pillar not found", pkg.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pillar by slug: %w", err)
	}
	return p, nil
}

func (r *sqlitePillarRepo) List(ctx context.Context, activeOnly bool) ([]models.Pillar, error) {
	query := `SELECT ` + pillarColumns + ` FROM pillars`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY sort_order, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pillars: %w", err)
	}
	defer rows.Close()

	pillars := []models.Pillar{}
	for rows.Next() {
		p, err := scanPillar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pillar: %w", err)
		}
		pillars = append(pillars, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pillars: %w", err)
	}
	return pillars, nil
}

func (r *sqlitePillarRepo) Update(ctx context.Context, p *models.Pillar) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE pillars SET name = ?, slug = ?, description = ?, icon = ?, sort_order = ?, is_active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at`,
		p.Name, p.Slug, p.Description, p.Icon, p.SortOrder, p.IsActive, p.ID,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: pillar not found", pkg.ErrNotFound)
	}
	if err != nil {
		return mapWriteError(err, "update pillar", "a pillar with this slug already exists", "invalid pillar reference")
	}
	return nil
}

func (r *sqlitePillarRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pillars WHERE id = ?`, id)
	if err != nil {
		return mapWriteError(err, "delete pillar", "pillar conflict", "pillar still has services")
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("pillar %d: %w", id, err)
	}
	return nil
}

func (r *sqlitePillarRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pillars`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pillars: %w", err)
	}
	return n, nil
}
