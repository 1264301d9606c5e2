package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
)

type sqliteServiceRepo struct {
	db database.TxQuerier
}

// NewSQLiteServiceRepo, constructor.
func NewSQLiteServiceRepo(db database.TxQuerier) ServiceRepository {
	return &sqliteServiceRepo{db: db}
}

// Services are always read joined with their pillar so listings can show the
// pillar name without a second query.
const serviceSelect = `
	SELECT s.id, s.pillar_id, p.name, p.slug, s.title, s.slug, s.summary, s.description, s.type,
		s.price_from, s.price_label, s.features, s.sort_order, s.is_active, s.created_at, s.updated_at
	FROM services s
	JOIN pillars p ON p.id = s.pillar_id`

func scanService(row interface{ Scan(...any) error }) (*models.Service, error) {
	s := &models.Service{}
	var features string
	err := row.Scan(&s.ID, &s.PillarID, &s.PillarName, &s.PillarSlug, &s.Title, &s.Slug, &s.Summary,
		&s.Description, &s.Type, &s.PriceFrom, &s.PriceLabel, &features, &s.SortOrder, &s.IsActive,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(features), &s.Features); err != nil {
		return nil, fmt.Errorf("service %d has malformed features: %w", s.ID, err)
	}
	if s.Features == nil {
		s.Features = []string{}
	}
	return s, nil
}

func encodeFeatures(features []string) (string, error) {
	if features == nil {
		features = []string{}
	}
	b, err := json.Marshal(features)
	if err != nil {
		return "", fmt.Errorf("failed to encode features: %w", err)
	}
	return string(b), nil
}

const (
	serviceConflictMsg = "a service with this slug already exists"
	serviceFKMsg       = "pillar does not exist"
)

func (r *sqliteServiceRepo) Create(ctx context.Context, s *models.Service) error {
	features, err := encodeFeatures(s.Features)
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO services (pillar_id, title, slug, summary, description, type, price_from, price_label,
			features, sort_order, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at, updated_at`,
		s.PillarID, s.Title, s.Slug, s.Summary, s.Description, s.Type, s.PriceFrom, s.PriceLabel,
		features, s.SortOrder, s.IsActive,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "create service", serviceConflictMsg, serviceFKMsg)
	}
	return nil
}

func (r *sqliteServiceRepo) GetByID(ctx context.Context, id int64) (*models.Service, error) {
	s, err := scanService(r.db.QueryRowContext(ctx, serviceSelect+` WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: service not found", pkg.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return s, nil
}

func (r *sqliteServiceRepo) GetBySlug(ctx context.Context, slug string) (*models.Service, error) {
	s, err := scanService(r.db.QueryRowContext(ctx, serviceSelect+` WHERE s.slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: service not found", pkg.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service by slug: %w", err)
	}
	return s, nil
}

func (r *sqliteServiceRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Service, error) {
	out := make(map[int64]*models.Service, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, serviceSelect+` WHERE s.id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get services by id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		out[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating services: %w", err)
	}
	return out, nil
}

func (r *sqliteServiceRepo) List(ctx context.Context, f ServiceFilter) ([]models.Service, error) {
	var where []string
	var args []any
	if f.PillarID > 0 {
		where = append(where, "s.pillar_id = ?")
		args = append(args, f.PillarID)
	}
	if f.PillarSlug != "" {
		where = append(where, "p.slug = ?")
		args = append(args, f.PillarSlug)
	}
	if f.ActiveOnly {
		where = append(where, "s.is_active = 1", "p.is_active = 1")
	}

	query := serviceSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.sort_order, s.sort_order, s.title"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	services := []models.Service{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating services: %w", err)
	}
	return services, nil
}

func (r *sqliteServiceRepo) Update(ctx context.Context, s *models.Service) error {
	features, err := encodeFeatures(s.Features)
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx, `
		UPDATE services SET pillar_id = ?, title = ?, slug = ?, summary = ?, description = ?, type = ?,
			price_from = ?, price_label = ?, features = ?, sort_order = ?, is_active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at`,
		s.PillarID, s.Title, s.Slug, s.Summary, s.Description, s.Type, s.PriceFrom, s.PriceLabel,
		features, s.SortOrder, s.IsActive, s.ID,
	).Scan(&s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: service not found", pkg.ErrNotFound)
	}
	if err != nil {
		return mapWriteError(err, "update service", serviceConflictMsg, serviceFKMsg)
	}
	return nil
}

// Delete keeps order history intact: order_items.service_id is set to NULL.
func (r *sqliteServiceRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("service %d: %w", id, err)
	}
	return nil
}

func (r *sqliteServiceRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM services`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count services: %w", err)
	}
	return n, nil
}
