package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
)

type sqliteFaqRepo struct {
	db database.TxQuerier
}

// NewSQLiteFaqRepo, constructor.
func NewSQLiteFaqRepo(db database.TxQuerier) FaqRepository {
	return &sqliteFaqRepo{db: db}
}

const faqSelect = `
	SELECT f.id, f.question, f.answer, f.pillar_id, p.slug, f.sort_order, f.is_active, f.created_at, f.updated_at
	FROM faqs f
	LEFT JOIN pillars p ON p.id = f.pillar_id`

func scanFaq(row interface{ Scan(...any) error }) (*models.Faq, error) {
	f := &models.Faq{}
	err := row.Scan(&f.ID, &f.Question, &f.Answer, &f.PillarID, &f.PillarSlug, &f.SortOrder, &f.IsActive,
		&f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func (r *sqliteFaqRepo) Create(ctx context.Context, f *models.Faq) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO faqs (question, answer, pillar_id, sort_order, is_active)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, created_at, updated_at`,
		f.Question, f.Answer, f.PillarID, f.SortOrder, f.IsActive,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "create faq", "duplicate faq", "pillar does not exist")
	}
	return nil
}

func (r *sqliteFaqRepo) GetByID(ctx context.Context, id int64) (*models.Faq, error) {
	f, err := scanFaq(r.db.QueryRowContext(ctx, faqSelect+` WHERE f.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: faq not found", pkg.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get faq: %w", err)
	}
	return f, nil
}

func (r *sqliteFaqRepo) List(ctx context.Context, filter models.FaqFilter) ([]models.Faq, error) {
	var where []string
	var args []any
	switch {
	case filter.PillarSlug != "":
		where = append(where, "p.slug = ?")
		args = append(args, filter.PillarSlug)
	case filter.GlobalOnly:
		where = append(where, "f.pillar_id IS NULL")
	}
	if !filter.IncludeInactive {
		where = append(where, "f.is_active = 1")
	}

	query := faqSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// Global FAQs first, then grouped by pillar.
	query += " ORDER BY f.pillar_id IS NOT NULL, p.sort_order, f.sort_order, f.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list faqs: %w", err)
	}
	defer rows.Close()

	faqs := []models.Faq{}
	for rows.Next() {
		f, err := scanFaq(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan faq: %w", err)
		}
		faqs = append(faqs, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating faqs: %w", err)
	}
	return faqs, nil
}

func (r *sqliteFaqRepo) Update(ctx context.Context, f *models.Faq) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE faqs SET question = ?, answer = ?, pillar_id = ?, sort_order = ?, is_active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at`,
		f.Question, f.Answer, f.PillarID, f.SortOrder, f.IsActive, f.ID,
	).Scan(&f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: faq not found", pkg.ErrNotFound)
	}
	if err != nil {
		return mapWriteError(err, "update faq", "duplicate faq", "pillar does not exist")
	}
	return nil
}

func (r *sqliteFaqRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM faqs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete faq: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("faq %d: %w", id, err)
	}
	return nil
}

func (r *sqliteFaqRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faqs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count faqs: %w", err)
	}
	return n, nil
}
