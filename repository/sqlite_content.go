package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
)

type sqliteContentRepo struct {
	db database.TxQuerier
}

// NewSQLiteContentRepo, constructor.
func NewSQLiteContentRepo(db database.TxQuerier) ContentRepository {
	return &sqliteContentRepo{db: db}
}

func (r *sqliteContentRepo) Get(ctx context.Context, key models.SectionKey) (*models.ContentSection, error) {
	s := &models.ContentSection{}
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT key, data, updated_by, updated_at FROM content_sections WHERE key = ?`, key,
	).Scan(&s.Key, &data, &s.UpdatedBy, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content section: %w", err)
	}
	s.Data = json.RawMessage(data)
	return s, nil
}

func (r *sqliteContentRepo) List(ctx context.Context) ([]models.ContentSection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, data, updated_by, updated_at FROM content_sections ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list content sections: %w", err)
	}
	defer rows.Close()

	var sections []models.ContentSection
	for rows.Next() {
		var s models.ContentSection
		var data string
		if err := rows.Scan(&s.Key, &data, &s.UpdatedBy, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan content section: %w", err)
		}
		s.Data = json.RawMessage(data)
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content sections: %w", err)
	}
	return sections, nil
}

func (r *sqliteContentRepo) Upsert(ctx context.Context, key models.SectionKey, data json.RawMessage, updatedBy *string) (*models.ContentSection, error) {
	s := &models.ContentSection{Key: key, Data: data, UpdatedBy: updatedBy}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO content_sections (key, data, updated_by, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			updated_by = excluded.updated_by,
			updated_at = CURRENT_TIMESTAMP
		RETURNING updated_at`,
		key, string(data), updatedBy,
	).Scan(&s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save content section: %w", err)
	}
	return s, nil
}
