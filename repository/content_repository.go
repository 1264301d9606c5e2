package repository

import (
	"context"
	"encoding/json"

	"github.com/pillarworks/storefront/models"
)

// ContentRepository is the key-value section store.
type ContentRepository interface {
	// Get returns pkg.ErrNotFound when the section was never written.
	Get(ctx context.Context, key models.SectionKey) (*models.ContentSection, error)
	List(ctx context.Context) ([]models.ContentSection, error)
	Upsert(ctx context.Context, key models.SectionKey, data json.RawMessage, updatedBy *string) (*models.ContentSection, error)
}
