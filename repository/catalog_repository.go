package repository

import (
	"context"

	"github.com/pillarworks/storefront/models"
)

type PillarRepository interface {
	Create(ctx context.Context, p *models.Pillar) error
	GetByID(ctx context.Context, id int64) (*models.Pillar, error)
	GetBySlug(ctx context.Context, slug string) (*models.Pillar, error)
	List(ctx context.Context, activeOnly bool) ([]models.Pillar, error)
	Update(ctx context.Context, p *models.Pillar) error
	// Delete fails with pkg.ErrBadRequest while services still reference the pillar.
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// ServiceFilter narrows ServiceRepository.List. Zero values match everything.
type ServiceFilter struct {
	PillarID   int64
	PillarSlug string
	ActiveOnly bool
}

type ServiceRepository interface {
	Create(ctx context.Context, s *models.Service) error
	GetByID(ctx context.Context, id int64) (*models.Service, error)
	GetBySlug(ctx context.Context, slug string) (*models.Service, error)
	// GetByIDs returns the services that exist, keyed by id.
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Service, error)
	List(ctx context.Context, f ServiceFilter) ([]models.Service, error)
	Update(ctx context.Context, s *models.Service) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}
