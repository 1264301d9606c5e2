package repository

import (
	"context"

	"github.com/pillarworks/storefront/models"
)

type FaqRepository interface {
	Create(ctx context.Context, f *models.Faq) error
	GetByID(ctx context.Context, id int64) (*models.Faq, error)
	List(ctx context.Context, filter models.FaqFilter) ([]models.Faq, error)
	Update(ctx context.Context, f *models.Faq) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}
