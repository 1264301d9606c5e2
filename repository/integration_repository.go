package repository

import (
	"context"
	"time"

	"github.com/pillarworks/storefront/models"
)

type IntegrationRepository interface {
	// Get returns pkg.ErrNotFound when the provider was never configured.
	Get(ctx context.Context, provider models.IntegrationProvider) (*models.Integration, error)
	List(ctx context.Context) ([]models.Integration, error)
	Upsert(ctx context.Context, in *models.Integration) error
	RecordTest(ctx context.Context, provider models.IntegrationProvider, ok bool, errMsg string, at time.Time) error
}
