package repository

import (
	"context"
	"time"

	"github.com/pillarworks/storefront/models"
)

// OrderRepository persists orders with their line items.
type OrderRepository interface {
	// Create inserts the order and its items. Run it on a transaction-bound
	// repository so both land together.
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error)
	List(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error)
	// Update writes status, payment status and notes.
	Update(ctx context.Context, o *models.Order) error
	SetStripeSession(ctx context.Context, id, sessionID string) error
	// MarkPaid flips an unpaid order to paid (and pending to confirmed). It
	// reports false when the order was not unpaid, which makes webhook
	// redelivery a no-op.
	MarkPaid(ctx context.Context, id string, paymentIntentID *string, at time.Time) (bool, error)
	MarkRefunded(ctx context.Context, id string) (bool, error)
	RecordSuiteDashSync(ctx context.Context, id string, sync models.SuiteDashSync) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int64, error)
}

// StatsRepository runs the aggregate queries behind the admin dashboard.
type StatsRepository interface {
	CountOrdersByStatus(ctx context.Context) (map[models.OrderStatus]int, error)
	CountOrdersByPaymentStatus(ctx context.Context) (map[models.PaymentStatus]int, error)
	PaidRevenue(ctx context.Context) (int64, error)
	RecentOrders(ctx context.Context, limit int) ([]models.Order, error)
}
