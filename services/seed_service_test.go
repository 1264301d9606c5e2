package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg/seed"
	"github.com/pillarworks/storefront/repository"
)

func TestSeedDefaultIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := NewSeedService(db.Conn)

	doc, err := seed.Default()
	require.NoError(t, err)

	first, err := svc.Apply(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{Pillars: 3, Services: 5, Faqs: 4, Sections: 4}, *first)

	second, err := svc.Apply(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{}, *second)

	faqs, err := repository.NewSQLiteFaqRepo(db.Conn).List(ctx, models.FaqFilter{PillarSlug: "business-strategy"})
	require.NoError(t, err)
	require.Len(t, faqs, 1)
	assert.Equal(t, "What does the health check cover?", faqs[0].Question)
}

func TestSeedKeepsEditedContent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	content := repository.NewSQLiteContentRepo(db.Conn)

	_, err := content.Upsert(ctx, models.SectionHome, json.RawMessage(`{"hero":{"title":"Edited"}}`), nil)
	require.NoError(t, err)

	doc, err := seed.Default()
	require.NoError(t, err)
	report, err := NewSeedService(db.Conn).Apply(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Sections)

	row, err := content.Get(ctx, models.SectionHome)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hero":{"title":"Edited"}}`, string(row.Data))
}

func TestSeedRollsBackOnInvalidDocument(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	doc, err := seed.Parse(strings.NewReader(`
pillars:
  - name: Strategy
    services:
      - title: Review
        price_from: 100
content:
  website:
    pages:
      home:
        visible: false
`))
	require.NoError(t, err)

	_, err = NewSeedService(db.Conn).Apply(ctx, doc)
	require.Error(t, err)

	n, err := repository.NewSQLitePillarRepo(db.Conn).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "a failed seed leaves nothing behind")
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	var pingErr error
	svc := NewHealthService(pingerFunc(func(context.Context) error { return pingErr }), func() int { return 3 }, "1.2.3")

	report := svc.Check(context.Background())
	assert.True(t, report.Healthy())
	assert.Equal(t, "ok", report.Database)
	assert.Equal(t, 3, report.Connections)
	assert.Equal(t, "1.2.3", report.Version)

	pingErr = assert.AnError
	report = svc.Check(context.Background())
	assert.False(t, report.Healthy())
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "unreachable", report.Database)
}

func TestDashboardStats(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	conn := f.db.Conn

	stats := NewStatsService(repository.NewSQLiteStatsRepo(conn), repository.NewSQLitePillarRepo(conn),
		repository.NewSQLiteServiceRepo(conn), repository.NewSQLiteFaqRepo(conn), repository.NewSQLiteUserRepo(conn), "gbp")

	empty, err := stats.Dashboard(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalOrders)
	assert.Equal(t, 0, empty.OrdersByStatus[models.OrderPending])
	assert.Contains(t, empty.OrdersByPaymentStatus, models.PaymentRefunded)
	assert.NotNil(t, empty.RecentOrders)

	first := f.placeOrder(t)
	f.placeOrder(t)
	paid := models.PaymentPaid
	_, err = f.orders.Update(ctx, first.OrderID, &models.UpdateOrderRequest{PaymentStatus: &paid})
	require.NoError(t, err)

	got, err := stats.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalOrders)
	assert.Equal(t, 2, got.OrdersByStatus[models.OrderPending])
	assert.Equal(t, 1, got.OrdersByPaymentStatus[models.PaymentPaid])
	assert.EqualValues(t, 24998, got.PaidRevenue)
	assert.Equal(t, "gbp", got.Currency)
	assert.Equal(t, 1, got.Pillars)
	assert.Equal(t, 4, got.Services)
	assert.Len(t, got.RecentOrders, 2)
}
