package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/pkg/suitedash"
)

func (f *storeFixture) enableSuiteDash(t *testing.T, createInvoices bool) {
	t.Helper()
	cfg := map[string]any{"public_id": "pub", "create_invoices": createInvoices}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	_, err = f.integrations.Update(context.Background(), models.ProviderSuiteDash, &models.UpdateIntegrationRequest{
		Config:  raw,
		Secrets: json.RawMessage(`{"secret_key":"sek"}`),
	})
	require.NoError(t, err)
}

func TestOrderUpdateSetsPaidAt(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t)

	paid := models.PaymentPaid
	status := models.OrderInProgress
	notes := "  called the client  "
	order, err := f.orders.Update(ctx, res.OrderID, &models.UpdateOrderRequest{
		Status:        &status,
		PaymentStatus: &paid,
		Notes:         &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderInProgress, order.Status)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, "called the client", order.Notes)
	require.NotNil(t, order.PaidAt)

	bogus := models.OrderStatus("shipped")
	_, err = f.orders.Update(ctx, res.OrderID, &models.UpdateOrderRequest{Status: &bogus})
	assert.ErrorIs(t, err, pkg.ErrValidation)

	_, err = f.orders.Update(ctx, "missing", &models.UpdateOrderRequest{Status: &status})
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestOrderListFilters(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	first := f.placeOrder(t)
	f.placeOrder(t)

	_, err := f.checkout.CompleteMockSession(ctx, first.SessionID)
	require.NoError(t, err)
	f.drain(t)

	page, err := f.orders.List(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, models.DefaultOrderPageSize, page.Limit)

	page, err = f.orders.List(ctx, models.OrderFilter{PaymentStatus: models.PaymentPaid})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, first.OrderID, page.Orders[0].ID)

	page, err = f.orders.List(ctx, models.OrderFilter{Search: first.OrderNumber})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = f.orders.List(ctx, models.OrderFilter{Status: "lost"})
	assert.ErrorIs(t, err, pkg.ErrValidation)
}

func TestSyncSuiteDash(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	f.enableSuiteDash(t, true)
	res := f.placeOrder(t)

	result, err := f.orders.SyncSuiteDash(ctx, res.OrderID)
	require.NoError(t, err)
	assert.True(t, result.OK, result.Error)

	order, err := f.orders.Get(ctx, res.OrderID)
	require.NoError(t, err)
	require.NotNil(t, order.SuiteDash.ContactID)
	require.NotNil(t, order.SuiteDash.InvoiceID)
	assert.True(t, order.SuiteDash.Synced())

	contact := f.sd.contacts[*order.SuiteDash.ContactID]
	assert.Equal(t, "Ada", contact.FirstName)
	assert.Equal(t, "Lovelace", contact.LastName)
	assert.Equal(t, "Analytical Ltd", contact.CompanyName)

	inv := f.sd.invoices[*order.SuiteDash.InvoiceID]
	assert.Equal(t, "GBP", inv.Currency)
	assert.False(t, inv.Paid)
	assert.Equal(t, *order.SuiteDash.ContactID, inv.ContactUID)
	require.Len(t, inv.Lines, 2)

	// A second sync reuses the contact and invoice.
	result, err = f.orders.SyncSuiteDash(ctx, res.OrderID)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, 1, f.sd.contactCount())
	assert.Len(t, f.sd.invoices, 1)
}

func TestSyncSuiteDashNotConfigured(t *testing.T) {
	f := newStoreFixture(t)
	res := f.placeOrder(t)

	result, err := f.orders.SyncSuiteDash(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, "not_configured", result.Code)

	_, err = f.orders.SyncSuiteDash(context.Background(), "missing")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestSyncSuiteDashRecordsFailure(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	f.enableSuiteDash(t, true)
	f.sd.invoiceErr = &suitedash.APIError{StatusCode: http.StatusTooManyRequests, RetryAfter: 30 * time.Second}
	res := f.placeOrder(t)

	result, err := f.orders.SyncSuiteDash(ctx, res.OrderID)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, "rate_limited", result.Code)
	assert.Contains(t, result.Error, "retry after 30s")

	// The contact created before the failure is kept so a retry does not
	// create a duplicate.
	order, err := f.orders.Get(ctx, res.OrderID)
	require.NoError(t, err)
	require.NotNil(t, order.SuiteDash.ContactID)
	require.NotNil(t, order.SuiteDash.Error)
	assert.False(t, order.SuiteDash.Synced())

	f.sd.invoiceErr = nil
	result, err = f.orders.SyncSuiteDash(ctx, res.OrderID)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, 1, f.sd.contactCount())

	order, err = f.orders.Get(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Nil(t, order.SuiteDash.Error)
}

func TestBulkSyncSuiteDash(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	f.enableSuiteDash(t, false)
	a := f.placeOrder(t)
	b := f.placeOrder(t)

	results, err := f.orders.BulkSyncSuiteDash(ctx, &models.BulkOrderRequest{IDs: []string{a.OrderID, "missing", b.OrderID}})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK)
	assert.Equal(t, "not_found", results[1].Code)
	assert.True(t, results[2].OK)
	assert.Equal(t, 2, f.sd.contactCount())
	assert.Empty(t, f.sd.invoices)
}

func TestBulkSyncStopsOnRateLimit(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	f.enableSuiteDash(t, false)
	f.sd.contactErr = &suitedash.APIError{StatusCode: http.StatusTooManyRequests}

	var ids []string
	for range 6 {
		ids = append(ids, f.placeOrder(t).OrderID)
	}

	results, err := f.orders.BulkSyncSuiteDash(ctx, &models.BulkOrderRequest{IDs: ids})
	require.NoError(t, err)
	for _, r := range results {
		assert.False(t, r.OK)
		assert.Equal(t, "rate_limited", r.Code)
	}
}

func TestBulkSyncNotConfigured(t *testing.T) {
	f := newStoreFixture(t)
	a := f.placeOrder(t)

	results, err := f.orders.BulkSyncSuiteDash(context.Background(), &models.BulkOrderRequest{IDs: []string{a.OrderID}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "not_configured", results[0].Code)
}

func TestDeleteOrderWithSuiteDash(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	f.enableSuiteDash(t, true)
	res := f.placeOrder(t)

	_, err := f.orders.SyncSuiteDash(ctx, res.OrderID)
	require.NoError(t, err)

	require.NoError(t, f.orders.Delete(ctx, res.OrderID, true))
	assert.Len(t, f.sd.deleted, 2)
	assert.Zero(t, f.sd.contactCount())

	_, err = f.orders.Get(ctx, res.OrderID)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestDeleteOrderKeepsOrderWhenSuiteDashFails(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	f.enableSuiteDash(t, false)
	res := f.placeOrder(t)

	_, err := f.orders.SyncSuiteDash(ctx, res.OrderID)
	require.NoError(t, err)

	f.sd.deleteErr = &suitedash.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}
	require.Error(t, f.orders.Delete(ctx, res.OrderID, true))

	_, err = f.orders.Get(ctx, res.OrderID)
	require.NoError(t, err)

	// Already gone upstream counts as deleted.
	f.sd.deleteErr = &suitedash.APIError{StatusCode: http.StatusNotFound}
	require.NoError(t, f.orders.Delete(ctx, res.OrderID, true))
}

func TestBulkDelete(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	a := f.placeOrder(t)
	b := f.placeOrder(t)

	n, err := f.orders.BulkDelete(ctx, &models.BulkOrderRequest{IDs: []string{a.OrderID, b.OrderID, "missing"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = f.orders.BulkDelete(ctx, &models.BulkOrderRequest{})
	assert.ErrorIs(t, err, pkg.ErrValidation)
}
