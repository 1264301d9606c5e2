package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/pkg/cache"
	"github.com/pillarworks/storefront/pkg/email"
	"github.com/pillarworks/storefront/pkg/payment"
	"github.com/pillarworks/storefront/pkg/ratelimit"
	"github.com/pillarworks/storefront/repository"
	"github.com/pillarworks/storefront/ws"
)

const opsEmail = "ops@example.com"

// storeFixture wires the catalog, content, integration, order and checkout
// services over one database, with fakes at every network boundary.
type storeFixture struct {
	db           *database.DB
	hub          *eventRecorder
	mail         *email.Recorder
	sd           *fakeSuiteDash
	rc           *fakeRingCentral
	orderRepo    repository.OrderRepository
	catalog      CatalogService
	content      ContentService
	integrations IntegrationService
	orders       OrderService
	checkout     CheckoutService

	audit, workshop, retainer, retired *models.Service
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	f := &storeFixture{
		db:   openTestDB(t),
		hub:  &eventRecorder{},
		mail: &email.Recorder{},
		sd:   newFakeSuiteDash(),
		rc:   &fakeRingCentral{},
	}
	conn := f.db.Conn

	sectionCache := cache.New[models.SectionKey, *SectionView](time.Minute, time.Minute)
	t.Cleanup(sectionCache.Close)
	contactLimiter := ratelimit.New(3, time.Hour)
	t.Cleanup(contactLimiter.Close)

	notifier := NewNotifier(f.mail, NotifierConfig{SiteName: "Pillarworks", AdminEmail: opsEmail, AppURL: "https://shop.test"})
	clients, _ := fakeClients(f.sd, f.rc)

	f.orderRepo = repository.NewSQLiteOrderRepo(conn)
	serviceRepo := repository.NewSQLiteServiceRepo(conn)
	f.catalog = NewCatalogService(repository.NewSQLitePillarRepo(conn), serviceRepo, f.hub)
	f.content = NewContentService(repository.NewSQLiteContentRepo(conn), f.hub, notifier, sectionCache, contactLimiter)
	f.integrations = NewIntegrationService(repository.NewSQLiteIntegrationRepo(conn), testBox(t), IntegrationEnv{}, clients)
	f.orders = NewOrderService(f.orderRepo, f.integrations, f.hub)
	f.checkout = NewCheckoutService(conn, f.orderRepo, serviceRepo, f.content, f.orders, f.integrations,
		notifier, payment.NewMockGateway(""), f.hub, CheckoutConfig{Currency: "gbp", AppURL: "https://shop.test"})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.checkout.Drain(ctx)
	})

	f.seedCatalog(t)
	return f
}

func (f *storeFixture) seedCatalog(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	inactive := false

	pillar, err := f.catalog.CreatePillar(ctx, &models.CreatePillarRequest{Name: "Strategy"})
	require.NoError(t, err)

	create := func(req models.CreateServiceRequest) *models.Service {
		req.PillarID = pillar.ID
		svc, err := f.catalog.CreateService(ctx, &req)
		require.NoError(t, err)
		return svc
	}
	f.audit = create(models.CreateServiceRequest{Title: "Growth Audit", PriceFrom: 15000})
	f.workshop = create(models.CreateServiceRequest{Title: "Team Workshop", PriceFrom: 4999})
	f.retainer = create(models.CreateServiceRequest{Title: "Monthly Retainer", Type: models.ServiceSubscription, PriceFrom: 90000})
	f.retired = create(models.CreateServiceRequest{Title: "Legacy Review", PriceFrom: 1000, IsActive: &inactive})
}

func (f *storeFixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.checkout.Drain(ctx))
}

func checkoutRequest(lines ...models.CheckoutLine) *models.CheckoutRequest {
	return &models.CheckoutRequest{
		Customer: models.Customer{Name: "Ada Lovelace", Email: "Ada@Example.com", Phone: "+447700900123", Company: "Analytical Ltd"},
		Items:    lines,
	}
}

func (f *storeFixture) placeOrder(t *testing.T) *models.CheckoutResponse {
	t.Helper()
	res, err := f.checkout.Checkout(context.Background(), checkoutRequest(
		models.CheckoutLine{ServiceID: f.audit.ID, Quantity: 1},
		models.CheckoutLine{ServiceID: f.workshop.ID, Quantity: 2},
	))
	require.NoError(t, err)
	return res
}

func stripeEvent(id, typ, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":%s}}`, id, typ, object))
}

func sessionCompleted(sessionID, paymentStatus string) []byte {
	return stripeEvent("evt_"+sessionID, payment.EventCheckoutCompleted, fmt.Sprintf(
		`{"id":%q,"object":"checkout.session","payment_intent":"pi_%s","payment_status":%q}`,
		sessionID, sessionID, paymentStatus))
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	res, err := f.checkout.Checkout(ctx, checkoutRequest(
		models.CheckoutLine{ServiceID: f.audit.ID, Quantity: 1},
		models.CheckoutLine{ServiceID: f.workshop.ID, Quantity: 0},
		models.CheckoutLine{ServiceID: f.audit.ID, Quantity: 2},
	))
	require.NoError(t, err)

	assert.True(t, res.Mock)
	assert.True(t, strings.HasPrefix(res.SessionID, payment.MockSessionPrefix))
	assert.Contains(t, res.CheckoutURL, "https://shop.test/checkout/success?")
	assert.Contains(t, res.CheckoutURL, "mock=1")
	assert.Regexp(t, `^PW-\d{8}-[0-9A-F]{6}$`, res.OrderNumber)

	order, err := f.orders.Get(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.PaymentUnpaid, order.PaymentStatus)
	assert.Equal(t, "ada@example.com", order.Customer.Email)
	assert.Equal(t, "gbp", order.Currency)
	require.NotNil(t, order.StripeSessionID)
	assert.Equal(t, res.SessionID, *order.StripeSessionID)

	// Duplicate lines merge, quantities below one become one.
	require.Len(t, order.Items, 2)
	lines := map[string]models.OrderItem{}
	for _, it := range order.Items {
		lines[it.Slug] = it
	}
	assert.Equal(t, 3, lines[f.audit.Slug].Quantity)
	assert.EqualValues(t, 45000, lines[f.audit.Slug].LineTotal)
	assert.Equal(t, 1, lines[f.workshop.Slug].Quantity)
	assert.EqualValues(t, 45000+4999, order.Total)
	assert.Equal(t, order.Subtotal, order.Total)

	assert.Contains(t, f.hub.ops(), ws.OpOrderUpdate)
}

func TestCheckoutClampsQuantity(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	res, err := f.checkout.Checkout(ctx, checkoutRequest(models.CheckoutLine{ServiceID: f.audit.ID, Quantity: 500}))
	require.NoError(t, err)

	order, err := f.orders.Get(ctx, res.OrderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 99, order.Items[0].Quantity)
	assert.EqualValues(t, 99*15000, order.Total)
}

func TestCheckoutCapsMergedHugeQuantities(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	res, err := f.checkout.Checkout(ctx, checkoutRequest(
		models.CheckoutLine{ServiceID: f.audit.ID, Quantity: math.MaxInt},
		models.CheckoutLine{ServiceID: f.audit.ID, Quantity: math.MaxInt},
		models.CheckoutLine{ServiceID: f.audit.ID, Quantity: 2},
	))
	require.NoError(t, err)

	order, err := f.orders.Get(ctx, res.OrderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 99, order.Items[0].Quantity)
	assert.EqualValues(t, 99*15000, order.Total)
	assert.Equal(t, models.OrderPending, order.Status)
}

func TestCheckoutRejectsUnpurchasableLines(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	cases := map[string]int64{
		"subscription": f.retainer.ID,
		"inactive":     f.retired.ID,
		"unknown":      999999,
	}
	for name, id := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.checkout.Checkout(ctx, checkoutRequest(models.CheckoutLine{ServiceID: id, Quantity: 1}))
			assert.ErrorIs(t, err, pkg.ErrValidation)
		})
	}

	_, err := f.checkout.Checkout(ctx, checkoutRequest())
	assert.ErrorIs(t, err, pkg.ErrValidation)

	page, err := f.orders.List(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestCheckoutClosedDuringMaintenance(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	_, err := f.content.Update(ctx, models.SectionWebsite, json.RawMessage(`{"maintenance":{"enabled":true}}`), "")
	require.NoError(t, err)

	_, err = f.checkout.Checkout(ctx, checkoutRequest(models.CheckoutLine{ServiceID: f.audit.ID, Quantity: 1}))
	require.ErrorIs(t, err, pkg.ErrUnavailable)
	assert.Equal(t, "maintenance", errorCode(err))
}

func TestCompleteMockSession(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t)

	summary, err := f.checkout.SessionSummary(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentUnpaid, summary.PaymentStatus)
	assert.Equal(t, "Ada Lovelace", summary.CustomerName)

	summary, err = f.checkout.CompleteMockSession(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, summary.PaymentStatus)
	assert.Equal(t, models.OrderConfirmed, summary.Status)

	f.drain(t)

	msgs := f.mail.Messages()
	require.Len(t, msgs, 2)
	recipients := []string{msgs[0].To[0], msgs[1].To[0]}
	assert.ElementsMatch(t, []string{"ada@example.com", opsEmail}, recipients)

	order, err := f.orders.Get(ctx, res.OrderID)
	require.NoError(t, err)
	assert.NotNil(t, order.PaidAt)

	_, err = f.checkout.CompleteMockSession(ctx, "cs_live_123")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestStripeWebhookMarksPaidOnce(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t)

	payload := sessionCompleted(res.SessionID, "paid")
	require.NoError(t, f.checkout.HandleStripeWebhook(ctx, payload, ""))
	// Providers redeliver; the second delivery must not resend anything.
	require.NoError(t, f.checkout.HandleStripeWebhook(ctx, payload, ""))
	f.drain(t)

	order, err := f.orders.Get(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	require.NotNil(t, order.StripePaymentIntentID)
	assert.Equal(t, "pi_"+res.SessionID, *order.StripePaymentIntentID)
	assert.Len(t, f.mail.Messages(), 2)
}

func TestStripeWebhookUnpaidCompletionIsIgnored(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t)

	require.NoError(t, f.checkout.HandleStripeWebhook(ctx, sessionCompleted(res.SessionID, "unpaid"), ""))

	order, err := f.orders.Get(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentUnpaid, order.PaymentStatus)
}

func TestStripeWebhookRefund(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t)

	require.NoError(t, f.checkout.HandleStripeWebhook(ctx, sessionCompleted(res.SessionID, "paid"), ""))
	f.drain(t)

	partial := stripeEvent("evt_partial", payment.EventChargeRefunded, fmt.Sprintf(
		`{"id":"ch_1","object":"charge","payment_intent":"pi_%s","amount":24998,"amount_refunded":5000,"refunded":false}`,
		res.SessionID))
	require.NoError(t, f.checkout.HandleStripeWebhook(ctx, partial, ""))

	order, err := f.orders.Get(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)

	refund := stripeEvent("evt_refund", payment.EventChargeRefunded, fmt.Sprintf(
		`{"id":"ch_1","object":"charge","payment_intent":"pi_%s","amount":24998,"amount_refunded":24998,"refunded":true}`,
		res.SessionID))
	require.NoError(t, f.checkout.HandleStripeWebhook(ctx, refund, ""))

	order, err = f.orders.Get(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, order.PaymentStatus)
}

func TestStripeWebhookUnknownOrderIsAcknowledged(t *testing.T) {
	f := newStoreFixture(t)

	err := f.checkout.HandleStripeWebhook(context.Background(), sessionCompleted("cs_unknown", "paid"), "")
	assert.NoError(t, err)

	err = f.checkout.HandleStripeWebhook(context.Background(), stripeEvent("evt_x", "customer.created", `{"id":"cus_1"}`), "")
	assert.NoError(t, err)
}

func TestStripeWebhookMalformed(t *testing.T) {
	f := newStoreFixture(t)

	err := f.checkout.HandleStripeWebhook(context.Background(), []byte("{not json"), "")
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestStripeWebhookSignatureRequiredWhenSecretSet(t *testing.T) {
	f := newStoreFixture(t)
	f.checkout = NewCheckoutService(f.db.Conn, f.orderRepo, repository.NewSQLiteServiceRepo(f.db.Conn), f.content,
		f.orders, f.integrations, NewNotifier(f.mail, NotifierConfig{}), payment.NewMockGateway("whsec_test"),
		f.hub, CheckoutConfig{})

	err := f.checkout.HandleStripeWebhook(context.Background(), sessionCompleted("cs_1", "paid"), "t=1,v1=00")
	require.ErrorIs(t, err, pkg.ErrBadRequest)
	assert.Equal(t, "invalid_signature", errorCode(err))
}

func TestFulfilmentRunsIntegrations(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	_, err := f.integrations.Update(ctx, models.ProviderSuiteDash, &models.UpdateIntegrationRequest{
		Config:  json.RawMessage(`{"public_id":"pub","auto_sync":true,"create_invoices":true}`),
		Secrets: json.RawMessage(`{"secret_key":"sek"}`),
	})
	require.NoError(t, err)
	_, err = f.integrations.Update(ctx, models.ProviderRingCentral, &models.UpdateIntegrationRequest{
		Config:  json.RawMessage(`{"client_id":"cid","from_number":"+15550000001","notify_number":"+15550000002","sms_on_order":true}`),
		Secrets: json.RawMessage(`{"client_secret":"cs","jwt":"jwt"}`),
	})
	require.NoError(t, err)

	res := f.placeOrder(t)
	_, err = f.checkout.CompleteMockSession(ctx, res.SessionID)
	require.NoError(t, err)
	f.drain(t)

	sms := f.rc.sent()
	require.Len(t, sms, 1)
	assert.Equal(t, "+15550000001", sms[0].From)
	assert.Equal(t, "+15550000002", sms[0].To)
	assert.Contains(t, sms[0].Text, res.OrderNumber)

	assert.Equal(t, 1, f.sd.contactCount())
	order, err := f.orders.Get(ctx, res.OrderID)
	require.NoError(t, err)
	assert.True(t, order.SuiteDash.Synced())
	assert.NotNil(t, order.SuiteDash.InvoiceID)
}
