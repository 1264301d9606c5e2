package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/pkg/cart"
	"github.com/pillarworks/storefront/pkg/crypto"
	"github.com/pillarworks/storefront/pkg/payment"
	"github.com/pillarworks/storefront/repository"
	"github.com/pillarworks/storefront/ws"
)

const (
	// maxLineQuantity caps a single checkout line.
	maxLineQuantity = 99
	// orderNumberAttempts bounds retries on an order number collision.
	orderNumberAttempts = 5
	// fulfilTimeout bounds the post-payment side effects of one order.
	fulfilTimeout = 30 * time.Second
)

// CheckoutService turns a cart into an order and a hosted payment session,
// and reacts to the payment provider's webhooks.
type CheckoutService interface {
	Checkout(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutResponse, error)
	// SessionSummary is the public view of the order behind a checkout session.
	SessionSummary(ctx context.Context, sessionID string) (*models.OrderSummary, error)
	// HandleStripeWebhook verifies and applies one webhook delivery.
	// Redeliveries and events for unknown orders are acknowledged without effect.
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error
	// CompleteMockSession marks a mock session paid, as the provider's
	// webhook would. It is only available while the mock gateway is active.
	CompleteMockSession(ctx context.Context, sessionID string) (*models.OrderSummary, error)
	// Drain waits for in-flight fulfilment work, or for ctx to end.
	Drain(ctx context.Context) error
}

// CheckoutConfig holds the values checkout needs from the configuration.
type CheckoutConfig struct {
	Currency string
	AppURL   string
}

type checkoutService struct {
	db           *sql.DB
	orders       repository.OrderRepository
	services     repository.ServiceRepository
	content      ContentService
	orderAdmin   OrderService
	integrations IntegrationService
	notifier     Notifier
	gateway      payment.Gateway
	hub          ws.EventPublisher
	cfg          CheckoutConfig
	now          func() time.Time

	// inflight tracks fulfilment goroutines so shutdown can wait for them.
	inflight sync.WaitGroup

	log *zap.Logger
}

// NewCheckoutService, constructor.
func NewCheckoutService(
	db *sql.DB,
	orders repository.OrderRepository,
	services repository.ServiceRepository,
	content ContentService,
	orderAdmin OrderService,
	integrations IntegrationService,
	notifier Notifier,
	gateway payment.Gateway,
	hub ws.EventPublisher,
	cfg CheckoutConfig,
) CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = "gbp"
	}
	return &checkoutService{
		db:           db,
		orders:       orders,
		services:     services,
		content:      content,
		orderAdmin:   orderAdmin,
		integrations: integrations,
		notifier:     notifier,
		gateway:      gateway,
		hub:          hub,
		cfg:          cfg,
		now:          time.Now,
		log:          zap.L().Named("checkout"),
	}
}

func (s *checkoutService) Checkout(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	site, err := s.content.Website(ctx)
	if err != nil {
		return nil, err
	}
	if site.Maintenance.Enabled {
		return nil, pkg.WithCode("maintenance", fmt.Errorf("%w: checkout is closed during maintenance", pkg.ErrUnavailable))
	}

	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	basket, err := s.buildCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		Customer:      req.Customer,
		Notes:         req.Notes,
		Subtotal:      basket.TotalPrice(),
		Total:         basket.TotalPrice(),
		Currency:      s.cfg.Currency,
		Status:        models.OrderPending,
		PaymentStatus: models.PaymentUnpaid,
	}
	for _, it := range basket.Items {
		id := it.ID
		order.Items = append(order.Items, models.OrderItem{
			ServiceID:  &id,
			Title:      it.Title,
			Slug:       it.Slug,
			PillarName: it.PillarName,
			UnitPrice:  it.PriceFrom,
			Quantity:   it.Quantity,
			LineTotal:  it.LineTotal(),
		})
	}

	if err := s.createOrder(ctx, order); err != nil {
		return nil, err
	}

	params := payment.CheckoutParams{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.Customer.Email,
		Currency:      order.Currency,
		SuccessURL:    s.cfg.AppURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.AppURL + "/cart",
	}
	for _, it := range order.Items {
		params.Items = append(params.Items, payment.LineItem{
			Name:        it.Title,
			Description: it.PillarName,
			UnitAmount:  it.UnitPrice,
			Quantity:    int64(it.Quantity),
		})
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		s.log.Error("checkout session failed", zap.String("order_id", order.ID), zap.Error(err))
		order.Status = models.OrderCancelled
		if uerr := s.orders.Update(context.WithoutCancel(ctx), order); uerr != nil {
			s.log.Error("failed to cancel order after payment error", zap.String("order_id", order.ID), zap.Error(uerr))
		}
		return nil, pkg.WithCode("payment_provider", fmt.Errorf("%w: could not start payment", pkg.ErrPaymentRequired))
	}

	if err := s.orders.SetStripeSession(ctx, order.ID, session.ID); err != nil {
		return nil, err
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total", order.Total),
		zap.Bool("mock", s.gateway.Mock()))
	s.broadcast(order)

	return &models.CheckoutResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		Mock:        s.gateway.Mock(),
	}, nil
}

// buildCart reprices the submitted lines from the catalog. Duplicate lines are
// merged and quantities clamped to [1, maxLineQuantity].
func (s *checkoutService) buildCart(ctx context.Context, lines []models.CheckoutLine) (*cart.Cart, error) {
	quantities := make(map[int64]int, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, seen := quantities[l.ServiceID]; !seen {
			ids = append(ids, l.ServiceID)
		}
		q := min(max(l.Quantity, 1), maxLineQuantity)
		quantities[l.ServiceID] = min(quantities[l.ServiceID]+q, maxLineQuantity)
	}

	found, err := s.services.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	basket := &cart.Cart{}
	for _, id := range ids {
		svc, ok := found[id]
		if !ok {
			return nil, validationError(fmt.Errorf("service %d does not exist", id))
		}
		if !svc.Purchasable() {
			return nil, validationError(fmt.Errorf("%q cannot be purchased online", svc.Title))
		}
		basket.Add(cart.Item{
			ID:         svc.ID,
			Title:      svc.Title,
			Slug:       svc.Slug,
			PriceFrom:  svc.PriceFrom,
			PriceLabel: svc.PriceLabel,
			PillarName: svc.PillarName,
			PillarSlug: svc.PillarSlug,
		})
		basket.UpdateQuantity(id, quantities[id])
	}
	if basket.TotalItems() == 0 {
		return nil, validationError(fmt.Errorf("cart is empty"))
	}
	return basket, nil
}

// createOrder inserts the order and its items in one transaction, drawing a
// new order number when the random suffix collides.
func (s *checkoutService) createOrder(ctx context.Context, order *models.Order) error {
	for attempt := 0; ; attempt++ {
		number, err := s.orderNumber()
		if err != nil {
			return err
		}
		order.OrderNumber = number

		err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			return repository.NewSQLiteOrderRepo(tx).Create(ctx, order)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, pkg.ErrAlreadyExists) || attempt+1 >= orderNumberAttempts {
			return err
		}
		s.log.Warn("order number collision, retrying", zap.String("order_number", number))
	}
}

// orderNumber is PW-YYYYMMDD-XXXXXX with a random hex suffix.
func (s *checkoutService) orderNumber() (string, error) {
	suffix, err := crypto.RandomToken(3)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PW-%s-%s", s.now().UTC().Format("20060102"), strings.ToUpper(suffix)), nil
}

func (s *checkoutService) SessionSummary(ctx context.Context, sessionID string) (*models.OrderSummary, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", pkg.ErrBadRequest)
	}
	order, err := s.orders.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	summary := order.Summary()
	return &summary, nil
}

// ─── Webhooks ───

func (s *checkoutService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.log.Warn("rejected webhook", zap.Error(err))
		if errors.Is(err, payment.ErrInvalidSignature) {
			return pkg.WithCode("invalid_signature", fmt.Errorf("%w: invalid signature", pkg.ErrBadRequest))
		}
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	log := s.log.With(zap.String("event_id", event.ID), zap.String("type", event.Type))

	switch event.Type {
	case payment.EventCheckoutCompleted:
		if !event.Paid {
			log.Info("checkout completed without payment yet")
			return nil
		}
		order, err := s.orderForEvent(ctx, event)
		if err != nil {
			return err
		}
		if order == nil {
			log.Warn("paid event for unknown order", zap.String("session_id", event.SessionID))
			return nil
		}
		var pi *string
		if event.PaymentIntentID != "" {
			pi = &event.PaymentIntentID
		}
		return s.markPaid(ctx, order, pi)

	case payment.EventChargeRefunded:
		order, err := s.orderForEvent(ctx, event)
		if err != nil {
			return err
		}
		if order == nil {
			log.Warn("refund for unknown order", zap.String("payment_intent", event.PaymentIntentID))
			return nil
		}
		if !event.FullyRefunded {
			log.Info("partial refund, order stays paid", zap.String("order_id", order.ID))
			return nil
		}
		changed, err := s.orders.MarkRefunded(ctx, order.ID)
		if err != nil {
			return err
		}
		if changed {
			log.Info("order refunded", zap.String("order_id", order.ID))
			s.reloadAndBroadcast(ctx, order.ID)
		}
		return nil

	default:
		log.Debug("ignoring webhook event")
		return nil
	}
}

// orderForEvent finds the order an event refers to, trying the session, the
// payment intent and finally the order id from the metadata. It returns nil
// without error when no order matches.
func (s *checkoutService) orderForEvent(ctx context.Context, event *payment.Event) (*models.Order, error) {
	lookups := []struct {
		key  string
		find func(context.Context, string) (*models.Order, error)
	}{
		{event.SessionID, s.orders.GetBySessionID},
		{event.PaymentIntentID, s.orders.GetByPaymentIntent},
		{event.OrderID, s.orders.GetByID},
	}
	for _, l := range lookups {
		if l.key == "" {
			continue
		}
		order, err := l.find(ctx, l.key)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, pkg.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func (s *checkoutService) markPaid(ctx context.Context, order *models.Order, paymentIntentID *string) error {
	changed, err := s.orders.MarkPaid(ctx, order.ID, paymentIntentID, s.now().UTC())
	if err != nil {
		return err
	}
	if !changed {
		s.log.Info("order already paid", zap.String("order_id", order.ID))
		return nil
	}

	paid, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return err
	}
	s.log.Info("order paid", zap.String("order_id", paid.ID), zap.String("order_number", paid.OrderNumber))
	s.broadcast(paid)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.fulfil(paid)
	}()
	return nil
}

// fulfil runs the post-payment side effects. Each one is independent and
// failures are logged only.
func (s *checkoutService) fulfil(order *models.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), fulfilTimeout)
	defer cancel()

	log := s.log.With(zap.String("order_id", order.ID))

	if err := s.notifier.OrderConfirmation(ctx, order); err != nil {
		log.Error("order confirmation email failed", zap.Error(err))
	}
	if err := s.notifier.AdminOrderNotification(ctx, order); err != nil {
		log.Error("admin order notification failed", zap.Error(err))
	}

	if client, cfg, err := s.integrations.RingCentral(ctx); err == nil {
		if cfg.SMSOnOrder && cfg.FromNumber != "" && cfg.NotifyNumber != "" {
			text := fmt.Sprintf("New order %s from %s: %s",
				order.OrderNumber, order.Customer.Name, FormatMoney(order.Total, order.Currency))
			if _, err := client.SendSMS(ctx, cfg.FromNumber, cfg.NotifyNumber, text); err != nil {
				log.Error("order sms failed", zap.String("code", ClassifyIntegrationError(err)), zap.Error(err))
			}
		}
	} else if !errors.Is(err, pkg.ErrUnavailable) {
		log.Error("ringcentral unavailable", zap.Error(err))
	}

	if _, cfg, err := s.integrations.SuiteDash(ctx); err == nil {
		if cfg.AutoSync {
			res, err := s.orderAdmin.SyncSuiteDash(ctx, order.ID)
			switch {
			case err != nil:
				log.Error("suitedash auto-sync failed", zap.Error(err))
			case !res.OK:
				log.Warn("suitedash auto-sync failed", zap.String("code", res.Code), zap.String("error", res.Error))
			}
		}
	} else if !errors.Is(err, pkg.ErrUnavailable) {
		log.Error("suitedash unavailable", zap.Error(err))
	}
}

func (s *checkoutService) CompleteMockSession(ctx context.Context, sessionID string) (*models.OrderSummary, error) {
	if !s.gateway.Mock() || !strings.HasPrefix(sessionID, payment.MockSessionPrefix) {
		return nil, fmt.Errorf("%w: not a mock session", pkg.ErrNotFound)
	}
	order, err := s.orders.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.markPaid(ctx, order, nil); err != nil {
		return nil, err
	}
	return s.SessionSummary(ctx, sessionID)
}

func (s *checkoutService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *checkoutService) reloadAndBroadcast(ctx context.Context, id string) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		s.log.Warn("failed to reload order", zap.String("order_id", id), zap.Error(err))
		return
	}
	s.broadcast(order)
}

func (s *checkoutService) broadcast(order *models.Order) {
	s.hub.BroadcastToPermitted(models.PermManageOrders, ws.Event{
		Op: ws.OpOrderUpdate,
		Data: ws.OrderUpdateData{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			Status:        string(order.Status),
			PaymentStatus: string(order.PaymentStatus),
		},
	})
}
