package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/pkg/suitedash"
	"github.com/pillarworks/storefront/repository"
	"github.com/pillarworks/storefront/ws"
)

// bulkSyncConcurrency bounds parallel SuiteDash calls in a bulk sync.
const bulkSyncConcurrency = 4

// OrderService is the order admin, including the SuiteDash sync actions.
type OrderService interface {
	List(ctx context.Context, filter models.OrderFilter) (*models.OrderPage, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	Update(ctx context.Context, id string, req *models.UpdateOrderRequest) (*models.Order, error)
	// Delete removes an order. With alsoSuiteDash the synced SuiteDash
	// invoice and contact are deleted first; a failure there keeps the order.
	Delete(ctx context.Context, id string, alsoSuiteDash bool) error
	BulkDelete(ctx context.Context, req *models.BulkOrderRequest) (int64, error)

	// SyncSuiteDash pushes one order to SuiteDash. Upstream failures are
	// reported in the result, not as an error; the error is reserved for an
	// unknown order or a local failure.
	SyncSuiteDash(ctx context.Context, id string) (*models.SyncResult, error)
	BulkSyncSuiteDash(ctx context.Context, req *models.BulkOrderRequest) ([]models.SyncResult, error)
}

type orderService struct {
	repo         repository.OrderRepository
	integrations IntegrationService
	hub          ws.EventPublisher
	now          func() time.Time
	log          *zap.Logger
}

// NewOrderService, constructor.
func NewOrderService(repo repository.OrderRepository, integrations IntegrationService, hub ws.EventPublisher) OrderService {
	return &orderService{
		repo:         repo,
		integrations: integrations,
		hub:          hub,
		now:          time.Now,
		log:          zap.L().Named("orders"),
	}
}

func (s *orderService) List(ctx context.Context, filter models.OrderFilter) (*models.OrderPage, error) {
	if err := filter.Normalize(); err != nil {
		return nil, validationError(err)
	}
	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &models.OrderPage{Orders: orders, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *orderService) Get(ctx context.Context, id string) (*models.Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *orderService) Update(ctx context.Context, id string, req *models.UpdateOrderRequest) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Status and payment status are independent; any valid value may be set.
	if req.Status != nil {
		order.Status = *req.Status
	}
	if req.PaymentStatus != nil {
		if *req.PaymentStatus == models.PaymentPaid && order.PaidAt == nil {
			at := s.now().UTC()
			order.PaidAt = &at
		}
		order.PaymentStatus = *req.PaymentStatus
	}
	if req.Notes != nil {
		order.Notes = strings.TrimSpace(*req.Notes)
	}

	if err := s.repo.Update(ctx, order); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.broadcast(updated, false)
	return updated, nil
}

func (s *orderService) Delete(ctx context.Context, id string, alsoSuiteDash bool) error {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if alsoSuiteDash && (order.SuiteDash.ContactID != nil || order.SuiteDash.InvoiceID != nil) {
		if err := s.deleteFromSuiteDash(ctx, order); err != nil {
			return err
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("order deleted", zap.String("order_id", id), zap.Bool("suitedash", alsoSuiteDash))
	s.broadcast(order, true)
	return nil
}

func (s *orderService) deleteFromSuiteDash(ctx context.Context, order *models.Order) error {
	client, _, err := s.integrations.SuiteDash(ctx)
	if err != nil {
		return err
	}

	if order.SuiteDash.InvoiceID != nil {
		if err := client.DeleteInvoice(ctx, *order.SuiteDash.InvoiceID); err != nil && !isRemoteNotFound(err) {
			return upstreamError(fmt.Errorf("delete suitedash invoice: %w", err))
		}
	}
	if order.SuiteDash.ContactID != nil {
		if err := client.DeleteContact(ctx, *order.SuiteDash.ContactID); err != nil && !isRemoteNotFound(err) {
			return upstreamError(fmt.Errorf("delete suitedash contact: %w", err))
		}
	}
	return nil
}

// isRemoteNotFound treats an already deleted SuiteDash record as success.
func isRemoteNotFound(err error) bool {
	var apiErr *suitedash.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func (s *orderService) BulkDelete(ctx context.Context, req *models.BulkOrderRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, validationError(err)
	}
	n, err := s.repo.DeleteMany(ctx, req.IDs)
	if err != nil {
		return 0, err
	}
	s.log.Info("orders bulk deleted", zap.Int("requested", len(req.IDs)), zap.Int64("deleted", n))
	for _, id := range req.IDs {
		s.hub.BroadcastToPermitted(models.PermManageOrders, ws.Event{
			Op:   ws.OpOrderUpdate,
			Data: ws.OrderUpdateData{OrderID: id, Deleted: true},
		})
	}
	return n, nil
}

// ─── SuiteDash sync ───

func (s *orderService) SyncSuiteDash(ctx context.Context, id string) (*models.SyncResult, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	client, cfg, err := s.integrations.SuiteDash(ctx)
	if err != nil {
		if errors.Is(err, pkg.ErrUnavailable) {
			return &models.SyncResult{OrderID: id, Code: "not_configured", Error: err.Error()}, nil
		}
		return nil, err
	}

	return s.syncOne(ctx, client, cfg, order), nil
}

func (s *orderService) syncOne(ctx context.Context, client SuiteDashAPI, cfg *models.SuiteDashConfig, order *models.Order) *models.SyncResult {
	result := &models.SyncResult{OrderID: order.ID}
	sync := models.SuiteDashSync{}

	contactID := order.SuiteDash.ContactID
	if contactID == nil {
		first, last := splitName(order.Customer.Name)
		uid, err := client.CreateContact(ctx, suitedash.Contact{
			FirstName:   first,
			LastName:    last,
			Email:       order.Customer.Email,
			Phone:       order.Customer.Phone,
			CompanyName: order.Customer.Company,
			Notes:       "Storefront order " + order.OrderNumber,
		})
		if err != nil {
			return s.recordSyncFailure(ctx, order, sync, result, err)
		}
		contactID = &uid
		sync.ContactID = &uid
	}

	if cfg.CreateInvoices && order.SuiteDash.InvoiceID == nil {
		lines := make([]suitedash.InvoiceLine, len(order.Items))
		for i, it := range order.Items {
			lines[i] = suitedash.InvoiceLine{Name: it.Title, Quantity: it.Quantity, Price: float64(it.UnitPrice) / 100}
		}
		uid, err := client.CreateInvoice(ctx, suitedash.Invoice{
			ContactUID: *contactID,
			Number:     order.OrderNumber,
			Currency:   strings.ToUpper(order.Currency),
			Paid:       order.PaymentStatus == models.PaymentPaid,
			Lines:      lines,
		})
		if err != nil {
			return s.recordSyncFailure(ctx, order, sync, result, err)
		}
		sync.InvoiceID = &uid
	}

	at := s.now().UTC()
	sync.SyncedAt = &at
	if err := s.repo.RecordSuiteDashSync(ctx, order.ID, sync); err != nil {
		s.log.Error("failed to record suitedash sync", zap.String("order_id", order.ID), zap.Error(err))
		result.Code = "internal"
		result.Error = "synced, but the result could not be saved"
		return result
	}

	result.OK = true
	s.log.Info("order synced to suitedash", zap.String("order_id", order.ID))
	return result
}

// recordSyncFailure stores the error (and any contact created before the
// failure) so the admin sees it on the order.
func (s *orderService) recordSyncFailure(ctx context.Context, order *models.Order, sync models.SuiteDashSync, result *models.SyncResult, cause error) *models.SyncResult {
	result.Code = ClassifyIntegrationError(cause)
	result.Error = cause.Error()

	var apiErr *suitedash.APIError
	if errors.As(cause, &apiErr) && apiErr.RetryAfter > 0 {
		result.Error = fmt.Sprintf("%s (retry after %s)", result.Error, apiErr.RetryAfter)
	}

	msg := result.Error
	sync.Error = &msg
	if err := s.repo.RecordSuiteDashSync(ctx, order.ID, sync); err != nil {
		s.log.Error("failed to record suitedash sync error", zap.String("order_id", order.ID), zap.Error(err))
	}
	s.log.Warn("suitedash sync failed",
		zap.String("order_id", order.ID), zap.String("code", result.Code), zap.Error(cause))
	return result
}

func (s *orderService) BulkSyncSuiteDash(ctx context.Context, req *models.BulkOrderRequest) ([]models.SyncResult, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	results := make([]models.SyncResult, len(req.IDs))

	client, cfg, err := s.integrations.SuiteDash(ctx)
	if err != nil {
		if !errors.Is(err, pkg.ErrUnavailable) {
			return nil, err
		}
		for i, id := range req.IDs {
			results[i] = models.SyncResult{OrderID: id, Code: "not_configured", Error: err.Error()}
		}
		return results, nil
	}

	// Once SuiteDash rate limits us, the remaining orders are skipped rather
	// than hammering the API; the admin re-triggers later.
	var limited atomic.Bool

	var g errgroup.Group
	g.SetLimit(bulkSyncConcurrency)
	for i, id := range req.IDs {
		g.Go(func() error {
			if limited.Load() {
				results[i] = models.SyncResult{OrderID: id, Code: "rate_limited", Error: "skipped: suitedash rate limit reached"}
				return nil
			}
			order, err := s.repo.GetByID(ctx, id)
			if err != nil {
				code := "internal"
				if errors.Is(err, pkg.ErrNotFound) {
					code = "not_found"
				}
				results[i] = models.SyncResult{OrderID: id, Code: code, Error: err.Error()}
				return nil
			}
			res := s.syncOne(ctx, client, cfg, order)
			if res.Code == "rate_limited" {
				limited.Store(true)
			}
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (s *orderService) broadcast(order *models.Order, deleted bool) {
	s.hub.BroadcastToPermitted(models.PermManageOrders, ws.Event{
		Op: ws.OpOrderUpdate,
		Data: ws.OrderUpdateData{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			Status:        string(order.Status),
			PaymentStatus: string(order.PaymentStatus),
			Deleted:       deleted,
		},
	})
}

// splitName splits "Ada King Lovelace" into "Ada" and "King Lovelace".
func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i], strings.TrimSpace(full[i+1:])
	}
	return full, ""
}
