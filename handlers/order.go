package handlers

import (
	"net/http"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
	"github.com/pillarworks/storefront/services"
)

// OrderHandler serves /api/admin/orders.
type OrderHandler struct {
	orderService services.OrderService
}

// NewOrderHandler, constructor.
func NewOrderHandler(orderService services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// List godoc
// GET /api/admin/orders?search=&status=&payment_status=&page=&limit=
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.orderService.List(r.Context(), models.OrderFilter{
		Search:        q.Get("search"),
		Status:        models.OrderStatus(q.Get("status")),
		PaymentStatus: models.PaymentStatus(q.Get("payment_status")),
		Page:          queryInt(r, "page", 1),
		Limit:         queryInt(r, "limit", models.DefaultOrderPageSize),
	})
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, page)
}

// Get godoc
// GET /api/admin/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, order)
}

// Update godoc
// PATCH /api/admin/orders/{id}
// Body: { "status"?: "...", "payment_status"?: "...", "notes"?: "..." }
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateOrderRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	order, err := h.orderService.Update(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, order)
}

// Delete godoc
// DELETE /api/admin/orders/{id}?suitedash=true
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.orderService.Delete(r.Context(), r.PathValue("id"), queryBool(r, "suitedash")); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "order deleted"})
}

// BulkDelete godoc
// POST /api/admin/orders/bulk-delete
// Body: { "ids": ["..."] }
func (h *OrderHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req models.BulkOrderRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	n, err := h.orderService.BulkDelete(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Sync godoc
// POST /api/admin/orders/{id}/sync
// Upstream failures are reported in the body with 200; the client reads "ok"
// and "code".
func (h *OrderHandler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.orderService.SyncSuiteDash(r.Context(), r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, res)
}

// BulkSync godoc
// POST /api/admin/orders/bulk-sync
// Body: { "ids": ["..."] }
func (h *OrderHandler) BulkSync(w http.ResponseWriter, r *http.Request) {
	var req models.BulkOrderRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	results, err := h.orderService.BulkSyncSuiteDash(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, results)
}
