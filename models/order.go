package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderInProgress OrderStatus = "in_progress"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderInProgress, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// PaymentStatus is independent of OrderStatus; neither constrains the other.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

// Customer is the snapshot taken at checkout.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
}

func (c *Customer) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" || utf8.RuneCountInString(c.Name) > 120 {
		return fmt.Errorf("customer name must be between 1 and 120 characters")
	}
	email, err := normalizeEmail(c.Email)
	if err != nil {
		return fmt.Errorf("customer %w", err)
	}
	c.Email = email
	c.Phone = strings.TrimSpace(c.Phone)
	c.Company = strings.TrimSpace(c.Company)
	if utf8.RuneCountInString(c.Phone) > 40 || utf8.RuneCountInString(c.Company) > 120 {
		return fmt.Errorf("customer phone or company is too long")
	}
	return nil
}

type OrderItem struct {
	ID         int64  `json:"id"`
	OrderID    string `json:"order_id"`
	ServiceID  *int64 `json:"service_id"`
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	PillarName string `json:"pillar_name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
	LineTotal  int64  `json:"line_total"`
}

// SuiteDashSync records the last CRM sync of an order.
type SuiteDashSync struct {
	ContactID *string    `json:"contact_id"`
	InvoiceID *string    `json:"invoice_id"`
	SyncedAt  *time.Time `json:"synced_at"`
	Error     *string    `json:"error"`
}

func (s SuiteDashSync) Synced() bool {
	return s.SyncedAt != nil && s.Error == nil
}

type Order struct {
	ID                    string        `json:"id"`
	OrderNumber           string        `json:"order_number"`
	Customer              Customer      `json:"customer"`
	Notes                 string        `json:"notes"`
	Items                 []OrderItem   `json:"items"`
	Subtotal              int64         `json:"subtotal"`
	Total                 int64         `json:"total"`
	Currency              string        `json:"currency"`
	Status                OrderStatus   `json:"status"`
	PaymentStatus         PaymentStatus `json:"payment_status"`
	StripeSessionID       *string       `json:"stripe_session_id"`
	StripePaymentIntentID *string       `json:"stripe_payment_intent_id"`
	SuiteDash             SuiteDashSync `json:"suitedash"`
	PaidAt                *time.Time    `json:"paid_at"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// OrderSummary is the public view returned to the checkout success page.
type OrderSummary struct {
	OrderNumber   string        `json:"order_number"`
	CustomerName  string        `json:"customer_name"`
	Items         []OrderItem   `json:"items"`
	Total         int64         `json:"total"`
	Currency      string        `json:"currency"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

func (o *Order) Summary() OrderSummary {
	items := make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItem{Title: it.Title, Slug: it.Slug, PillarName: it.PillarName,
			UnitPrice: it.UnitPrice, Quantity: it.Quantity, LineTotal: it.LineTotal}
	}
	return OrderSummary{
		OrderNumber:   o.OrderNumber,
		CustomerName:  o.Customer.Name,
		Items:         items,
		Total:         o.Total,
		Currency:      o.Currency,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
	}
}

// OrderFilter drives the admin order list.
type OrderFilter struct {
	Search        string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Page          int
	Limit         int
}

const (
	DefaultOrderPageSize = 20
	MaxOrderPageSize     = 100
)

// Normalize clamps paging and rejects unknown enum filters.
func (f *OrderFilter) Normalize() error {
	f.Search = strings.TrimSpace(f.Search)
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("unknown status filter %q", f.Status)
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return fmt.Errorf("unknown payment_status filter %q", f.PaymentStatus)
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultOrderPageSize
	}
	if f.Limit > MaxOrderPageSize {
		f.Limit = MaxOrderPageSize
	}
	return nil
}

func (f *OrderFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type OrderPage struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}

// UpdateOrderRequest is the PATCH body; any valid value may be set directly.
type UpdateOrderRequest struct {
	Status        *OrderStatus   `json:"status"`
	PaymentStatus *PaymentStatus `json:"payment_status"`
	Notes         *string        `json:"notes"`
}

func (r *UpdateOrderRequest) Validate() error {
	if r.Status == nil && r.PaymentStatus == nil && r.Notes == nil {
		return fmt.Errorf("nothing to update")
	}
	if r.Status != nil && !r.Status.Valid() {
		return fmt.Errorf("status must be one of: pending, confirmed, in_progress, completed, cancelled")
	}
	if r.PaymentStatus != nil && !r.PaymentStatus.Valid() {
		return fmt.Errorf("payment_status must be one of: unpaid, paid, refunded")
	}
	if r.Notes != nil && utf8.RuneCountInString(*r.Notes) > 5000 {
		return fmt.Errorf("notes must be at most 5000 characters")
	}
	return nil
}

// BulkOrderRequest carries the ids of a bulk delete or bulk sync.
type BulkOrderRequest struct {
	IDs []string `json:"ids"`
}

const MaxBulkOrders = 100

func (r *BulkOrderRequest) Validate() error {
	seen := make(map[string]struct{}, len(r.IDs))
	ids := r.IDs[:0]
	for _, id := range r.IDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	r.IDs = ids
	if len(r.IDs) == 0 {
		return fmt.Errorf("ids is required")
	}
	if len(r.IDs) > MaxBulkOrders {
		return fmt.Errorf("at most %d orders per request", MaxBulkOrders)
	}
	return nil
}

// SyncResult is the per-order outcome of a SuiteDash sync. Code is a stable
// machine-readable classification of Error (e.g. "rate_limited").
type SyncResult struct {
	OrderID string `json:"order_id"`
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ─── Checkout ───

type CheckoutLine struct {
	ServiceID int64 `json:"service_id"`
	Quantity  int   `json:"quantity"`
}

type CheckoutRequest struct {
	Customer Customer       `json:"customer"`
	Notes    string         `json:"notes"`
	Items    []CheckoutLine `json:"items"`
}

const MaxCheckoutLines = 50

func (r *CheckoutRequest) Validate() error {
	if err := r.Customer.Validate(); err != nil {
		return err
	}
	r.Notes = strings.TrimSpace(r.Notes)
	if utf8.RuneCountInString(r.Notes) > 2000 {
		return fmt.Errorf("notes must be at most 2000 characters")
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("cart is empty")
	}
	if len(r.Items) > MaxCheckoutLines {
		return fmt.Errorf("at most %d cart lines", MaxCheckoutLines)
	}
	for _, l := range r.Items {
		if l.ServiceID <= 0 {
			return fmt.Errorf("service_id is required on every line")
		}
	}
	return nil
}

type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	Mock        bool   `json:"mock"`
}

// ContactRequest is the public contact form.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (r *ContactRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" || utf8.RuneCountInString(r.Name) > 120 {
		return fmt.Errorf("name must be between 1 and 120 characters")
	}
	email, err := normalizeEmail(r.Email)
	if err != nil {
		return err
	}
	r.Email = email
	r.Subject = strings.TrimSpace(r.Subject)
	if utf8.RuneCountInString(r.Subject) > 200 {
		return fmt.Errorf("subject must be at most 200 characters")
	}
	r.Message = strings.TrimSpace(r.Message)
	if r.Message == "" || utf8.RuneCountInString(r.Message) > 5000 {
		return fmt.Errorf("message must be between 1 and 5000 characters")
	}
	return nil
}
