package models

// DashboardStats is the payload of GET /api/admin/stats.
type DashboardStats struct {
	OrdersByStatus        map[OrderStatus]int   `json:"orders_by_status"`
	OrdersByPaymentStatus map[PaymentStatus]int `json:"orders_by_payment_status"`
	TotalOrders           int                   `json:"total_orders"`
	PaidRevenue           int64                 `json:"paid_revenue"`
	Currency              string                `json:"currency"`
	Pillars               int                   `json:"pillars"`
	Services              int                   `json:"services"`
	Faqs                  int                   `json:"faqs"`
	Users                 int                   `json:"users"`
	RecentOrders          []Order               `json:"recent_orders"`
}
