package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pillarworks/storefront/database"
	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/pkg"
)

type sqliteOrderRepo struct {
	db database.TxQuerier
}

// NewSQLiteOrderRepo, constructor.
func NewSQLiteOrderRepo(db database.TxQuerier) OrderRepository {
	return &sqliteOrderRepo{db: db}
}

const orderColumns = `id, order_number, customer_name, customer_email, customer_phone, customer_company, notes,
	subtotal, total, currency, status, payment_status, stripe_session_id, stripe_payment_intent_id,
	suitedash_contact_id, suitedash_invoice_id, suitedash_synced_at, suitedash_sync_error, paid_at,
	created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(&o.ID, &o.OrderNumber, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Customer.Company, &o.Notes, &o.Subtotal, &o.Total, &o.Currency, &o.Status, &o.PaymentStatus,
		&o.StripeSessionID, &o.StripePaymentIntentID, &o.SuiteDash.ContactID, &o.SuiteDash.InvoiceID,
		&o.SuiteDash.SyncedAt, &o.SuiteDash.Error, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *sqliteOrderRepo) Create(ctx context.Context, o *models.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO orders (id, order_number, customer_name, customer_email, customer_phone, customer_company,
			notes, subtotal, total, currency, status, payment_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at`,
		o.ID, o.OrderNumber, o.Customer.Name, o.Customer.Email, o.Customer.Phone, o.Customer.Company,
		o.Notes, o.Subtotal, o.Total, o.Currency, o.Status, o.PaymentStatus,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "create order", "order number already used", "invalid order reference")
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err := r.db.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, service_id, title, slug, pillar_name, unit_price, quantity, line_total)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`,
			it.OrderID, it.ServiceID, it.Title, it.Slug, it.PillarName, it.UnitPrice, it.Quantity, it.LineTotal,
		).Scan(&it.ID)
		if err != nil {
			return mapWriteError(err, "create order item", "duplicate order item", "service does not exist")
		}
	}
	return nil
}

func (r *sqliteOrderRepo) getOne(ctx context.Context, where string, arg any) (*models.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order not found", pkg.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	items, err := r.itemsFor(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	if o.Items == nil {
		o.Items = []models.OrderItem{}
	}
	return o, nil
}

func (r *sqliteOrderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *sqliteOrderRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return r.getOne(ctx, "stripe_session_id = ?", sessionID)
}

func (r *sqliteOrderRepo) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	return r.getOne(ctx, "stripe_payment_intent_id = ?", paymentIntentID)
}

// itemsFor loads the items of several orders in one query.
func (r *sqliteOrderRepo) itemsFor(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error) {
	out := make(map[string][]models.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	placeholders, args := inClause(orderIDs)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, service_id, title, slug, pillar_name, unit_price, quantity, line_total
		FROM order_items WHERE order_id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ServiceID, &it.Title, &it.Slug, &it.PillarName,
			&it.UnitPrice, &it.Quantity, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return out, nil
}

func (r *sqliteOrderRepo) List(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error) {
	var where []string
	var args []any
	if f.Search != "" {
		like := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		where = append(where, `(lower(order_number) LIKE ? ESCAPE '\' OR lower(customer_name) LIKE ? ESCAPE '\'
			OR lower(customer_email) LIKE ? ESCAPE '\' OR lower(customer_company) LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like, like)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.PaymentStatus != "" {
		where = append(where, "payment_status = ?")
		args = append(args, f.PaymentStatus)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	pageArgs := append(append([]any{}, args...), f.Limit, f.Offset())
	orders, err := r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders`+clause+` ORDER BY created_at DESC, order_number DESC LIMIT ? OFFSET ?`,
		pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// queryOrders runs a SELECT over orderColumns and attaches the items.
func (r *sqliteOrderRepo) queryOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	rows.Close()

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
	}
	return orders, nil
}

func (r *sqliteOrderRepo) Update(ctx context.Context, o *models.Order) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE orders SET status = ?, payment_status = ?, notes = ?, paid_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at`,
		o.Status, o.PaymentStatus, o.Notes, o.PaidAt, o.ID,
	).Scan(&o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: order not found", pkg.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

func (r *sqliteOrderRepo) SetStripeSession(ctx context.Context, id, sessionID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET stripe_session_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, sessionID, id)
	if err != nil {
		return mapWriteError(err, "store checkout session", "checkout session already attached", "invalid order")
	}
	return requireAffected(res)
}

func (r *sqliteOrderRepo) MarkPaid(ctx context.Context, id string, paymentIntentID *string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
			payment_status = ?,
			status = CASE WHEN status = ? THEN ? ELSE status END,
			stripe_payment_intent_id = COALESCE(?, stripe_payment_intent_id),
			paid_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND payment_status = ?`,
		models.PaymentPaid, models.OrderPending, models.OrderConfirmed, paymentIntentID, at.UTC(),
		id, models.PaymentUnpaid)
	if err != nil {
		return false, fmt.Errorf("failed to mark order paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *sqliteOrderRepo) MarkRefunded(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND payment_status = ?`,
		models.PaymentRefunded, id, models.PaymentPaid)
	if err != nil {
		return false, fmt.Errorf("failed to mark order refunded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *sqliteOrderRepo) RecordSuiteDashSync(ctx context.Context, id string, s models.SuiteDashSync) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
			suitedash_contact_id = COALESCE(?, suitedash_contact_id),
			suitedash_invoice_id = COALESCE(?, suitedash_invoice_id),
			suitedash_synced_at = COALESCE(?, suitedash_synced_at),
			suitedash_sync_error = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		s.ContactID, s.InvoiceID, s.SyncedAt, s.Error, id)
	if err != nil {
		return fmt.Errorf("failed to record suitedash sync: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteOrderRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("order %s: %w", id, err)
	}
	return nil
}

func (r *sqliteOrderRepo) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders, args := inClause(ids)
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orders: %w", err)
	}
	return res.RowsAffected()
}

// ─── Stats ───

type sqliteStatsRepo struct {
	db database.TxQuerier
}

// NewSQLiteStatsRepo, constructor.
func NewSQLiteStatsRepo(db database.TxQuerier) StatsRepository {
	return &sqliteStatsRepo{db: db}
}

func (r *sqliteStatsRepo) CountOrdersByStatus(ctx context.Context) (map[models.OrderStatus]int, error) {
	out := map[models.OrderStatus]int{}
	err := groupCount(ctx, r.db, `SELECT status, COUNT(*) FROM orders GROUP BY status`, func(k string, n int) {
		out[models.OrderStatus(k)] = n
	})
	return out, err
}

func (r *sqliteStatsRepo) CountOrdersByPaymentStatus(ctx context.Context) (map[models.PaymentStatus]int, error) {
	out := map[models.PaymentStatus]int{}
	err := groupCount(ctx, r.db, `SELECT payment_status, COUNT(*) FROM orders GROUP BY payment_status`, func(k string, n int) {
		out[models.PaymentStatus(k)] = n
	})
	return out, err
}

func (r *sqliteStatsRepo) PaidRevenue(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total), 0) FROM orders WHERE payment_status = ?`, models.PaymentPaid,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return total, nil
}

func (r *sqliteStatsRepo) RecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	repo := &sqliteOrderRepo{db: r.db}
	return repo.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, order_number DESC LIMIT ?`, limit)
}

func groupCount(ctx context.Context, db database.TxQuerier, query string, fn func(string, int)) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run aggregate: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("failed to scan aggregate: %w", err)
		}
		fn(key, n)
	}
	return rows.Err()
}

func inClause(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
