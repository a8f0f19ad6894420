package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrDuplicate means the user already has an order under the same
	// idempotency key.
	ErrDuplicate = errors.New("duplicate idempotency key")
)

const (
	uniqueViolation          = "23505"
	idempotencyKeyConstraint = "orders_user_idempotency_key"
)

// DB is the subset of *pgxpool.Pool the repo uses, so tests can swap in pgxmock.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Repository is the persistence surface the service depends on.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (Order, error)
	GetForUser(ctx context.Context, id, userID int64) (Order, error)
	GetByIdempotencyKey(ctx context.Context, userID int64, key string) (Order, error)
	ListByUser(ctx context.Context, userID int64, req PageRequest) (Page[Order], error)
	ListAll(ctx context.Context, req PageRequest) (Page[Order], error)
	UpdateStatus(ctx context.Context, id int64, s Status) error
	RecordPayment(ctx context.Context, id int64, paymentStatus, transactionID string, paidAt *time.Time) error

	TotalRevenue(ctx context.Context) (decimal.Decimal, error)
	RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	CountOrders(ctx context.Context) (int64, error)
	CountCustomersBetween(ctx context.Context, from, to time.Time) (int64, error)
	MonthlyRevenue(ctx context.Context) ([]MonthlyStats, error)
	Recent(ctx context.Context, n int) ([]Order, error)
}

type Repo struct{ DB DB }

const orderColumns = `id, user_id, customer_name, shipping_address, phone_number, COALESCE(note, ''),
	status, payment_method, payment_status, COALESCE(transaction_id, ''), paid_at,
	total_amount, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.CustomerName, &o.ShippingAddress, &o.PhoneNumber, &o.Note,
		&status, &o.PaymentMethod, &o.PaymentStatus, &o.TransactionID, &o.PaidAt,
		&o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	o.Status = Status(status)
	return o, err
}

// Create inserts the order and its items in one transaction and fills in
// the generated ids and timestamps.
func (r *Repo) Create(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders(user_id, customer_name, shipping_address, phone_number, note,
		                   status, payment_method, payment_status, total_amount, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		o.UserID, o.CustomerName, o.ShippingAddress, o.PhoneNumber, o.Note,
		string(o.Status), o.PaymentMethod, o.PaymentStatus, o.TotalAmount,
		pgtype.Text{String: o.IdempotencyKey, Valid: o.IdempotencyKey != ""},
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == idempotencyKeyConstraint {
			return ErrDuplicate
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, product_name, product_image, quantity, price, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			o.ID, it.ProductID, it.ProductName, it.ProductImage, it.Quantity, it.Price, it.Note,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	return r.one(ctx, o, err)
}

// GetForUser hides orders owned by someone else behind ErrNotFound.
func (r *Repo) GetForUser(ctx context.Context, id, userID int64) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1 AND user_id=$2`, id, userID))
	return r.one(ctx, o, err)
}

func (r *Repo) GetByIdempotencyKey(ctx context.Context, userID int64, key string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id=$1 AND idempotency_key=$2`, userID, key))
	return r.one(ctx, o, err)
}

func (r *Repo) one(ctx context.Context, o Order, err error) (Order, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	list := []Order{o}
	if err := r.attachItems(ctx, list); err != nil {
		return Order{}, err
	}
	return list[0], nil
}

func (r *Repo) ListByUser(ctx context.Context, userID int64, req PageRequest) (Page[Order], error) {
	var total int64
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id=$1`, userID).Scan(&total); err != nil {
		return Page[Order]{}, err
	}
	list, err := r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, userID, req.Size, req.Offset())
	if err != nil {
		return Page[Order]{}, err
	}
	return NewPage(list, req, total), nil
}

func (r *Repo) ListAll(ctx context.Context, req PageRequest) (Page[Order], error) {
	total, err := r.CountOrders(ctx)
	if err != nil {
		return Page[Order]{}, err
	}
	list, err := r.list(ctx, `SELECT `+orderColumns+` FROM orders
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, req.Size, req.Offset())
	if err != nil {
		return Page[Order]{}, err
	}
	return NewPage(list, req, total), nil
}

func (r *Repo) Recent(ctx context.Context, n int) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC LIMIT $1`, n)
}

func (r *Repo) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) attachItems(ctx context.Context, list []Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	idx := make(map[int64]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		idx[o.ID] = i
		list[i].Items = []Item{}
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_name, COALESCE(product_image, ''), quantity, price, COALESCE(note, '')
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductImage,
			&it.Quantity, &it.Price, &it.Note); err != nil {
			return err
		}
		if i, ok := idx[it.OrderID]; ok {
			list[i].Items = append(list[i].Items, it)
		}
	}
	return rows.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, id int64, s Status) error {
	tag, err := r.DB.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, string(s))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordPayment replaces the payment fields without checking the prior
// value; the last writer wins.
func (r *Repo) RecordPayment(ctx context.Context, id int64, paymentStatus, transactionID string, paidAt *time.Time) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status=$2, transaction_id=NULLIF($3, ''), paid_at=$4, updated_at=now()
		WHERE id=$1`, id, paymentStatus, transactionID, paidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	var d decimal.Decimal
	err := r.DB.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status <> $1`,
		string(StatusCancelled)).Scan(&d)
	return d, err
}

// RevenueBetween sums non-cancelled orders created in [from, to).
func (r *Repo) RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var d decimal.Decimal
	err := r.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount), 0) FROM orders
		WHERE status <> $1 AND created_at >= $2 AND created_at < $3`,
		string(StatusCancelled), from, to).Scan(&d)
	return d, err
}

func (r *Repo) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n)
	return n, err
}

func (r *Repo) CountCustomersBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.DB.QueryRow(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM orders WHERE created_at >= $1 AND created_at < $2`,
		from, to).Scan(&n)
	return n, err
}

func (r *Repo) MonthlyRevenue(ctx context.Context) ([]MonthlyStats, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT EXTRACT(YEAR FROM created_at)::int, EXTRACT(MONTH FROM created_at)::int, SUM(total_amount)
		FROM orders WHERE status <> $1
		GROUP BY 1, 2 ORDER BY 1, 2`, string(StatusCancelled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []MonthlyStats{}
	for rows.Next() {
		var (
			year, month int
			total       decimal.Decimal
		)
		if err := rows.Scan(&year, &month, &total); err != nil {
			return nil, err
		}
		out = append(out, MonthlyStats{Name: fmt.Sprintf("Month %d", month), Total: total})
	}
	return out, rows.Err()
}
