// Package seed fills the orders database with synthetic history for demos
// and load tests.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ariefcatur/go-food-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Options struct {
	Users     int
	Products  int
	Orders    int
	BatchSize int
}

var (
	orderColumns = []string{"id", "user_id", "customer_name", "shipping_address", "phone_number", "note",
		"status", "payment_method", "payment_status", "transaction_id", "paid_at", "total_amount",
		"created_at", "updated_at"}
	itemColumns = []string{"order_id", "product_id", "product_name", "product_image", "quantity", "price", "note"}

	firstNames = []string{"Ana", "Budi", "Citra", "Dewi", "Eko", "Fajar", "Gita", "Hadi", "Indah", "Joko"}
	streets    = []string{"Jl. Merdeka", "Jl. Sudirman", "Jl. Thamrin", "Jl. Gatot Subroto", "Jl. Diponegoro"}
	methods    = []string{orders.PaymentMethodCOD, "Credit Card", "Debit Card", "PayPal", "Bank Transfer"}
	notes      = []string{"", "", "", "less sugar", "extra spicy", "no ice"}
)

// statusWeights skews history toward completed orders.
var statusWeights = []struct {
	status orders.Status
	weight int
}{
	{orders.StatusDelivered, 55},
	{orders.StatusCancelled, 10},
	{orders.StatusShipping, 10},
	{orders.StatusConfirmed, 10},
	{orders.StatusPending, 15},
}

// Generator builds random orders. It is not safe for concurrent use.
type Generator struct {
	Rand *rand.Rand
	Now  time.Time
	Opts Options
}

func (g *Generator) pick(list []string) string { return list[g.Rand.Intn(len(list))] }

func (g *Generator) status() orders.Status {
	n := g.Rand.Intn(100)
	for _, w := range statusWeights {
		if n < w.weight {
			return w.status
		}
		n -= w.weight
	}
	return orders.StatusDelivered
}

// productPrice is stable per product so repeated lines agree.
func productPrice(productID int64) decimal.Decimal {
	return decimal.NewFromInt(10000 + (productID*7919)%41*1000)
}

// Order returns one order with id and 1 to 4 items, created within the last
// twelve months.
func (g *Generator) Order(id int64) orders.Order {
	created := g.Now.Add(-time.Duration(g.Rand.Int63n(int64(365 * 24 * time.Hour)))).Truncate(time.Second)
	userID := int64(g.Rand.Intn(max(g.Opts.Users, 1)) + 1)
	name := g.pick(firstNames)
	o := orders.Order{
		ID:              id,
		UserID:          userID,
		CustomerName:    fmt.Sprintf("%s %d", name, userID),
		ShippingAddress: fmt.Sprintf("%s No. %d", g.pick(streets), g.Rand.Intn(200)+1),
		PhoneNumber:     fmt.Sprintf("08%010d", g.Rand.Int63n(1e10)),
		Note:            g.pick(notes),
		Status:          g.status(),
		PaymentMethod:   g.pick(methods),
		PaymentStatus:   orders.PaymentUnpaid,
		TotalAmount:     decimal.Zero,
		CreatedAt:       created,
		UpdatedAt:       created.Add(time.Duration(g.Rand.Intn(48)) * time.Hour),
	}
	if o.PaymentMethod != orders.PaymentMethodCOD || o.Status == orders.StatusDelivered {
		paid := created.Add(time.Duration(g.Rand.Intn(30)+1) * time.Minute)
		o.PaymentStatus = orders.PaymentPaid
		o.PaidAt = &paid
		o.TransactionID = fmt.Sprintf("txn-%d-%09d", paid.UnixMilli(), g.Rand.Intn(1e9))
	}

	lines := g.Rand.Intn(4) + 1
	for i := 0; i < lines; i++ {
		pid := int64(g.Rand.Intn(max(g.Opts.Products, 1)) + 1)
		it := orders.Item{
			OrderID:     id,
			ProductID:   pid,
			ProductName: fmt.Sprintf("Product #%d", pid),
			Quantity:    g.Rand.Intn(3) + 1,
			Price:       productPrice(pid),
			Note:        g.pick(notes),
		}
		o.Items = append(o.Items, it)
		o.TotalAmount = o.TotalAmount.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return o
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func text(s string) pgtype.Text { return pgtype.Text{String: s, Valid: s != ""} }

func orderRow(o orders.Order) []any {
	var paidAt pgtype.Timestamptz
	if o.PaidAt != nil {
		paidAt = pgtype.Timestamptz{Time: *o.PaidAt, Valid: true}
	}
	return []any{o.ID, o.UserID, o.CustomerName, o.ShippingAddress, o.PhoneNumber, text(o.Note),
		string(o.Status), o.PaymentMethod, o.PaymentStatus, text(o.TransactionID), paidAt,
		numeric(o.TotalAmount), o.CreatedAt, o.UpdatedAt}
}

func itemRow(it orders.Item) []any {
	return []any{it.OrderID, it.ProductID, it.ProductName, text(it.ProductImage), it.Quantity,
		numeric(it.Price), text(it.Note)}
}

// Seeder writes generated orders in batches, one transaction per batch.
type Seeder struct {
	DB  DB
	Gen *Generator
	Log *zap.Logger
}

// Run inserts Opts.Orders orders after the current highest id and then
// moves the id sequence past them. It returns the number inserted.
func (s *Seeder) Run(ctx context.Context) (int, error) {
	opts := s.Gen.Opts
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}

	var next int64
	if err := s.DB.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM orders`).Scan(&next); err != nil {
		return 0, fmt.Errorf("read max order id: %w", err)
	}

	done := 0
	started := time.Now()
	for done < opts.Orders {
		n := min(opts.BatchSize, opts.Orders-done)
		batch := make([]orders.Order, 0, n)
		for i := 0; i < n; i++ {
			next++
			batch = append(batch, s.Gen.Order(next))
		}
		if err := s.insert(ctx, batch); err != nil {
			return done, err
		}
		done += n
		s.Log.Info("seed progress", zap.Int("inserted", done), zap.Int("total", opts.Orders),
			zap.Duration("elapsed", time.Since(started)))
	}

	if done > 0 {
		if _, err := s.DB.Exec(ctx, `SELECT setval(pg_get_serial_sequence('orders', 'id'), $1)`, next); err != nil {
			return done, fmt.Errorf("advance order id sequence: %w", err)
		}
	}
	return done, nil
}

func (s *Seeder) insert(ctx context.Context, batch []orders.Order) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var items [][]any
	rows := make([][]any, 0, len(batch))
	for _, o := range batch {
		rows = append(rows, orderRow(o))
		for _, it := range o.Items {
			items = append(items, itemRow(it))
		}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"orders"}, orderColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy orders: %w", err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"order_items"}, itemColumns, pgx.CopyFromRows(items)); err != nil {
		return fmt.Errorf("copy order items: %w", err)
	}
	return tx.Commit(ctx)
}
