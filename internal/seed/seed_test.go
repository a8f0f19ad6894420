package seed

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/ariefcatur/go-food-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newGen(opts Options) *Generator {
	return &Generator{Rand: rand.New(rand.NewSource(42)), Now: now, Opts: opts}
}

func TestGeneratorOrdersAreConsistent(t *testing.T) {
	g := newGen(Options{Users: 20, Products: 50})
	for id := int64(1); id <= 200; id++ {
		o := g.Order(id)
		assert.Equal(t, id, o.ID)
		assert.True(t, o.UserID >= 1 && o.UserID <= 20)
		assert.Contains(t, orders.AllStatuses, o.Status)
		assert.False(t, o.CreatedAt.After(now))
		assert.True(t, o.CreatedAt.After(now.AddDate(-1, 0, -1)))
		require.NotEmpty(t, o.Items)
		assert.LessOrEqual(t, len(o.Items), 4)

		total := decimal.Zero
		for _, it := range o.Items {
			assert.Equal(t, id, it.OrderID)
			assert.True(t, it.ProductID >= 1 && it.ProductID <= 50)
			assert.True(t, it.Price.Equal(productPrice(it.ProductID)))
			total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
		assert.True(t, total.Equal(o.TotalAmount))

		if o.PaymentStatus == orders.PaymentPaid {
			require.NotNil(t, o.PaidAt)
			assert.NotEmpty(t, o.TransactionID)
		} else {
			assert.Equal(t, orders.PaymentMethodCOD, o.PaymentMethod)
		}
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a := newGen(Options{Users: 5, Products: 5}).Order(1)
	b := newGen(Options{Users: 5, Products: 5}).Order(1)
	assert.Equal(t, a, b)
}

func TestSeederCopiesInBatches(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(id), 0) FROM orders`)).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(int64(10)))
	for _, n := range []int64{2, 2, 1} {
		mock.ExpectBegin()
		mock.ExpectCopyFrom(pgx.Identifier{"orders"}, orderColumns).WillReturnResult(n)
		mock.ExpectCopyFrom(pgx.Identifier{"order_items"}, itemColumns).WillReturnResult(n)
		mock.ExpectCommit()
	}
	mock.ExpectExec(regexp.QuoteMeta(`SELECT setval`)).
		WithArgs(int64(15)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	s := &Seeder{DB: mock, Gen: newGen(Options{Users: 3, Products: 3, Orders: 5, BatchSize: 2}), Log: zap.NewNop()}
	n, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeederStopsOnCopyFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(id), 0) FROM orders`)).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(int64(0)))
	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"orders"}, orderColumns).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	s := &Seeder{DB: mock, Gen: newGen(Options{Users: 3, Products: 3, Orders: 4, BatchSize: 2}), Log: zap.NewNop()}
	n, err := s.Run(context.Background())
	assert.ErrorContains(t, err, "copy orders")
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
