// Package orderstest provides an in-memory orders.Repository for tests.
package orderstest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-food-orders/internal/orders"
	"github.com/shopspring/decimal"
)

// Repo keeps orders in a map. Set Err to make every call fail.
type Repo struct {
	mu     sync.Mutex
	orders map[int64]orders.Order
	nextID int64
	Now    func() time.Time
	Err    error
}

func NewRepo() *Repo {
	return &Repo{orders: map[int64]orders.Order{}, Now: time.Now}
}

// Put stores o as is, keeping its id.
func (r *Repo) Put(o orders.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.Items == nil {
		o.Items = []orders.Item{}
	}
	r.orders[o.ID] = o
	if o.ID > r.nextID {
		r.nextID = o.ID
	}
}

func (r *Repo) Create(_ context.Context, o *orders.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if o.IdempotencyKey != "" {
		if _, ok := r.byKey(o.UserID, o.IdempotencyKey); ok {
			return orders.ErrDuplicate
		}
	}
	r.nextID++
	o.ID = r.nextID
	o.CreatedAt = r.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		o.Items[i].ID = o.ID*100 + int64(i)
		o.Items[i].OrderID = o.ID
	}
	r.orders[o.ID] = *o
	return nil
}

func (r *Repo) Get(_ context.Context, id int64) (orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return orders.Order{}, r.Err
	}
	o, ok := r.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (r *Repo) GetForUser(ctx context.Context, id, userID int64) (orders.Order, error) {
	o, err := r.Get(ctx, id)
	if err != nil {
		return o, err
	}
	if o.UserID != userID {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (r *Repo) byKey(userID int64, key string) (orders.Order, bool) {
	for _, o := range r.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return o, true
		}
	}
	return orders.Order{}, false
}

func (r *Repo) GetByIdempotencyKey(_ context.Context, userID int64, key string) (orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return orders.Order{}, r.Err
	}
	o, ok := r.byKey(userID, key)
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (r *Repo) sorted(keep func(orders.Order) bool) []orders.Order {
	var out []orders.Order
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func page(all []orders.Order, req orders.PageRequest) orders.Page[orders.Order] {
	start := req.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + req.Size
	if end > len(all) {
		end = len(all)
	}
	return orders.NewPage(all[start:end], req, int64(len(all)))
}

func (r *Repo) ListByUser(_ context.Context, userID int64, req orders.PageRequest) (orders.Page[orders.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return orders.Page[orders.Order]{}, r.Err
	}
	return page(r.sorted(func(o orders.Order) bool { return o.UserID == userID }), req), nil
}

func (r *Repo) ListAll(_ context.Context, req orders.PageRequest) (orders.Page[orders.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return orders.Page[orders.Order]{}, r.Err
	}
	return page(r.sorted(func(orders.Order) bool { return true }), req), nil
}

func (r *Repo) Recent(_ context.Context, n int) ([]orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted(func(orders.Order) bool { return true })
	if len(all) > n {
		all = all[:n]
	}
	return all, r.Err
}

func (r *Repo) UpdateStatus(_ context.Context, id int64, s orders.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	o, ok := r.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = s
	o.UpdatedAt = r.Now().UTC()
	r.orders[id] = o
	return nil
}

func (r *Repo) RecordPayment(_ context.Context, id int64, paymentStatus, transactionID string, paidAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	o, ok := r.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.PaymentStatus = paymentStatus
	o.TransactionID = transactionID
	o.PaidAt = paidAt
	r.orders[id] = o
	return nil
}

func (r *Repo) sum(keep func(orders.Order) bool) decimal.Decimal {
	total := decimal.Zero
	for _, o := range r.orders {
		if o.Status != orders.StatusCancelled && keep(o) {
			total = total.Add(o.TotalAmount)
		}
	}
	return total
}

func between(from, to time.Time) func(orders.Order) bool {
	return func(o orders.Order) bool { return !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) }
}

func (r *Repo) TotalRevenue(context.Context) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sum(func(orders.Order) bool { return true }), r.Err
}

func (r *Repo) RevenueBetween(_ context.Context, from, to time.Time) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sum(between(from, to)), r.Err
}

func (r *Repo) CountOrders(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.orders)), r.Err
}

func (r *Repo) CountCustomersBetween(_ context.Context, from, to time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in := between(from, to)
	users := map[int64]bool{}
	for _, o := range r.orders {
		if in(o) {
			users[o.UserID] = true
		}
	}
	return int64(len(users)), r.Err
}

func (r *Repo) MonthlyRevenue(context.Context) ([]orders.MonthlyStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	type ym struct{ y, m int }
	sums := map[ym]decimal.Decimal{}
	for _, o := range r.orders {
		if o.Status == orders.StatusCancelled {
			continue
		}
		k := ym{o.CreatedAt.Year(), int(o.CreatedAt.Month())}
		sums[k] = sums[k].Add(o.TotalAmount)
	}
	keys := make([]ym, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].y != keys[j].y {
			return keys[i].y < keys[j].y
		}
		return keys[i].m < keys[j].m
	})
	out := []orders.MonthlyStats{}
	for _, k := range keys {
		out = append(out, orders.MonthlyStats{Name: fmt.Sprintf("Month %d", k.m), Total: sums[k]})
	}
	return out, r.Err
}
