package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-food-orders/internal/catalog"
	kafkax "github.com/ariefcatur/go-food-orders/internal/kafka"
	"github.com/ariefcatur/go-food-orders/internal/redisx"
	"github.com/ariefcatur/go-food-orders/internal/upstream"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductResolver interface {
	ProductsByIDs(ctx context.Context, ids []int64, authorization string) ([]catalog.Product, error)
}

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// Service owns the order rules. Redis and Events are optional; the
// database stays the source of truth when either is missing or failing.
type Service struct {
	Repo     Repository
	Catalog  ProductResolver
	Events   Publisher
	Redis    *redis.Client
	Log      *zap.Logger
	Producer string
	Now      func() time.Time
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, field+" must have at least "+fe.Param()+" entry")
		case "gt":
			msgs = append(msgs, field+" must be greater than "+fe.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// Create validates the request, prices it from the catalog and stores it as
// PENDING. Idempotency keys are scoped to the caller: a repeat by the same
// user returns the first order and existed=true, while another user's key
// never resolves to it. The (user, key) unique index settles concurrent
// repeats so only one insert wins.
func (s *Service) Create(ctx context.Context, userID int64, authorization, idemKey string, in CreateInput) (Order, bool, error) {
	if err := validate.Struct(in); err != nil {
		return Order{}, false, validationError(err)
	}

	if o, ok := s.replay(ctx, userID, idemKey); ok {
		return o, true, nil
	}

	ids := make([]int64, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.Catalog.ProductsByIDs(ctx, ids, authorization)
	if err != nil {
		var se *upstream.StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
			return Order{}, false, fmt.Errorf("%w: some products do not exist", ErrValidation)
		}
		return Order{}, false, err
	}
	byID := make(map[int64]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	method := strings.ToUpper(strings.TrimSpace(in.PaymentMethod))
	if method == "" {
		method = PaymentMethodCOD
	}
	paymentStatus := PaymentPaid
	if method == PaymentMethodCOD {
		paymentStatus = PaymentUnpaid
	}

	o := Order{
		UserID:          userID,
		CustomerName:    in.CustomerName,
		ShippingAddress: in.ShippingAddress,
		PhoneNumber:     in.PhoneNumber,
		Note:            in.Note,
		Status:          StatusPending,
		PaymentMethod:   method,
		PaymentStatus:   paymentStatus,
		TotalAmount:     decimal.Zero,
		Items:           make([]Item, 0, len(in.Items)),
		IdempotencyKey:  idemKey,
	}
	for _, it := range in.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return Order{}, false, fmt.Errorf("%w: product %d does not exist", ErrValidation, it.ProductID)
		}
		o.Items = append(o.Items, Item{
			ProductID:    p.ID,
			ProductName:  p.Name,
			ProductImage: p.Image,
			Quantity:     it.Quantity,
			Price:        p.Price,
			Note:         it.Note,
		})
		o.TotalAmount = o.TotalAmount.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	if err := s.Repo.Create(ctx, &o); err != nil {
		if errors.Is(err, ErrDuplicate) {
			prior, gerr := s.Repo.GetByIdempotencyKey(ctx, userID, idemKey)
			if gerr != nil {
				return Order{}, false, fmt.Errorf("load order for idempotency key: %w", gerr)
			}
			s.remember(ctx, userID, idemKey, prior.ID)
			return prior, true, nil
		}
		return Order{}, false, fmt.Errorf("create order: %w", err)
	}
	s.log().Info("order created", zap.Int64("order_id", o.ID), zap.Int64("user_id", userID),
		zap.String("total", o.TotalAmount.StringFixed(2)))

	s.remember(ctx, userID, idemKey, o.ID)
	s.cacheStatus(ctx, o)
	s.publish(ctx, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:       o.ID,
		UserID:        o.UserID,
		CustomerName:  o.CustomerName,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		ItemCount:     len(o.Items),
	})
	return o, false, nil
}

// replay finds the order a user already created under idemKey. Redis is a
// shortcut; the database lookup is authoritative.
func (s *Service) replay(ctx context.Context, userID int64, idemKey string) (Order, bool) {
	if idemKey == "" {
		return Order{}, false
	}
	if s.Redis != nil {
		v, err := s.Redis.Get(ctx, fmt.Sprintf(redisx.KeyIdemOrderCreate, userID, idemKey)).Result()
		if err == nil {
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				if o, err := s.Repo.GetForUser(ctx, id, userID); err == nil {
					return o, true
				}
			}
		}
	}
	o, err := s.Repo.GetByIdempotencyKey(ctx, userID, idemKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log().Warn("idempotency lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return Order{}, false
	}
	s.remember(ctx, userID, idemKey, o.ID)
	return o, true
}

// remember caches the key to order mapping. SetNX keeps the first id if two
// writers race.
func (s *Service) remember(ctx context.Context, userID int64, idemKey string, orderID int64) {
	if idemKey == "" || s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyIdemOrderCreate, userID, idemKey)
	if err := s.Redis.SetNX(ctx, key, orderID, redisx.TTLIdempotency).Err(); err != nil {
		s.log().Warn("cache idempotency key failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) ListMine(ctx context.Context, userID int64, req PageRequest) (Page[Order], error) {
	return s.Repo.ListByUser(ctx, userID, req)
}

func (s *Service) GetForUser(ctx context.Context, id, userID int64) (Order, error) {
	return s.Repo.GetForUser(ctx, id, userID)
}

func (s *Service) ListAll(ctx context.Context, req PageRequest) (Page[Order], error) {
	return s.Repo.ListAll(ctx, req)
}

// UpdateStatus replaces the status in one step. Re-sending the current
// status is accepted and changes nothing.
func (s *Service) UpdateStatus(ctx context.Context, id int64, raw string) (Order, error) {
	to, err := ParseStatus(raw)
	if err != nil {
		return Order{}, err
	}
	o, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	from := o.Status
	if from == to {
		return o, nil
	}
	if !CanTransition(from, to) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if err := s.Repo.UpdateStatus(ctx, id, to); err != nil {
		return Order{}, err
	}
	o.Status = to
	o.UpdatedAt = s.now()

	s.log().Info("order status changed", zap.Int64("order_id", id),
		zap.String("from", string(from)), zap.String("to", string(to)))
	s.cacheStatus(ctx, o)
	s.publish(ctx, EventOrderStatusChanged, id, OrderStatusChangedPayload{
		OrderID: id, UserID: o.UserID, From: from, To: to,
	})
	return o, nil
}

// RecordPayment stores a payment outcome reported by the payment function.
func (s *Service) RecordPayment(ctx context.Context, id int64, paymentStatus, transactionID string) (Order, error) {
	paymentStatus = strings.ToUpper(strings.TrimSpace(paymentStatus))
	switch paymentStatus {
	case PaymentPaid, PaymentFailed, PaymentUnpaid:
	default:
		return Order{}, fmt.Errorf("%w: invalid payment status %q", ErrValidation, paymentStatus)
	}
	var paidAt *time.Time
	if paymentStatus == PaymentPaid {
		t := s.now()
		paidAt = &t
	}
	if err := s.Repo.RecordPayment(ctx, id, paymentStatus, transactionID, paidAt); err != nil {
		return Order{}, err
	}
	o, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	s.publish(ctx, EventPaymentRecorded, id, PaymentRecordedPayload{
		OrderID: id, UserID: o.UserID, PaymentStatus: paymentStatus, TransactionID: transactionID,
	})
	return o, nil
}

type statusView struct {
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Service) cacheStatus(ctx context.Context, o Order) {
	if s.Redis == nil {
		return
	}
	b, _ := json.Marshal(statusView{Status: o.Status, UpdatedAt: o.UpdatedAt})
	key := fmt.Sprintf(redisx.KeyOrderStatus, strconv.FormatInt(o.ID, 10))
	if err := s.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err(); err != nil {
		s.log().Warn("cache status", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

// CachedStatus serves the status from Redis and falls back to the database.
func (s *Service) CachedStatus(ctx context.Context, id int64) (Status, error) {
	if s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, strconv.FormatInt(id, 10))
		if b, err := s.Redis.Get(ctx, key).Bytes(); err == nil {
			var v statusView
			if json.Unmarshal(b, &v) == nil && v.Status != "" {
				return v.Status, nil
			}
		}
	}
	o, err := s.Repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	s.cacheStatus(ctx, o)
	return o.Status, nil
}

func (s *Service) publish(ctx context.Context, eventType string, orderID int64, payload any) {
	if s.Events == nil {
		return
	}
	env := NewEnvelope(eventType, s.Producer, upstream.GetCorrelationID(ctx), orderID, kafkax.MustMarshal(payload))
	err := s.Events.Publish(ctx, PartitionKey(orderID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if err != nil {
		s.log().Warn("publish event", zap.String("event_type", eventType),
			zap.Int64("order_id", orderID), zap.Error(err))
	}
}

// Dashboard aggregates the admin overview. Month boundaries are UTC.
func (s *Service) Dashboard(ctx context.Context) (DashboardStats, error) {
	now := s.now()
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := thisMonth.AddDate(0, 1, 0)
	lastMonth := thisMonth.AddDate(0, -1, 0)

	var (
		st  DashboardStats
		err error
	)
	if st.TotalRevenue, err = s.Repo.TotalRevenue(ctx); err != nil {
		return st, fmt.Errorf("total revenue: %w", err)
	}
	if st.TotalOrders, err = s.Repo.CountOrders(ctx); err != nil {
		return st, fmt.Errorf("count orders: %w", err)
	}
	if st.NewCustomers, err = s.Repo.CountCustomersBetween(ctx, thisMonth, nextMonth); err != nil {
		return st, fmt.Errorf("count customers: %w", err)
	}
	cur, err := s.Repo.RevenueBetween(ctx, thisMonth, nextMonth)
	if err != nil {
		return st, fmt.Errorf("revenue this month: %w", err)
	}
	prev, err := s.Repo.RevenueBetween(ctx, lastMonth, thisMonth)
	if err != nil {
		return st, fmt.Errorf("revenue last month: %w", err)
	}
	st.RevenueGrowth = Growth(cur, prev)
	if st.MonthlyRevenue, err = s.Repo.MonthlyRevenue(ctx); err != nil {
		return st, fmt.Errorf("monthly revenue: %w", err)
	}
	if st.RecentSales, err = s.Repo.Recent(ctx, 5); err != nil {
		return st, fmt.Errorf("recent sales: %w", err)
	}
	if st.RecentSales == nil {
		st.RecentSales = []Order{}
	}
	return st, nil
}

// Growth is the month-over-month change in percent, rounded to two
// decimals. A zero baseline yields 100 when there is new revenue, else 0.
func Growth(cur, prev decimal.Decimal) float64 {
	if prev.IsZero() {
		if cur.IsPositive() {
			return 100
		}
		return 0
	}
	g, _ := cur.Sub(prev).DivRound(prev, 4).Mul(decimal.NewFromInt(100)).Float64()
	return g
}
