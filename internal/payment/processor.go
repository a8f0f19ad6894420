// Package payment simulates a payment gateway: it validates a charge,
// waits, approves most of them, and reports the outcome to the orders
// service.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-food-orders/internal/email"
	"github.com/ariefcatur/go-food-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var Methods = []string{"Credit Card", "Debit Card", "PayPal", "Bank Transfer"}

const (
	ErrorCodeDeclined = "PAYMENT_DECLINED"

	msgMissing  = "Missing required fields: orderId, userId, amount, paymentMethod"
	msgAmount   = "Invalid amount. Must be greater than 0"
	msgSuccess  = "Payment processed successfully"
	msgDeclined = "Payment processing failed. Please try again or use a different payment method."

	emailTimeout = 5 * time.Second
)

type Request struct {
	OrderID       email.ID            `json:"orderId"`
	UserID        email.ID            `json:"userId"`
	Amount        decimal.NullDecimal `json:"amount"`
	PaymentMethod string              `json:"paymentMethod"`
}

type Result struct {
	Success       bool             `json:"success"`
	OrderID       email.ID         `json:"orderId,omitempty"`
	TransactionID string           `json:"transactionId,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	PaymentMethod string           `json:"paymentMethod,omitempty"`
	Message       string           `json:"message"`
	Timestamp     string           `json:"timestamp,omitempty"`
	ReceiptURL    string           `json:"receiptUrl,omitempty"`
	ErrorCode     string           `json:"errorCode,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// ValidationError is a rejected request; Message is shown to the caller.
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

// Validate checks fields in the order callers expect their errors: presence,
// then amount sign, then method.
func Validate(req Request) error {
	if req.OrderID.Missing() || req.UserID.Missing() || !req.Amount.Valid ||
		req.Amount.Decimal.IsZero() || strings.TrimSpace(req.PaymentMethod) == "" {
		return &ValidationError{Message: msgMissing}
	}
	if !req.Amount.Decimal.IsPositive() {
		return &ValidationError{Message: msgAmount}
	}
	for _, m := range Methods {
		if req.PaymentMethod == m {
			return nil
		}
	}
	return &ValidationError{Message: "Invalid payment method. Must be one of: " + strings.Join(Methods, ", ")}
}

// OrderUpdater records a payment outcome on the order.
type OrderUpdater interface {
	RecordPayment(ctx context.Context, orderID email.ID, paymentStatus, transactionID string) error
}

// Mailer sends the confirmation email.
type Mailer interface {
	Send(ctx context.Context, req email.Request) (email.Response, error)
}

type Options struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	SuccessRate float64
	ReceiptBase string
}

// Processor handles one charge per call and keeps no per-order state.
// A nil Orders skips the update and a nil Mail skips the email.
type Processor struct {
	Orders OrderUpdater
	Mail   Mailer
	Log    *zap.Logger
	Opts   Options

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64

	mu  sync.Mutex
	rng *rand.Rand
	wg  sync.WaitGroup
}

func NewProcessor(opts Options, updater OrderUpdater, mail Mailer, log *zap.Logger) *Processor {
	if opts.SuccessRate <= 0 || opts.SuccessRate > 1 {
		opts.SuccessRate = 0.9
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		Orders: updater,
		Mail:   mail,
		Log:    log,
		Opts:   opts,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Seed makes approval and delay draws reproducible.
func (p *Processor) Seed(seed int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rng = rand.New(rand.NewSource(seed))
}

func (p *Processor) float() float64 {
	if p.Rand != nil {
		return p.Rand()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Processor) delay() time.Duration {
	spread := p.Opts.MaxDelay - p.Opts.MinDelay
	return p.Opts.MinDelay + time.Duration(p.float()*float64(spread))
}

func transactionID(now time.Time) string {
	return fmt.Sprintf("txn-%d-%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
}

// Process runs one simulated charge. A declined charge is a normal Result
// with Success=false; an error means the outcome could not be recorded.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if err := Validate(req); err != nil {
		return Result{}, err
	}
	p.Log.Info("processing payment", zap.String("order_id", req.OrderID.String()),
		zap.String("amount", req.Amount.Decimal.String()), zap.String("method", req.PaymentMethod))

	if err := p.sleep(ctx, p.delay()); err != nil {
		return Result{}, err
	}

	approved := p.float() < p.Opts.SuccessRate
	now := p.now()
	txn := transactionID(now)
	ts := now.Format(time.RFC3339Nano)

	if !approved {
		p.Log.Warn("payment declined", zap.String("order_id", req.OrderID.String()))
		if err := p.record(ctx, req.OrderID, orders.PaymentFailed, ""); err != nil {
			return Result{}, err
		}
		return Result{
			OrderID:       req.OrderID,
			TransactionID: txn,
			Message:       msgDeclined,
			Timestamp:     ts,
			ErrorCode:     ErrorCodeDeclined,
		}, nil
	}

	p.Log.Info("payment approved", zap.String("order_id", req.OrderID.String()), zap.String("transaction_id", txn))
	if err := p.record(ctx, req.OrderID, orders.PaymentPaid, txn); err != nil {
		return Result{}, err
	}
	p.notify(ctx, email.Request{
		UserID:        req.UserID,
		OrderID:       req.OrderID,
		TransactionID: txn,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Timestamp:     ts,
		Kind:          email.KindPayment,
	})

	amount := req.Amount.Decimal
	return Result{
		Success:       true,
		OrderID:       req.OrderID,
		TransactionID: txn,
		Amount:        &amount,
		PaymentMethod: req.PaymentMethod,
		Message:       msgSuccess,
		Timestamp:     ts,
		ReceiptURL:    strings.TrimRight(p.Opts.ReceiptBase, "/") + "/" + txn,
	}, nil
}

// ErrOrderMissing is returned by an OrderUpdater when the order is unknown.
// The processor logs it and carries on.
var ErrOrderMissing = errors.New("order not found")

func (p *Processor) record(ctx context.Context, orderID email.ID, status, txn string) error {
	if p.Orders == nil {
		p.Log.Error("orders service not configured, payment outcome not recorded",
			zap.String("order_id", orderID.String()), zap.String("payment_status", status))
		return nil
	}
	err := p.Orders.RecordPayment(ctx, orderID, status, txn)
	switch {
	case errors.Is(err, ErrOrderMissing):
		p.Log.Warn("order not found while recording payment", zap.String("order_id", orderID.String()))
		return nil
	case err != nil:
		p.Log.Error("record payment failed", zap.String("order_id", orderID.String()), zap.Error(err))
		return fmt.Errorf("record payment: %w", err)
	}
	return nil
}

// notify sends the confirmation in the background; failures are only logged.
func (p *Processor) notify(ctx context.Context, req email.Request) {
	if p.Mail == nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emailTimeout)
		defer cancel()
		if _, err := p.Mail.Send(ctx, req); err != nil {
			p.Log.Error("trigger email notification", zap.String("order_id", req.OrderID.String()), zap.Error(err))
			return
		}
		p.Log.Info("email notification triggered", zap.String("order_id", req.OrderID.String()))
	}()
}

// Wait blocks until background email calls finish.
func (p *Processor) Wait() { p.wg.Wait() }
