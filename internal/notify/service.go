// Package notify turns order events into customer emails.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-food-orders/internal/email"
	kafkax "github.com/ariefcatur/go-food-orders/internal/kafka"
	"github.com/ariefcatur/go-food-orders/internal/orders"
	"github.com/ariefcatur/go-food-orders/internal/redisx"
	"github.com/ariefcatur/go-food-orders/internal/upstream"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dedupNamespace = "notifier"

type Mailer interface {
	Send(ctx context.Context, req email.Request) (email.Response, error)
}

// Service is installed as the order-events consumer handler.
// Redis is optional; without it duplicates are not suppressed.
type Service struct {
	Redis *redis.Client
	Mail  Mailer
	Log   *zap.Logger
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		s.log().Error("drop undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	req, ok, err := s.requestFor(env)
	if err != nil {
		s.log().Error("drop event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, dedupNamespace, env.EventID)
	if s.Redis != nil {
		first, err := redisx.MarkOnce(ctx, s.Redis, dkey, redisx.TTLDedup)
		if err != nil {
			return fmt.Errorf("dedup: %w", err)
		}
		if !first {
			s.log().Debug("duplicate event", zap.String("event_id", env.EventID))
			return nil
		}
	}

	if env.TraceID != "" {
		ctx = upstream.WithCorrelationID(ctx, env.TraceID)
	}
	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.Mail.Send(sendCtx, req); err != nil {
		if s.Redis != nil {
			_ = s.Redis.Del(ctx, dkey).Err()
		}
		return fmt.Errorf("send %s email for order %s: %w", env.EventType, req.OrderID, err)
	}
	s.log().Info("order email sent", zap.String("event_type", env.EventType),
		zap.String("order_id", req.OrderID.String()))
	return nil
}

// requestFor maps an event to an email; ok is false for events that do not
// produce one.
func (s *Service) requestFor(env orders.Envelope) (email.Request, bool, error) {
	ts := env.OccurredAt.UTC().Format(time.RFC3339)
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return email.Request{}, false, err
		}
		return email.Request{
			UserID:        email.IDFromInt(p.UserID),
			OrderID:       email.IDFromInt(p.OrderID),
			Amount:        amountOrNull(p.TotalAmount),
			PaymentMethod: p.PaymentMethod,
			Timestamp:     ts,
			Kind:          email.KindOrderCreated,
			Status:        string(orders.StatusPending),
		}, true, nil
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return email.Request{}, false, err
		}
		return email.Request{
			UserID:    email.IDFromInt(p.UserID),
			OrderID:   email.IDFromInt(p.OrderID),
			Timestamp: ts,
			Kind:      email.KindStatusChanged,
			Status:    string(p.To),
		}, true, nil
	default:
		// Payment confirmations are mailed by the payment processor.
		return email.Request{}, false, nil
	}
}

func amountOrNull(d decimal.Decimal) decimal.NullDecimal {
	if d.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
