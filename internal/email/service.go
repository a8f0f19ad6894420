package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrMissingFields = errors.New("missing required fields: userId, orderId")

const (
	msgSimulated = "Email notification simulated (SendGrid not configured)"
	msgSent      = "Email notification sent successfully"
)

// Service validates requests and either simulates or performs delivery.
// A nil Sender means simulation.
type Service struct {
	Sender        Sender
	From          string
	OrderLinkBase string
	Log           *zap.Logger
	Now           func() time.Time

	// Recipient maps a user id to an address. Defaults to a mock mailbox.
	Recipient func(userID ID) string
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

func (s *Service) recipient(userID ID) string {
	if s.Recipient != nil {
		return s.Recipient(userID)
	}
	return "user-" + userID.String() + "@example.com"
}

// messageID mimics the provider's id shape for simulated sends.
func messageID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("msg-%d-%s", now.UnixMilli(), suffix)
}

func (s *Service) Notify(ctx context.Context, req Request) (Response, error) {
	if req.UserID.Missing() || req.OrderID.Missing() {
		return Response{}, ErrMissingFields
	}
	now := s.now()

	if s.Sender == nil {
		s.log().Warn("email provider not configured, simulating send",
			zap.String("user_id", req.UserID.String()), zap.String("order_id", req.OrderID.String()))
		return Response{
			Success:   true,
			MessageID: messageID(now),
			Message:   msgSimulated,
			OrderID:   req.OrderID,
			Timestamp: now.Format(time.RFC3339Nano),
		}, nil
	}

	subject, text, html, err := Render(req, s.OrderLinkBase, now)
	if err != nil {
		return Response{}, fmt.Errorf("render email: %w", err)
	}
	to := s.recipient(req.UserID)
	id, err := s.Sender.Send(ctx, Message{To: to, From: s.From, Subject: subject, Text: text, HTML: html})
	if err != nil {
		return Response{}, err
	}
	s.log().Info("email sent", zap.String("to", to),
		zap.String("order_id", req.OrderID.String()), zap.String("message_id", id))

	return Response{
		Success:   true,
		MessageID: id,
		Message:   msgSent,
		Recipient: to,
		OrderID:   req.OrderID,
		Timestamp: now.Format(time.RFC3339Nano),
	}, nil
}
