// Package email renders order emails and delivers them through SendGrid,
// or simulates delivery when no provider key is configured.
package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ID accepts either a JSON number or a JSON string and keeps its text.
// Callers send numeric order ids; older clients send strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("id must be a number or string: %w", err)
		}
		*id = ID(n.String())
		return nil
	}
}

// MarshalJSON writes a bare number only when the text is the canonical form
// of an int64, so "007" and "+12" stay strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Missing treats the empty string and zero as absent.
func (id ID) Missing() bool { return id == "" || id == "0" }

func (id ID) String() string { return string(id) }

func IDFromInt(n int64) ID { return ID(strconv.FormatInt(n, 10)) }

type Kind string

const (
	KindPayment       Kind = "PAYMENT_CONFIRMED"
	KindOrderCreated  Kind = "ORDER_CREATED"
	KindStatusChanged Kind = "STATUS_CHANGED"
)

// Request is the email function input. Kind defaults to KindPayment.
type Request struct {
	UserID        ID                  `json:"userId"`
	OrderID       ID                  `json:"orderId"`
	TransactionID string              `json:"transactionId,omitempty"`
	Amount        decimal.NullDecimal `json:"amount"`
	PaymentMethod string              `json:"paymentMethod,omitempty"`
	Timestamp     string              `json:"timestamp,omitempty"`
	Kind          Kind                `json:"kind,omitempty"`
	Status        string              `json:"status,omitempty"`
}

type Response struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Message   string `json:"message"`
	Recipient string `json:"recipient,omitempty"`
	OrderID   ID     `json:"orderId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Message is one rendered email ready for a provider.
type Message struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string
}
