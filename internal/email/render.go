package email

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

//go:embed templates/*
var templateFS embed.FS

var (
	htmlTmpl = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/order_email.html"))
	textTmpl = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/order_email.txt"))
)

const (
	notAvailable = "N/A"
	supportEmail = "support@ecommerce-cloud.com"
	dateLayout   = "1/2/2006, 3:04:05 PM"
)

type view struct {
	Title         string
	Headline      string
	Intro         string
	OrderID       string
	Status        string
	TransactionID string
	Amount        string
	PaymentMethod string
	Date          string
	OrderURL      string
	SupportEmail  string
}

func subjectFor(req Request) string {
	switch req.Kind {
	case KindOrderCreated:
		return "Order Received - #" + req.OrderID.String()
	case KindStatusChanged:
		return "Order Update - #" + req.OrderID.String()
	default:
		return "Order Confirmation - #" + req.OrderID.String()
	}
}

func orEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

func newView(req Request, orderLinkBase string, now time.Time) view {
	v := view{
		Title:         "Order Confirmation",
		Headline:      "Payment Successful!",
		Intro:         "Your payment has been processed successfully. We'll start preparing your order right away.",
		OrderID:       req.OrderID.String(),
		Status:        req.Status,
		TransactionID: orEmpty(req.TransactionID),
		Amount:        notAvailable,
		PaymentMethod: orEmpty(req.PaymentMethod),
		Date:          now.Format(dateLayout),
		OrderURL:      strings.TrimRight(orderLinkBase, "/") + "/" + req.OrderID.String(),
		SupportEmail:  supportEmail,
	}
	if req.Amount.Valid && !req.Amount.Decimal.IsZero() {
		v.Amount = "$" + req.Amount.Decimal.StringFixed(2)
	}
	if ts, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
		v.Date = ts.Format(dateLayout)
	}
	switch req.Kind {
	case KindOrderCreated:
		v.Title = "Order Received"
		v.Headline = "Order Received"
		v.Intro = "We have received your order and will confirm it shortly."
	case KindStatusChanged:
		v.Title = "Order Update"
		v.Headline = "Your order is now " + req.Status
		v.Intro = "The status of your order has changed."
	}
	return v
}

// Render builds the subject and both bodies for req.
func Render(req Request, orderLinkBase string, now time.Time) (subject, text, html string, err error) {
	v := newView(req, orderLinkBase, now)

	var hb, tb bytes.Buffer
	if err = htmlTmpl.Execute(&hb, v); err != nil {
		return "", "", "", err
	}
	if err = textTmpl.Execute(&tb, v); err != nil {
		return "", "", "", err
	}
	return subjectFor(req), tb.String(), hb.String(), nil
}
