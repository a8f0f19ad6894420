package payment

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/ariefcatur/go-food-orders/internal/email"
	"github.com/ariefcatur/go-food-orders/internal/upstream"
)

// OrdersClient records payment outcomes through the orders service's
// internal endpoint.
type OrdersClient struct {
	c   *upstream.Client
	key string
}

func NewOrdersClient(c *upstream.Client, internalKey string) *OrdersClient {
	return &OrdersClient{c: c, key: internalKey}
}

func (oc *OrdersClient) RecordPayment(ctx context.Context, orderID email.ID, paymentStatus, transactionID string) error {
	h := http.Header{}
	h.Set("X-Internal-Key", oc.key)
	body := map[string]string{"paymentStatus": paymentStatus, "transactionId": transactionID}

	err := oc.c.DoJSON(ctx, http.MethodPatch, "/api/v1/orders/"+url.PathEscape(orderID.String())+"/payment", "", h, body, nil)
	var se *upstream.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return ErrOrderMissing
	}
	return err
}
