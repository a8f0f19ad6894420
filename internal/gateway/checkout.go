package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-food-orders/internal/cart"
	"github.com/ariefcatur/go-food-orders/internal/httpx"
	"github.com/ariefcatur/go-food-orders/internal/orders"
	"github.com/ariefcatur/go-food-orders/internal/redisx"
	"github.com/ariefcatur/go-food-orders/internal/upstream"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const actionCheckout = "checkout"

var validate = validator.New(validator.WithRequiredStructEnabled())

type CheckoutReq struct {
	CustomerName    string `json:"customerName" validate:"required"`
	ShippingAddress string `json:"shippingAddress" validate:"required"`
	PhoneNumber     string `json:"phoneNumber" validate:"required"`
	Note            string `json:"note"`
	PaymentMethod   string `json:"paymentMethod"`
}

type CheckoutResp struct {
	Order orders.Order `json:"order"`
	Cart  CartView     `json:"cart"`
}

// lineNote carries the picked options to the order line.
func lineNote(li cart.LineItem) string {
	var parts []string
	if li.Size != "" && li.Size != cart.SizeSmall.Name {
		parts = append(parts, "Size: "+li.Size)
	}
	if len(li.Toppings) > 0 {
		parts = append(parts, "Toppings: "+strings.Join(li.Toppings, ", "))
	}
	if li.Note != "" {
		parts = append(parts, "Note: "+li.Note)
	}
	return strings.Join(parts, "; ")
}

func orderInput(req CheckoutReq, items []cart.LineItem) orders.CreateInput {
	in := orders.CreateInput{
		CustomerName:    req.CustomerName,
		ShippingAddress: req.ShippingAddress,
		PhoneNumber:     req.PhoneNumber,
		Note:            req.Note,
		PaymentMethod:   req.PaymentMethod,
		Items:           make([]orders.ItemInput, 0, len(items)),
	}
	for _, li := range items {
		in.Items = append(in.Items, orders.ItemInput{ProductID: li.ProductID, Quantity: li.Quantity, Note: lineNote(li)})
	}
	return in
}

// checkout submits the session cart as an order. A second submit for the
// same session while one is pending gets 409. The cart survives failures.
func (g *Gateway) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authz := r.Header.Get("Authorization")
	if authz == "" {
		writeAuthError(w, r)
		return
	}
	var req CheckoutReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "customerName, shippingAddress and phoneNumber are required")
		return
	}

	session := SessionID(ctx)
	ok, err := redisx.Acquire(ctx, g.Redis, actionCheckout, session)
	if err != nil {
		g.cartFailed(w, r, err)
		return
	}
	if !ok {
		httpx.WriteError(w, r, http.StatusConflict, "checkout already in progress")
		return
	}
	defer func() {
		if err := redisx.Release(context.WithoutCancel(ctx), g.Redis, actionCheckout, session); err != nil {
			g.Log.Warn("release checkout guard", zap.String("session", session), zap.Error(err))
		}
	}()

	e, err := g.engine(ctx, nil)
	if err != nil {
		g.cartFailed(w, r, err)
		return
	}
	items := e.Items()
	if len(items) == 0 {
		httpx.WriteError(w, r, http.StatusBadRequest, "cart is empty")
		return
	}

	h := http.Header{}
	h.Set("Authorization", authz)
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		h.Set("Idempotency-Key", key)
	}
	var created orders.Order
	err = g.Orders.DoJSON(ctx, http.MethodPost, "/api/v1/orders", "", h, orderInput(req, items), &created)
	var se *upstream.StatusError
	switch {
	case errors.As(err, &se) && se.Code == http.StatusUnauthorized:
		writeAuthError(w, r)
		return
	case errors.As(err, &se) && se.Code >= 400 && se.Code < 500:
		httpx.WriteError(w, r, se.Code, upstreamMessage(se))
		return
	case err != nil:
		g.Log.Error("checkout failed", zap.String("session", session), zap.Error(err))
		httpx.WriteError(w, r, http.StatusBadGateway, "orders service unavailable")
		return
	}

	if err := e.Clear(ctx); err != nil {
		g.Log.Error("clear cart after checkout", zap.Int64("order_id", created.ID), zap.Error(err))
	}
	g.Log.Info("checkout completed", zap.String("session", session), zap.Int64("order_id", created.ID),
		zap.String("total", created.TotalAmount.String()))
	httpx.WriteJSON(w, http.StatusCreated, CheckoutResp{Order: created, Cart: viewOf(e)})
}
