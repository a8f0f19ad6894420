package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-food-orders/internal/cart"
	"github.com/ariefcatur/go-food-orders/internal/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultOTPLifetime matches the users service OTP validity.
const defaultOTPLifetime = 180 * time.Second

type CartView struct {
	Items      []cart.LineItem `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Notice     *cart.Notice    `json:"notice,omitempty"`
}

func viewOf(e *cart.Engine) CartView {
	items := e.Items()
	return CartView{Items: items, TotalItems: cart.TotalItems(items), TotalPrice: cart.TotalPrice(items)}
}

type AddItemReq struct {
	ProductID int64    `json:"productId"`
	Quantity  *int     `json:"quantity"`
	Size      string   `json:"size"`
	Toppings  []string `json:"toppings"`
	Note      string   `json:"note"`
}

type UpdateItemReq struct {
	Quantity int `json:"quantity"`
}

// engine loads the cart bound to the request session.
func (g *Gateway) engine(ctx context.Context, n cart.Notifier) (*cart.Engine, error) {
	e := cart.NewEngine(cart.RedisStore{Redis: g.Redis, Session: SessionID(ctx)}, n, g.Log)
	if err := e.Load(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (g *Gateway) cartFailed(w http.ResponseWriter, r *http.Request, err error) {
	g.Log.Error("cart store failed", zap.String("session", SessionID(r.Context())), zap.Error(err))
	httpx.WriteError(w, r, http.StatusInternalServerError, "cart unavailable")
}

func (g *Gateway) getCart(w http.ResponseWriter, r *http.Request) {
	e, err := g.engine(r.Context(), nil)
	if err != nil {
		g.cartFailed(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewOf(e))
}

func (g *Gateway) clearCart(w http.ResponseWriter, r *http.Request) {
	e, err := g.engine(r.Context(), nil)
	if err == nil {
		err = e.Clear(r.Context())
	}
	if err != nil {
		g.cartFailed(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewOf(e))
}

func parseOptions(req AddItemReq) (cart.Options, error) {
	size, ok := cart.LookupSize(req.Size)
	if !ok {
		return cart.Options{}, errors.New("unknown size " + req.Size)
	}
	opts := cart.Options{Size: size, Note: req.Note}
	for _, id := range req.Toppings {
		t, ok := cart.LookupTopping(id)
		if !ok {
			return cart.Options{}, errors.New("unknown topping " + id)
		}
		opts.Toppings = append(opts.Toppings, t)
	}
	return opts, nil
}

func (g *Gateway) addItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if req.ProductID <= 0 || qty <= 0 {
		httpx.WriteError(w, r, http.StatusBadRequest, "productId and a positive quantity are required")
		return
	}
	opts, err := parseOptions(req)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	found, err := g.Catalog.ProductsByIDs(r.Context(), []int64{req.ProductID}, r.Header.Get("Authorization"))
	if err != nil {
		g.Log.Warn("product lookup failed", zap.Int64("product_id", req.ProductID), zap.Error(err))
		httpx.WriteError(w, r, http.StatusBadGateway, "products service unavailable")
		return
	}
	var product *cart.Product
	for _, p := range found {
		if p.ID == req.ProductID {
			product = &cart.Product{ID: p.ID, Name: p.Name, Price: p.Price, Image: p.Image}
		}
	}
	if product == nil {
		httpx.WriteError(w, r, http.StatusNotFound, "product not found")
		return
	}

	e, err := g.engine(r.Context(), cart.NotifierFunc(func(_ context.Context, n cart.Notice) {
		g.Log.Debug("cart notice", zap.String("kind", string(n.Kind)), zap.String("key", n.Key),
			zap.Int("quantity", n.Quantity))
	}))
	if err != nil {
		g.cartFailed(w, r, err)
		return
	}
	notice, err := e.Add(r.Context(), *product, qty, opts)
	if err != nil {
		g.cartFailed(w, r, err)
		return
	}
	view := viewOf(e)
	view.Notice = &notice
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (g *Gateway) updateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	e, err := g.engine(r.Context(), nil)
	if err == nil {
		err = e.UpdateQuantity(r.Context(), chi.URLParam(r, "key"), req.Quantity)
	}
	if err != nil {
		g.cartFailed(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewOf(e))
}

func (g *Gateway) removeItem(w http.ResponseWriter, r *http.Request) {
	e, err := g.engine(r.Context(), nil)
	if err == nil {
		err = e.Remove(r.Context(), chi.URLParam(r, "key"))
	}
	if err != nil {
		g.cartFailed(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewOf(e))
}

type VerificationReq struct {
	Email      string `json:"email"`
	TTLSeconds int    `json:"ttlSeconds"`
}

type VerificationView struct {
	Email            string    `json:"email"`
	Expiry           time.Time `json:"expiry"`
	RemainingSeconds int       `json:"remainingSeconds"`
}

func (g *Gateway) verificationView(p cart.PendingVerification) VerificationView {
	return VerificationView{
		Email:            p.Email,
		Expiry:           p.Expiry,
		RemainingSeconds: int(p.Remaining(g.now()).Seconds()),
	}
}

func (g *Gateway) putVerification(w http.ResponseWriter, r *http.Request) {
	var req VerificationReq
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Email == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	ttl := defaultOTPLifetime
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	p := cart.PendingVerification{Email: req.Email, Expiry: g.now().Add(ttl).UTC()}
	if err := (cart.VerificationStore{Redis: g.Redis}).Save(r.Context(), SessionID(r.Context()), p); err != nil {
		g.cartFailed(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, g.verificationView(p))
}

func (g *Gateway) getVerification(w http.ResponseWriter, r *http.Request) {
	p, ok, err := (cart.VerificationStore{Redis: g.Redis}).Load(r.Context(), SessionID(r.Context()))
	if err != nil && !errors.Is(err, cart.ErrCorrupt) {
		g.cartFailed(w, r, err)
		return
	}
	if !ok || p.Remaining(g.now()) == 0 {
		httpx.WriteError(w, r, http.StatusNotFound, "no pending verification")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, g.verificationView(p))
}

func (g *Gateway) deleteVerification(w http.ResponseWriter, r *http.Request) {
	if err := (cart.VerificationStore{Redis: g.Redis}).Delete(r.Context(), SessionID(r.Context())); err != nil {
		g.cartFailed(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
