package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-food-orders/internal/auth"
	"github.com/ariefcatur/go-food-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderInternalKey    = "X-Internal-Key"

	defaultMyPageSize    = 10
	defaultAdminPageSize = 20
	maxPageSize          = 1000
)

// UserResolver finds the numeric id of a caller whose token carries only an email.
type UserResolver interface {
	CurrentUserID(ctx context.Context, authorization string) (int64, error)
}

type OrdersHandler struct {
	Service     *orders.Service
	Verifier    *auth.Verifier
	Users       UserResolver
	InternalKey string
	Log         *zap.Logger
}

type UpdateStatusReq struct {
	Status string `json:"status"`
}

type RecordPaymentReq struct {
	PaymentStatus string `json:"paymentStatus"`
	TransactionID string `json:"transactionId"`
}

type StatusResp struct {
	OrderID int64           `json:"orderId"`
	Status  orders.Status   `json:"status"`
	Actions []orders.Action `json:"actions"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/api/v1/orders", func(r chi.Router) {
		r.With(auth.RequireKey(HeaderInternalKey, h.InternalKey)).Patch("/{id}/payment", h.recordPayment)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(h.Verifier))
			r.Post("/", h.create)
			r.Get("/my", h.listMine)
			r.Get("/{id}", h.getMine)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleAdmin))
				r.Get("/", h.listAll)
				r.Get("/admin/dashboard", h.dashboard)
				r.Get("/{id}/status", h.getStatus)
				r.Patch("/{id}/status", h.updateStatus)
			})
		})
	})
}

func (h *OrdersHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// fail maps domain errors onto HTTP statuses.
func (h *OrdersHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orders.ErrValidation), errors.Is(err, orders.ErrInvalidTransition):
		WriteError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, orders.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, r, http.StatusGatewayTimeout, "request timed out")
	default:
		h.log().Error("orders request failed", zap.String("path", r.URL.Path), zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (h *OrdersHandler) userID(ctx context.Context, w http.ResponseWriter, r *http.Request) (int64, bool) {
	p, ok := auth.FromContext(ctx)
	if !ok {
		WriteError(w, r, http.StatusUnauthorized, "unauthenticated")
		return 0, false
	}
	if id := p.Claims.NumericUserID(); id != 0 {
		return id, true
	}
	if h.Users != nil {
		id, err := h.Users.CurrentUserID(ctx, p.Authorization)
		if err == nil {
			return id, true
		}
		h.log().Warn("resolve user id", zap.String("subject", p.Claims.Subject), zap.Error(err))
	}
	WriteError(w, r, http.StatusUnauthorized, "cannot resolve user")
	return 0, false
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func pageRequest(r *http.Request, defaultSize int) orders.PageRequest {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 0 {
		page = 0
	}
	size, err := strconv.Atoi(q.Get("size"))
	if err != nil || size <= 0 {
		size = defaultSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return orders.PageRequest{Page: page, Size: size}
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateInput
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	uid, ok := h.userID(ctx, w, r)
	if !ok {
		return
	}
	p, _ := auth.FromContext(ctx)
	idemKey := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))

	o, existed, err := h.Service.Create(ctx, uid, p.Authorization, idemKey, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if existed {
		w.Header().Set("Idempotent-Replayed", "true")
		WriteJSON(w, http.StatusOK, o)
		return
	}
	WriteJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	uid, ok := h.userID(ctx, w, r)
	if !ok {
		return
	}
	page, err := h.Service.ListMine(ctx, uid, pageRequest(r, defaultMyPageSize))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

func (h *OrdersHandler) getMine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "invalid order id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	uid, ok := h.userID(ctx, w, r)
	if !ok {
		return
	}
	o, err := h.Service.GetForUser(ctx, id, uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	page, err := h.Service.ListAll(ctx, pageRequest(r, defaultAdminPageSize))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "invalid order id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	st, err := h.Service.CachedStatus(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, StatusResp{OrderID: id, Status: st, Actions: orders.NextActions(st)})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "invalid order id")
		return
	}
	var req UpdateStatusReq
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "invalid order id")
		return
	}
	var req RecordPaymentReq
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.RecordPayment(ctx, id, req.PaymentStatus, req.TransactionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	st, err := h.Service.Dashboard(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}
