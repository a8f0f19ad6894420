package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const Path = "/api/email-notification"

type Handler struct {
	Service *Service
	Log     *zap.Logger
}

func (h *Handler) Register(r chi.Router) {
	r.Post(Path, h.notify)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) notify(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body", Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.Service.Notify(ctx, req)
	switch {
	case errors.Is(err, ErrMissingFields):
		writeJSON(w, http.StatusBadRequest, Response{Message: "Missing required fields: userId, orderId"})
	case err != nil:
		if h.Log != nil {
			h.Log.Error("email notification failed", zap.String("order_id", req.OrderID.String()), zap.Error(err))
		}
		writeJSON(w, http.StatusInternalServerError, Response{Message: "Failed to send email notification", Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}
