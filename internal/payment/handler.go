package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const Path = "/api/payment-processor"

type Handler struct {
	Processor *Processor
	Log       *zap.Logger
}

func (h *Handler) Register(r chi.Router) {
	r.Post(Path, h.process)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Result{Message: "Invalid request body", Error: err.Error()})
		return
	}

	res, err := h.Processor.Process(r.Context(), req)
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, Result{Message: verr.Message})
	case err != nil:
		if h.Log != nil {
			h.Log.Error("payment processing error", zap.Error(err))
		}
		writeJSON(w, http.StatusInternalServerError, Result{
			Message: "Internal server error during payment processing",
			Error:   err.Error(),
		})
	default:
		writeJSON(w, http.StatusOK, res)
	}
}
