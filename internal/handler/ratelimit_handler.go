package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shivbardolabs/ShipOS-sub002/internal/ratelimit"
)

// RateLimitHandler exposes limiter introspection and the
// administrative reset.
type RateLimitHandler struct {
	limiter ratelimit.Limiter
	logger  *slog.Logger
}

func NewRateLimitHandler(limiter ratelimit.Limiter, logger *slog.Logger) *RateLimitHandler {
	return &RateLimitHandler{limiter: limiter, logger: logger}
}

// Status returns current hour/day counts and caps for one customer.
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	status, err := h.limiter.Status(r.Context(), customerID)
	if err != nil {
		h.logger.Error("Rate limit status failed", "customer_id", customerID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// Reset clears a customer's send history (support tooling override).
func (h *RateLimitHandler) Reset(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	if err := h.limiter.Reset(r.Context(), customerID); err != nil {
		h.logger.Error("Rate limit reset failed", "customer_id", customerID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.logger.Info("Rate limit reset", "customer_id", customerID)
	w.WriteHeader(http.StatusNoContent)
}
