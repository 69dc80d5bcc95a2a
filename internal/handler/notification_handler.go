package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	apperr "github.com/shivbardolabs/ShipOS-sub002/internal/errors"
	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
	"github.com/shivbardolabs/ShipOS-sub002/internal/service"
	"github.com/shivbardolabs/ShipOS-sub002/internal/store"
	"github.com/shivbardolabs/ShipOS-sub002/pkg/tracing"
)

// NotificationHandler exposes the dispatch, retry and receipt
// operations over HTTP.
type NotificationHandler struct {
	dispatcher service.DispatchService
	retrier    service.RetryService
	receipts   service.ReceiptService
	notifs     store.NotificationStorage
	logger     *slog.Logger
}

func NewNotificationHandler(
	dispatcher service.DispatchService,
	retrier service.RetryService,
	receipts service.ReceiptService,
	notifs store.NotificationStorage,
	logger *slog.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		dispatcher: dispatcher,
		retrier:    retrier,
		receipts:   receipts,
		notifs:     notifs,
		logger:     logger,
	}
}

func (h *NotificationHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	tracer := tracing.NewTracer(tracing.GetTracer("notification-handler"))
	ctx, span := tracer.StartServerSpan(r.Context(), "Dispatch")
	defer span.End()

	var payload model.DispatchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warn("Invalid request body for Dispatch")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.dispatcher.Dispatch(ctx, payload)
	if err != nil {
		h.writeDispatchError(w, tracer, span, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

func (h *NotificationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	tracer := tracing.NewTracer(tracing.GetTracer("notification-handler"))
	ctx, span := tracer.StartServerSpan(r.Context(), "GetByID")
	defer span.End()

	id := chi.URLParam(r, "id")
	n, err := h.notifs.GetByID(ctx, id)
	if err != nil {
		if apperr.IsNotFound(err) {
			h.logger.Warn("Notification not found", "id", id)
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			tracer.RecordError(span, err)
			h.logger.Error("GetByID failed", "id", id, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(n)
}

// RetryFailed re-submits a batch of failed/bounced records. The filter
// is optional; an empty body uses server defaults.
func (h *NotificationHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	tracer := tracing.NewTracer(tracing.GetTracer("notification-handler"))
	ctx, span := tracer.StartServerSpan(r.Context(), "RetryFailed")
	defer span.End()

	var body struct {
		CustomerID string `json:"customer_id"`
		MaxAgeSecs int    `json:"max_age_seconds"`
		Limit      int    `json:"limit"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	filter := store.RetryFilter{
		CustomerID: body.CustomerID,
		MaxAge:     time.Duration(body.MaxAgeSecs) * time.Second,
		Limit:      body.Limit,
	}
	results, err := h.retrier.RetryFailed(ctx, filter)
	if err != nil {
		tracer.RecordError(span, err)
		h.logger.Error("RetryFailed failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []model.RetryResult{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func (h *NotificationHandler) RetrySingle(w http.ResponseWriter, r *http.Request) {
	tracer := tracing.NewTracer(tracing.GetTracer("notification-handler"))
	ctx, span := tracer.StartServerSpan(r.Context(), "RetrySingle")
	defer span.End()

	id := chi.URLParam(r, "id")
	result, err := h.retrier.RetrySingle(ctx, id)
	if err != nil {
		if apperr.IsNotFound(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			tracer.RecordError(span, err)
			h.logger.Error("RetrySingle failed", "id", id, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Receipt applies a provider-agnostic delivery receipt.
func (h *NotificationHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	tracer := tracing.NewTracer(tracing.GetTracer("notification-handler"))
	ctx, span := tracer.StartServerSpan(r.Context(), "Receipt")
	defer span.End()

	id := chi.URLParam(r, "id")
	var body struct {
		Status model.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	n, err := h.receipts.ApplyReceipt(ctx, id, body.Status)
	if err != nil {
		switch {
		case apperr.IsNotFound(err):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, apperr.ErrInvalidTransition):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			tracer.RecordError(span, err)
			h.logger.Error("Receipt failed", "id", id, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(n)
}

func (h *NotificationHandler) writeDispatchError(w http.ResponseWriter, tracer *tracing.Tracer, span trace.Span, err error) {
	switch {
	case apperr.IsRateLimited(err):
		rl, _ := apperr.AsRateLimited(err)
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfterSeconds))
		http.Error(w, rl.Reason, http.StatusTooManyRequests)
	case apperr.IsNotFound(err):
		h.logger.Warn("Dispatch target not found", "error", err)
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperr.ErrInvalidPayload), errors.Is(err, apperr.ErrUnknownTemplate):
		h.logger.Warn("Dispatch rejected", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		tracer.RecordError(span, err)
		h.logger.Error("Dispatch failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
