package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/eqtlab/ynab-syncer/pkg/up"
	"github.com/eqtlab/ynab-syncer/syncer"
)

type Handler struct {
	engine Engine
	logger *zap.Logger
}

func NewHandler(e Engine, l *zap.Logger) *Handler {
	return &Handler{engine: e, logger: l}
}

type WebhookResponse struct {
	Status string `json:"status"`
	Result string `json:"result"`
}

type RefreshResponse struct {
	Status  string               `json:"status"`
	Message string               `json:"message"`
	Report  *syncer.ResyncReport `json:"report,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Webhook accepts Up webhook deliveries. Anything other than a malformed delivery is acknowledged with 200 so Up
// does not redeliver it.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var event up.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, WebhookResponse{Status: "error", Result: "Invalid request body"})
		return
	}

	res, err := h.engine.HandleEvent(r.Context(), event.ToEvent())
	switch {
	case errors.Is(err, syncer.ErrUnsupportedEvent):
		writeJSON(w, http.StatusOK, WebhookResponse{Status: "skipped", Result: "Event ignored - not a transaction creation"})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, WebhookResponse{Status: "error", Result: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, WebhookResponse{Status: res.Status(), Result: res.Message})
}

// Refresh rebuilds payee mappings. With async=true the resync is queued instead of run in the request.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if err := h.engine.EnqueueResync(r.Context(), "refresh"); err != nil {
			h.logger.Error("enqueue resync", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, RefreshResponse{Status: "error", Message: err.Error()})
			return
		}

		writeJSON(w, http.StatusAccepted, RefreshResponse{Status: "queued", Message: "Payee mapping resync queued"})
		return
	}

	report, err := h.engine.Resync(r.Context())
	if err != nil {
		h.logger.Error("resync", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, RefreshResponse{Status: "error", Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, RefreshResponse{
		Status:  "success",
		Message: fmt.Sprintf("Payee mappings refreshed: %d mapped, %d ambiguous", report.Mapped, report.Ambiguous),
		Report:  &report,
	})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: serviceName})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
