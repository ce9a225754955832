// Package api provides the producer-facing HTTP surface: alert publishing,
// health, and a metrics snapshot.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"creditwatch/internal/alerts"
	"creditwatch/internal/metrics"
)

// AlertPublisher enqueues validated alerts onto the durable queue.
type AlertPublisher interface {
	Send(ctx context.Context, alert *alerts.Alert) error
}

// MetricsSource serves the current metrics snapshot.
type MetricsSource interface {
	GetSnapshot() *metrics.PipelineMetrics
}

// ErrorResponse is the JSON body for error replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PublishResponse acknowledges an accepted alert.
type PublishResponse struct {
	AlertID string `json:"alert_id"`
	Status  string `json:"status"`
}

// Handler serves the producer-facing endpoints.
type Handler struct {
	publisher AlertPublisher
	metrics   MetricsSource
}

// NewHandler creates the API handler.
func NewHandler(publisher AlertPublisher, m MetricsSource) *Handler {
	return &Handler{publisher: publisher, metrics: m}
}

// Register attaches the API routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/alerts", h.HandlePublishAlert)
	mux.HandleFunc("/api/metrics", h.HandleMetrics)
	mux.HandleFunc("/healthz", HandleHealth)
}

// HandlePublishAlert handles POST /api/alerts: the PublishAlert entry point
// used by the risk-evaluation producer. The alert is validated, given an id
// and timestamp when absent, and enqueued exactly once.
func (h *Handler) HandlePublishAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var alert alerts.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid alert payload: "+err.Error())
		return
	}

	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if err := alert.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.publisher.Send(r.Context(), &alert); err != nil {
		slog.Error("Failed to enqueue alert", "alert_id", alert.ID, "error", err)
		respondError(w, http.StatusServiceUnavailable, "Failed to enqueue alert")
		return
	}

	respondJSON(w, http.StatusAccepted, PublishResponse{AlertID: alert.ID, Status: "accepted"})
}

// HandleMetrics handles GET /api/metrics with the current pipeline snapshot.
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, h.metrics.GetSnapshot())
}

// HandleHealth handles GET /healthz.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
