package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/punchamoorthee/txnrelay/internal/domain"
	"github.com/punchamoorthee/txnrelay/internal/service"
	"go.uber.org/zap"
)

const (
	ServiceName    = "Transaction Relay Service"
	ServiceVersion = "1.0.0"

	statusHealthy   = "HEALTHY"
	statusUnhealthy = "UNHEALTHY"

	msgMalformedJSON  = "Malformed JSON body"
	msgInternalError  = "Internal server error"
	msgChartsPostOnly = "Method not allowed. Use POST."
)

// Pinger is implemented by every store the health endpoint reports on.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	intake  *service.IntakeService
	query   *service.QueryService
	charts  *service.ChartService
	pingers []Pinger
	logger  *zap.SugaredLogger
	clock   func() time.Time
}

func NewHandler(
	intake *service.IntakeService,
	query *service.QueryService,
	charts *service.ChartService,
	pingers []Pinger,
	logger *zap.SugaredLogger,
) *Handler {
	return &Handler{
		intake:  intake,
		query:   query,
		charts:  charts,
		pingers: pingers,
		logger:  logger,
		clock:   time.Now,
	}
}

func (h *Handler) RootHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": ServiceName,
		"version": ServiceVersion,
	})
}

// HealthCheckHandler reports UNHEALTHY when any store fails to answer a ping.
// It always responds 200.
func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := statusHealthy
	for _, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warnw("Health check failed", "error", err)
			status = statusUnhealthy
			break
		}
	}

	respondWithJSON(w, http.StatusOK, domain.HealthResponse{
		Status:      status,
		CurrentTime: h.clock().UTC(),
		Service:     ServiceName,
		Version:     ServiceVersion,
	})
}

func (h *Handler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ReceiveWebhookHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, msgMalformedJSON)
		return
	}

	ack, err := h.intake.Receive(r.Context(), payload)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, ack)
}

// WebhookPreflightHandler answers CORS preflight requests for the webhook
// paths. Webhook senders are servers, so any origin is allowed here.
func (h *Handler) WebhookPreflightHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := h.query.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) UserChartsHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.UserChartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, msgMalformedJSON)
		return
	}

	resp, err := h.charts.Handle(r.Context(), req)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) UserChartsMethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, http.StatusMethodNotAllowed, msgChartsPostOnly)
}

func (h *Handler) respondWithServiceError(w http.ResponseWriter, err error) {
	var validationErr *service.ValidationError
	var notFoundErr *service.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		respondWithError(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &notFoundErr):
		respondWithError(w, http.StatusNotFound, notFoundErr.Message)
	default:
		h.logger.Errorw("Request failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, msgInternalError)
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
