package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/txnrelay/internal/metrics"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         *zap.SugaredLogger
	// WebhookLimiter is optional; nil disables rate limiting.
	WebhookLimiter *RateLimiter
	AllowedOrigins []string
}

// NewRouter mounts every route both at the bare path and under /api, the
// latter being what the frontend proxies to.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(CORSMiddleware(cfg.AllowedOrigins))
	r.Use(mux.CORSMethodMiddleware(r))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", h.LivenessHandler).Methods(http.MethodGet)
	r.HandleFunc("/", h.RootHandler).Methods(http.MethodGet)
	r.HandleFunc("/api", h.HealthCheckHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/health", h.HealthCheckHandler).Methods(http.MethodGet)

	var webhook http.Handler = http.HandlerFunc(h.ReceiveWebhookHandler)
	if cfg.WebhookLimiter != nil {
		webhook = cfg.WebhookLimiter.Middleware(webhook)
	}

	for _, prefix := range []string{"", "/api"} {
		r.Handle(prefix+"/v1/webhooks/transactions", webhook).Methods(http.MethodPost)
		r.HandleFunc(prefix+"/v1/webhooks/transactions", h.WebhookPreflightHandler).Methods(http.MethodOptions)
		r.HandleFunc(prefix+"/v1/transactions/{id}", h.GetTransactionHandler).Methods(http.MethodGet)
	}

	r.HandleFunc("/api/v1/user-charts", h.UserChartsHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/user-charts", h.UserChartsMethodNotAllowedHandler).Methods(http.MethodGet)

	return r
}
