package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jellydator/ttlcache/v3"
	"github.com/punchamoorthee/txnrelay/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// MetricsMiddleware labels requests by route template, not by raw path, to
// keep the label cardinality bounded.
func MetricsMiddleware(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			m.ObserveRequest(r.Method, routeTemplate(r), rec.status, time.Since(start).Seconds())
		})
	}
}

// LoggingMiddleware logs every request and propagates or assigns a request id.
func LoggingMiddleware(logger *zap.SugaredLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.Infow("Handled request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

// CORSMiddleware echoes the origin back when it is in the allowed list.
// Preflight responses for the webhook paths are handled separately.
func CORSMiddleware(allowedOrigins []string) mux.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if _, ok := allowed[origin]; ok && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiterConfig sets the per-client bucket and how clients are told apart.
type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
	// IdleTTL drops a client's bucket after it has been unused this long.
	IdleTTL time.Duration
	// TrustForwardedFor keys clients on the first X-Forwarded-For hop. Enable
	// only behind a proxy that overwrites the header.
	TrustForwardedFor bool
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	limiters *ttlcache.Cache[string, *rate.Limiter]
	mu       sync.Mutex
	cfg      RateLimiterConfig
	metrics  *metrics.Metrics
}

const defaultLimiterIdleTTL = 10 * time.Minute

func NewRateLimiter(cfg RateLimiterConfig, m *metrics.Metrics) *RateLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultLimiterIdleTTL
	}
	limiters := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](cfg.IdleTTL),
	)
	go limiters.Start()
	return &RateLimiter{
		limiters: limiters,
		cfg:      cfg,
		metrics:  m,
	}
}

func (rl *RateLimiter) getLimiter(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if item := rl.limiters.Get(client); item != nil {
		return item.Value()
	}
	limiter := rate.NewLimiter(rl.cfg.Rate, rl.cfg.Burst)
	rl.limiters.Set(client, limiter, ttlcache.DefaultTTL)
	return limiter
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	return rl.limiters.Len()
}

// Stop ends the expiry loop.
func (rl *RateLimiter) Stop() {
	rl.limiters.Stop()
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.getLimiter(rl.clientAddress(r)).Allow() {
			rl.metrics.IncRateLimitRejections()
			respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) clientAddress(r *http.Request) string {
	if rl.cfg.TrustForwardedFor {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
