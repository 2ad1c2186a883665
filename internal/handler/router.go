package handler

import (
	"net/http"
	"time"

	"github.com/DianaPortal/NTT-AccountService/internal/infra/observability"
	"github.com/DianaPortal/NTT-AccountService/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

var startTime = time.Now()

// NewRouter creates the HTTP router with all routes and middleware.
// When authSvc is nil the /v1 routes are served without authentication.
func NewRouter(accountSvc *service.AccountService, balanceSvc *service.BalanceService, authSvc *service.AuthService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(requestCounterMiddleware(metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- Authentication ---
	if authSvc != nil {
		r.Post("/auth/login", authLoginHandler(authSvc, logger))
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if authSvc != nil {
			r.Use(JWTAuthMiddleware(authSvc, logger))
		}

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", listAccountsHandler(accountSvc, logger))
			r.Post("/", createAccountHandler(accountSvc, logger))
			r.Get("/by-document/{document}", getAccountsByDocumentHandler(accountSvc, logger))
			r.Get("/{id}", getAccountHandler(accountSvc, logger))
			r.Put("/{id}", updateAccountHandler(accountSvc, logger))
			r.Delete("/{id}", deleteAccountHandler(accountSvc, logger))
			r.Get("/{id}/limits", getAccountLimitsHandler(accountSvc, logger))
			r.Post("/{id}/balance-operations", applyBalanceOperationHandler(balanceSvc, logger))
		})

		r.Get("/metrics/service", serviceMetricsHandler(metrics, logger))
	})

	return r
}

// requestCounterMiddleware feeds the requests_total counter behind the
// service metrics snapshot. 5xx responses count as errors.
func requestCounterMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if ww.Status() >= 500 {
				metrics.IncrRequest("error")
			} else {
				metrics.IncrRequest("success")
			}
		})
	}
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"service":        "account-service",
			"uptime_seconds": int(time.Since(startTime).Seconds()),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func serviceMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/metrics/service")
		defer span.End()

		writeJSON(w, http.StatusOK, metrics.GetServiceSnapshot())
	}
}
