package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/observability"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthCheck probes one backing dependency for /healthz and /readyz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies are the services mounted by NewRouter. Nil services leave
// their routes answering 503.
type Dependencies struct {
	Accounts  *service.AccountsService
	Details   *service.AccountDetailService
	Dashboard *service.DashboardService
	Identity  *service.IdentityService
	Metrics   *observability.Metrics
	Checks    []HealthCheck
	DevAuth   bool
	Logger    *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.Checks))
	r.Get("/readyz", readyzHandler(deps.Checks, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/pipeline", pipelineMetricsHandler(metrics))

		if deps.Identity == nil {
			r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "identity service unavailable")
			}))
			return
		}

		if deps.DevAuth {
			r.Post("/dev/token", devTokenHandler(deps.Identity, logger))
		}

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(deps.Identity, logger))

			r.Get("/me", meHandler(deps.Identity, logger))

			if deps.Accounts != nil {
				r.Get("/accounts", listAccountsHandler(deps.Accounts, logger))
			}
			if deps.Details != nil {
				r.Get("/accounts/{bankId}", getAccountDetailHandler(deps.Details, logger))
				r.Get("/accounts/{bankId}/transactions", listTransactionsHandler(deps.Details, logger))
			}
			if deps.Dashboard != nil {
				r.Get("/home", dashboardHandler(deps.Dashboard, logger))
			}
		})
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func runChecks(ctx context.Context, checks []HealthCheck) (string, []domain.ServiceHealth) {
	now := time.Now().Format(time.RFC3339)
	services := []domain.ServiceHealth{
		{Name: "bfa-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
	}

	overall := "healthy"
	for _, c := range checks {
		start := time.Now()
		err := c.Check(ctx)
		status := "healthy"
		if err != nil {
			status = "unhealthy"
			overall = "degraded"
		}
		services = append(services, domain.ServiceHealth{
			Name:        c.Name,
			Status:      status,
			LatencyMs:   time.Since(start).Milliseconds(),
			LastChecked: now,
		})
	}
	return overall, services
}

func healthzHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, services := runChecks(ctx, checks)
		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   status,
			Services: services,
		})
	}
}

// readyzHandler reports 503 until every dependency answers.
func readyzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.Warn("readiness check failed", zap.String("check", c.Name), zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "failing": c.Name})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func pipelineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
