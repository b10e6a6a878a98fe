package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/config"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/gateway"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/handler"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/cache"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/observability"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/plaid"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/postgres"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/port"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/service"

	"go.uber.org/zap"
)

// store is what either backend provides.
type store interface {
	port.ConnectionStore
	port.TransferStore
	port.UserStore
	Ping(ctx context.Context) error
}

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, "banking-aggregator-bfa")
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("plaid_env", cfg.PlaidEnv),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("fetch_timeout", cfg.FetchTimeout),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Int("max_sync_pages", cfg.MaxSyncPages),
		zap.Duration("institution_cache_ttl", cfg.InstitutionCacheTTL),
		zap.Bool("dev_auth", cfg.DevAuth),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "banking-aggregator-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Store ---
	ctx := context.Background()
	var st store
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		st = postgres.NewStore(pool)
		logger.Info("using postgres as data backend")
	default:
		st = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
	}

	// --- Account-data provider ---
	plaidClient, err := plaid.NewClient(
		plaid.Config{ClientID: cfg.PlaidClientID, Secret: cfg.PlaidSecret, Env: cfg.PlaidEnv},
		httpClient,
		resilience.NewCircuitBreaker("plaid"),
		resilienceCfg,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to create plaid client", zap.Error(err))
	}
	gw := gateway.New(plaidClient, cfg.MaxSyncPages, metrics, logger)

	// --- Services ---
	institutions := service.NewInstitutionResolver(
		gw,
		cache.New[*domain.Institution](cfg.InstitutionCacheSize, cfg.InstitutionCacheTTL),
		metrics,
		logger,
	)
	accountsSvc := service.NewAccountsService(st, gw, institutions,
		service.AggregationConfig{MaxConcurrency: cfg.MaxConcurrency, FetchTimeout: cfg.FetchTimeout},
		metrics, logger)
	detailSvc := service.NewAccountDetailService(st, st, gw, institutions, cfg.TransactionsPageSize, metrics, logger)
	identitySvc := service.NewIdentityService(st, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
	dashboardSvc := service.NewDashboardService(identitySvc, accountsSvc, detailSvc, logger)

	if cfg.DevAuth {
		logger.Warn("DEV_AUTH enabled: POST /v1/dev/token issues tokens without credentials")
	}

	// --- Router ---
	router := handler.NewRouter(handler.Dependencies{
		Accounts:  accountsSvc,
		Details:   detailSvc,
		Dashboard: dashboardSvc,
		Identity:  identitySvc,
		Metrics:   metrics,
		Checks:    []handler.HealthCheck{{Name: cfg.StoreBackend, Check: st.Ping}},
		DevAuth:   cfg.DevAuth,
		Logger:    logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
