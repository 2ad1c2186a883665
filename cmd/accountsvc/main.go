package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DianaPortal/NTT-AccountService/internal/config"
	"github.com/DianaPortal/NTT-AccountService/internal/domain"
	"github.com/DianaPortal/NTT-AccountService/internal/handler"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/cache"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/client"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/memstore"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/observability"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/postgrest"
	"github.com/DianaPortal/NTT-AccountService/internal/infra/resilience"
	"github.com/DianaPortal/NTT-AccountService/internal/port"
	"github.com/DianaPortal/NTT-AccountService/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_postgrest", cfg.UsePostgrest),
		zap.Bool("auth_enabled", cfg.AuthEnabled),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("eligibility_cache_ttl", cfg.EligibilityCacheTTL),
		zap.Duration("credit_card_cache_ttl", cfg.CreditCardCacheTTL),
		zap.Int("number_retry_budget", cfg.NumberRetryBudget),
	)

	// --- Tracing ---
	shutdown := observability.NoopShutdown
	if cfg.TracingEnabled {
		var err error
		shutdown, err = observability.InitTracer(cfg.OTLPEndpoint, "account-service")
		if err != nil {
			logger.Fatal("failed to init tracer", zap.Error(err))
		}
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Caches ---
	eligCache := cache.New[domain.Eligibility](time.Minute)
	defer eligCache.Close()
	cardCache := cache.New[bool](time.Minute)
	defer cardCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	customersCB := resilience.NewCircuitBreaker("customers")
	creditsCB := resilience.NewCircuitBreaker("credits")

	// --- External gateways ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	customersClient := client.NewCustomersClient(httpClient, cfg.CustomersAPIURL, customersCB, resilienceCfg, metrics)
	creditsClient := client.NewCreditsClient(httpClient, cfg.CreditsAPIURL, creditsCB, resilienceCfg, metrics)

	// --- Store ---
	var store port.AccountStore
	if cfg.UsePostgrest && cfg.PostgrestURL != "" {
		logger.Info("using PostgREST as account store",
			zap.String("postgrest_url", cfg.PostgrestURL),
		)
		store = postgrest.NewAccountStore(httpClient, cfg.PostgrestURL, cfg.PostgrestAnonKey, cfg.PostgrestServiceKey, logger)
	} else {
		logger.Warn("PostgREST not configured, using in-memory account store")
		store = memstore.NewAccountStore()
	}

	// --- Services ---
	accountSvc := service.NewAccountService(store, customersClient, creditsClient, eligCache, cardCache, cfg, metrics, logger)
	balanceSvc := service.NewBalanceService(store, cfg.OpIDsCap, metrics, logger)

	var authSvc *service.AuthService
	if cfg.AuthEnabled {
		if cfg.AuthPasswordBcrypt == "" {
			logger.Fatal("auth enabled but AUTH_PASSWORD_BCRYPT is not set")
		}
		authSvc = service.NewAuthService(cfg.AuthUsername, cfg.AuthPasswordBcrypt, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
		logger.Info("auth service enabled", zap.String("username", cfg.AuthUsername))
	}

	// --- Router ---
	router := handler.NewRouter(accountSvc, balanceSvc, authSvc, metrics, logger)

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
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
