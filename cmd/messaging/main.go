package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/result-messaging/internal/api"
	"github.com/LeventeLantos/result-messaging/internal/auth"
	"github.com/LeventeLantos/result-messaging/internal/cache"
	"github.com/LeventeLantos/result-messaging/internal/client"
	"github.com/LeventeLantos/result-messaging/internal/config"
	"github.com/LeventeLantos/result-messaging/internal/database"
	"github.com/LeventeLantos/result-messaging/internal/logging"
	"github.com/LeventeLantos/result-messaging/internal/metrics"
	"github.com/LeventeLantos/result-messaging/internal/model"
	"github.com/LeventeLantos/result-messaging/internal/repo"
	"github.com/LeventeLantos/result-messaging/internal/scheduler"
	"github.com/LeventeLantos/result-messaging/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database.PostgresURL)
	if err != nil {
		logger.Error("postgres unavailable", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	users := repo.NewPostgresUserRepo(pool)
	failures := repo.NewPostgresFailedSMSRepo(pool)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	receipts, balances := newCaches(ctx, cfg.Redis, logger)

	gateway := client.NewGatewayClient(client.GatewayConfig{
		URL:        cfg.Gateway.URL,
		BalanceURL: cfg.Gateway.BalanceURL,
		APIKey:     cfg.Gateway.APIKey,
		SenderID:   cfg.Gateway.SenderID,
		DryRun:     cfg.Gateway.DryRun,
		Timeout:    cfg.Gateway.Timeout,
	}, logger, m)
	if gateway.DryRun() {
		logger.Warn("sms gateway in dry-run mode, nothing will be sent")
	}

	dispatcher := service.NewDispatcher(gateway).WithHooks(
		func(ctx context.Context, r model.Recipient) {
			m.ObserveDispatch(true)
		},
		func(ctx context.Context, r model.Recipient) {
			m.ObserveDispatch(false)
			logger.Info("sms failed", "number", r.Number, "normalized", r.Normalized, "detail", r.Detail())
		},
	)
	messaging := service.NewMessaging(dispatcher, failures, receipts, logger).
		WithBalance(gateway, balances).
		WithResendHook(m.ObserveResend)

	accounts := auth.NewService(users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)
	if cfg.Auth.AdminEmail != "" {
		if err := accounts.SeedAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			logger.Error("seed admin failed", "err", err)
		}
	}

	batch := cfg.Resend.BatchSize
	sched, err := scheduler.New("resend-sweep", cfg.Resend.Interval, func(ctx context.Context) error {
		_, err := messaging.Sweep(ctx, batch)
		return err
	}, logger)
	if err != nil {
		logger.Error("scheduler setup failed", "err", err)
		os.Exit(1)
	}

	h := api.NewHandler(accounts, messaging, sched, logger, cfg.Server.UploadMaxBytes)
	router := api.Router(h, api.RouterConfig{
		CORSOrigins:    cfg.Server.CORSOrigins,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server starting",
			"addr", cfg.Server.Address,
			"redis", cfg.Redis.Enabled,
			"dry_run", gateway.DryRun(),
			"resend_interval", cfg.Resend.Interval.String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "err", err)
	}
}

// newCaches connects to Redis when configured. The cache is optional: an
// unreachable Redis falls back to no caching.
func newCaches(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (cache.ReceiptCache, cache.BalanceCache) {
	if !cfg.Enabled {
		return cache.Noop{}, cache.Noop{}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Error("redis unavailable, caching disabled", "addr", cfg.Address, "err", err)
		_ = rdb.Close()
		return cache.Noop{}, cache.Noop{}
	}

	c := cache.NewRedisCache(rdb, cfg.TTL)
	return c, c
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
