package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/cache"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/config"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/handlers"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/query"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/workflow"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, cfg.Otel)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var readyChecks []runtime.ReadyCheck

	var store storage.SlotStore
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory slot store; data is lost on restart")
		store = storage.NewMemoryStore()
	default:
		pool, err := db.Open(ctx, cfg.Store.DatabaseURL, db.Options{MaxConns: cfg.Store.MaxConns})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := storage.NewPostgresStore(pool)
		if cfg.Store.AutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				logger.Error("schema migration failed", "err", err)
				os.Exit(1)
			}
		}
		store = pg
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	}

	var (
		rdb     *redis.Client
		backend cache.Backend
	)
	if cfg.Cache.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:         cfg.Cache.RedisAddr,
			Password:     cfg.Cache.RedisPassword,
			DB:           cfg.Cache.RedisDB,
			DialTimeout:  time.Second,
			ReadTimeout:  cfg.Cache.Timeout,
			WriteTimeout: cfg.Cache.Timeout,
		})
		defer func() { _ = rdb.Close() }()
		redisBackend := cache.NewRedisBackend(rdb)
		backend = redisBackend
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: redisBackend.Ping, Optional: true})
	} else {
		logger.Info("REDIS_ADDR not set; slot cache disabled")
	}
	layer := cache.New(backend, logger, cache.Config{TTL: cfg.Cache.TTL, Timeout: cfg.Cache.Timeout})

	var trigger workflow.Trigger = workflow.Disabled{Logger: logger}
	if w := kafkax.NewWriter(kafkax.WriterConfig{Brokers: cfg.Workflow.Brokers, Topic: cfg.Workflow.Topic, WriteTimeout: cfg.Workflow.Timeout}); w != nil {
		kt := workflow.NewKafkaTrigger(w, cfg.Workflow.Topic)
		defer func() { _ = kt.Close() }()
		trigger = kt
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.Workflow.Brokers), Optional: true})
	} else {
		logger.Info("KAFKA_BROKERS not set; workflow signals are dropped")
	}

	bookingSvc := booking.NewService(store, layer, trigger, logger, booking.Config{
		AvailableKey:    cfg.Cache.Key,
		StoreTimeout:    cfg.Store.Timeout,
		WorkflowTimeout: cfg.Workflow.Timeout,
	})
	querySvc := query.NewService(store, layer, logger, query.Config{
		AvailableKey: cfg.Cache.Key,
		StoreTimeout: cfg.Store.Timeout,
	})

	var keys auth.KeySource
	if cfg.Auth.JWKSURL != "" {
		keys = auth.NewJWKSClient(cfg.Auth.JWKSURL, cfg.Auth.JWKSTTL)
	}
	verifier := auth.NewVerifier(auth.VerifierConfig{
		Secret:   cfg.Auth.JWTSecret,
		Keys:     keys,
		Issuer:   cfg.Auth.JWTIssuer,
		Audience: cfg.Auth.JWTAudience,
	})

	var bookGuard httpx.Middleware
	if rdb != nil {
		bookGuard = httpx.NewRedisRateLimiter(rdb, cfg.HTTP.RateLimitPerMinute, time.Minute, cfg.HTTP.RateLimitPrefix).
			Middleware(logger, cfg.HTTP.RateLimitFailOpen)
	} else {
		limiter := httpx.NewRateLimiter(cfg.HTTP.RateLimitPerMinute, cfg.HTTP.RateLimitBurst)
		limiter.StartJanitor(ctx, time.Minute)
		bookGuard = limiter.Middleware()
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	handlers.NewSlotHandler(bookingSvc, querySvc, logger).Register(mux, bookGuard, auth.RequireRole(verifier, "admin"))

	var cors httpx.Middleware
	if origins := httpx.ParseList(cfg.HTTP.CORSAllowedOrigins); len(origins) > 0 {
		cors = httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Cache", "X-Request-Id"},
		})
	}
	httpHandler := httpx.Chain(mux,
		cors,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(cfg.HTTP.BodyLimitBytes),
		httpx.WithTimeout(cfg.HTTP.RequestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "slot-service")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "store", cfg.Store.Driver, "cache", layer.Enabled())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
