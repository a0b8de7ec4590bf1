package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/odontoplus/scheduling/internal/backend"
	"github.com/odontoplus/scheduling/internal/calendar"
	"github.com/odontoplus/scheduling/internal/events"
	"github.com/odontoplus/scheduling/internal/handlers"
	"github.com/odontoplus/scheduling/internal/orchestrator"
	"github.com/odontoplus/scheduling/libs/config"
	"github.com/odontoplus/scheduling/libs/httpx"
	"github.com/odontoplus/scheduling/libs/kafkax"
	otelx "github.com/odontoplus/scheduling/libs/otel"
	"github.com/odontoplus/scheduling/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	clinicAPIURL, err := config.RequiredString("CLINIC_API_URL")
	if err != nil {
		logger.Error("configuration error", "err", err)
		panic(err)
	}
	clinicAPI := backend.NewClient(clinicAPIURL, logger)

	loc := time.UTC
	if tz := strings.TrimSpace(config.String("CLINIC_TIMEZONE", "")); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			logger.Warn("invalid CLINIC_TIMEZONE, using UTC", "tz", tz, "err", err)
		} else {
			loc = parsed
		}
	}

	checks := []runtime.ReadyCheck{
		{Name: "clinic-api", Check: clinicAPI.ReadyCheck()},
	}

	var rdb *redis.Client
	var viewCache *calendar.ViewCache
	var rateLimitMW httpx.Middleware
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		viewCache = calendar.NewViewCache(rdb, config.Seconds("CALENDAR_CACHE_TTL_SECONDS", 30*time.Second), logger)
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info("redis enabled", "addr", addr, "rate_limit_per_minute", limitPerMinute)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("redis not configured; in-memory rate limiting, no view cache")
	}

	var announcer *events.Announcer
	if brokers := strings.TrimSpace(config.String("KAFKA_BROKERS", "")); brokers != "" {
		announcer = events.NewAnnouncer(brokers, logger)
		defer announcer.Close()
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		logger.Info("appointment event publishing enabled", "brokers", brokers)
	}

	var views orchestrator.ViewInvalidator
	if viewCache != nil {
		views = viewCache
	}
	var announce orchestrator.Announcer
	if announcer != nil {
		announce = announcer
	}
	orch := orchestrator.New(clinicAPI, announce, views, logger)
	aggregator := calendar.NewAggregator(clinicAPI, viewCache, logger, loc)

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewSchedulingHandler(orch, aggregator, logger).Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id,X-Acting-User"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           config.Seconds("CORS_MAX_AGE_SECONDS", 10*time.Minute),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 15*time.Second)),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "scheduling")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
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
