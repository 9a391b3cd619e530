package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gotomicro/ego/core/elog"

	"market-finder/internal/cache"
	"market-finder/internal/config"
	"market-finder/internal/events"
	"market-finder/internal/features"
	"market-finder/internal/handler"
	"market-finder/internal/marketapi"
	"market-finder/internal/middleware"
	"market-finder/internal/service"
	"market-finder/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Path to a JSON config file")
	flag.Parse()

	logger := elog.DefaultLogger.With(elog.FieldComponent("market-finder"))

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Error("load config failed", elog.FieldErr(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", elog.FieldErr(err))
		os.Exit(1)
	}

	if err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		logger.Error("init tracing failed", elog.FieldErr(err))
		os.Exit(1)
	}

	flags := features.NewManager()
	flags.Apply(cfg.Features)
	if !cfg.Cache.Enabled {
		flags.Set(features.FeatureCacheEnabled, false)
	}

	eventLogger := elog.DefaultLogger.With(elog.FieldComponent("events"))
	eventManager := events.NewManager(flags, eventLogger)
	for _, t := range []events.EventType{
		events.EventCategoriesLoaded,
		events.EventMarketsLoaded,
		events.EventCouponRedeemed,
		events.EventRedemptionFailed,
	} {
		eventManager.Subscribe(t, events.LogSubscriber(eventLogger))
	}
	defer eventManager.Shutdown()

	store, closeStore := newCache(cfg, logger)
	defer closeStore()

	apiLogger := elog.DefaultLogger.With(elog.FieldComponent("marketapi"))
	client := marketapi.NewClient(cfg.Upstream.BaseURL, config.Seconds(cfg.Upstream.Timeout))
	api := marketapi.NewCachedAPI(client, store, config.Seconds(cfg.Cache.TTL), flags, apiLogger)

	defaultRegion := cfg.DefaultRegion()
	svc := service.NewService(api, service.Options{
		Invalidator:   api,
		Events:        eventManager,
		Logger:        elog.DefaultLogger.With(elog.FieldComponent("views")),
		DefaultRegion: &defaultRegion,
		IdleTimeout:   config.Seconds(cfg.Views.IdleTimeout),
	})
	defer svc.Stop()

	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
		Logger:      elog.DefaultLogger.With(elog.FieldComponent("handler")),
	})

	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AccessLog(elog.DefaultLogger.With(elog.FieldComponent("access"))))
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware(cfg.Tracing.ServiceName))

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, config.Seconds(cfg.RateLimit.Window))
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "traceparent", "tracestate"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h.Routes(r)

	server := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: r,
	}

	// Graceful shutdown
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.Server.ShutdownTimeout))
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown failed", elog.FieldErr(err))
		}
		if err := tracing.Shutdown(ctx); err != nil {
			logger.Error("tracing shutdown failed", elog.FieldErr(err))
		}
	}()

	logger.Info("starting server",
		elog.String("addr", server.Addr),
		elog.Any("tls", cfg.Server.EnableTLS),
		elog.String("upstream", cfg.Upstream.BaseURL),
		elog.Any("rate_limit", cfg.RateLimit.Enabled))

	if cfg.Server.EnableTLS {
		err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", elog.FieldErr(err))
		return
	}

	<-idle
}

// newCache returns the shared Redis cache when one is configured and reachable,
// the in-process cache otherwise.
func newCache(cfg *config.Config, logger *elog.Component) (cache.Cache, func()) {
	if cfg.Cache.RedisAddr == "" {
		return cache.NewInMemoryCache(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.Upstream.Timeout))
	defer cancel()

	rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	if err != nil {
		logger.Warn("redis unavailable, using in-process cache",
			elog.String("addr", cfg.Cache.RedisAddr),
			elog.FieldErr(err))
		return cache.NewInMemoryCache(), func() {}
	}
	return rc, func() {
		if err := rc.Close(); err != nil {
			logger.Warn("close redis failed", elog.FieldErr(err))
		}
	}
}
