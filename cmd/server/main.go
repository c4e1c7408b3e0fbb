package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gfd-sse/off2on-bridge-go/internal/config"
	"github.com/gfd-sse/off2on-bridge-go/internal/database"
	"github.com/gfd-sse/off2on-bridge-go/internal/handler"
	"github.com/gfd-sse/off2on-bridge-go/internal/jobs"
	"github.com/gfd-sse/off2on-bridge-go/internal/middleware"
	"github.com/gfd-sse/off2on-bridge-go/internal/redis"
	"github.com/gfd-sse/off2on-bridge-go/internal/repository"
	"github.com/gfd-sse/off2on-bridge-go/internal/service"
	"github.com/gfd-sse/off2on-bridge-go/internal/stream"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	mappingRepo := repository.NewMappingRepository(db.DB)

	registry := stream.NewRegistry(cfg.StreamTimeout())
	defer registry.CloseAll()

	publisher := service.NewEventPublisher(redisClient)
	catalogService := service.NewCatalogService(publisher)
	cartService := service.NewCartService(catalogService, publisher)
	otpService := service.NewOTPService(mappingRepo, cfg.OTPExpiry(), cfg.OTPLength)
	connectionService := service.NewConnectionService(mappingRepo, registry, cfg.OTPLength)
	router := service.NewEventRouter(registry, mappingRepo, redisClient, cfg.DisconnectGrace())

	routerCtx, routerCancel := context.WithCancel(context.Background())
	defer routerCancel()
	go router.Run(routerCtx)

	otpRateLimit := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.OTPRateLimitPerMin)

	sseHandler := handler.NewSSEHandler(connectionService, registry)
	otpHandler := handler.NewOTPHandler(otpService)
	productHandler := handler.NewProductHandler(catalogService)
	cartHandler := handler.NewCartHandler(cartService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/sse", func(r chi.Router) {
		r.Mount("/", sseHandler.Routes())
	})

	r.Route("/api/otp", func(r chi.Router) {
		r.Use(otpRateLimit.Handler)
		r.Mount("/", otpHandler.Routes())
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Mount("/", productHandler.Routes())
	})

	r.Route("/api/cart", func(r chi.Router) {
		r.Mount("/", cartHandler.Routes())
	})

	keepaliveJob := jobs.NewKeepaliveJob(registry, cfg.KeepaliveInterval())
	keepaliveJob.Start()
	defer keepaliveJob.Stop()

	cleanupJob := jobs.NewCleanupJob(mappingRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		// WriteTimeout must stay zero: SSE responses are long-lived.
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	routerCancel()
	registry.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
