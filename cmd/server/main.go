package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"linktrack/internal/delivery"
	"linktrack/internal/infrastructure"
	"linktrack/internal/scheduler"
	"linktrack/internal/usecase"
	"linktrack/pkg/config"
	"linktrack/pkg/logger"
	"linktrack/pkg/metrics"
	"linktrack/pkg/token"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info("Starting tracking link server")

	m := metrics.New()
	tokens := token.New()

	repo := infrastructure.NewLinkRepository(log)
	auth := infrastructure.NewAPIKeyAuthorizer(cfg.Auth.APIKey)

	var resolver *usecase.GeoDeviceResolver
	geo, err := infrastructure.NewGeoIPLocator(cfg.Geo.DatabasePath, log, m)
	if err != nil {
		// Geolocation is best-effort; run without it rather than refuse to start
		log.WithError(err).Warn("GeoIP initialization failed, continuing without geolocation")
		resolver = usecase.NewGeoDeviceResolver(nil, cfg.Geo.LookupTimeout, log)
		geo = nil
	} else {
		resolver = usecase.NewGeoDeviceResolver(geo, cfg.Geo.LookupTimeout, log)
	}

	ledger := infrastructure.NewLedgerClient(
		cfg.Ledger.URL,
		cfg.Ledger.Secret,
		cfg.Ledger.RequestTimeout,
		cfg.Ledger.RateLimitPerSecond,
		log,
		m,
	)

	sessions := usecase.NewSessionCorrelator()

	linkService := usecase.NewLinkService(repo, tokens, auth, cfg.Links.DefaultTTLHours, log, m)
	clickService := usecase.NewClickService(repo, tokens, resolver, sessions, log, m)
	conversionService := usecase.NewConversionService(repo, tokens, ledger, log, m)
	analyticsService := usecase.NewAnalyticsService(repo, log)
	expirationService := usecase.NewExpirationService(repo, log, m)

	sched := scheduler.New(expirationService, log, cfg.Sweep.Timeout)
	if err := sched.Start(cfg.Sweep.Schedule); err != nil {
		log.WithError(err).Error("Failed to start expiration scheduler")
		os.Exit(1)
	}

	handlers := delivery.NewHTTPHandlers(
		linkService,
		clickService,
		conversionService,
		analyticsService,
		expirationService,
		auth,
		log,
		cfg.Links.PublicBaseURL,
	)
	router := delivery.NewHTTPRouter(handlers, log, m)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router.SetupRoutes(),
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Forced shutdown")
	}

	if geo != nil {
		_ = geo.Close()
	}

	log.Info("Server exited")
}
