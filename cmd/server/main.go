// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/courtside/internal/booking"
	"github.com/codr1/courtside/internal/config"
	"github.com/codr1/courtside/internal/db"
	"github.com/codr1/courtside/internal/email"
	"github.com/codr1/courtside/internal/gateway"
	"github.com/codr1/courtside/internal/ratelimit"
	"github.com/codr1/courtside/internal/reconcile"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func setupLogger(environment string, debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// services holds everything the handlers are initialized with.
type services struct {
	db         *db.DB
	booking    *booking.Service
	reconciler *reconcile.Reconciler
	limiter    *ratelimit.Limiter
}

func (s *services) Close() {
	s.limiter.Close()
	s.db.Close()
}

func buildServices(cfg *config.Config) (*services, error) {
	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		database.Close()
		return nil, err
	}

	bookingService, err := booking.New(booking.Config{
		DB:           database,
		Location:     loc,
		Defaults:     booking.Defaults{Open: cfg.Booking.DefaultOpen, Close: cfg.Booking.DefaultClose},
		SlotDuration: time.Duration(cfg.Booking.SlotMinutes) * time.Minute,
		PageSize:     cfg.Booking.PageSize,
		Checkout: gateway.CheckoutConfig{
			MerchantID:    cfg.Gateway.MerchantID,
			VerifyKey:     cfg.Gateway.VerifyKey,
			ActionURL:     cfg.Gateway.ActionURL,
			Currency:      cfg.Gateway.Currency,
			ReturnURL:     cfg.Gateway.ReturnURL,
			CallbackURL:   cfg.Gateway.CallbackURL,
			DefaultRegion: cfg.Gateway.DefaultRegion,
		},
	})
	if err != nil {
		database.Close()
		return nil, err
	}

	var notifier email.EmailSender
	sesClient, err := email.NewSESClientFromConfig(cfg.Email)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("init email: %w", err)
	}
	if sesClient != nil {
		notifier = sesClient
	} else {
		log.Warn().Msg("Email not configured; payment receipts are disabled")
	}

	reconciler, err := reconcile.New(reconcile.Config{
		DB:       database,
		Secret:   cfg.Gateway.SecretKey,
		Timeline: bookingService.Timeline(),
		Notifier: notifier,
		Location: loc,
	})
	if err != nil {
		database.Close()
		return nil, err
	}

	limiter := ratelimit.New(&ratelimit.Config{
		MaxRequests: cfg.RateLimit.RequestsPerMinute,
		Window:      time.Minute,
		TrustProxy:  cfg.RateLimit.TrustProxy,
	})

	return &services{
		db:         database,
		booking:    bookingService,
		reconciler: reconciler,
		limiter:    limiter,
	}, nil
}

func main() {
	configPath := flag.String("config", getEnv("CONFIG_PATH", "config/app.yaml"), "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment, cfg.Features.EnableDebug)

	svc, err := buildServices(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svc.Close()

	server := newServer(cfg, svc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Str("environment", cfg.App.Environment).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
