// cmd/server/server.go
package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtside/internal/api"
	"github.com/codr1/courtside/internal/api/courts"
	"github.com/codr1/courtside/internal/api/payments"
	"github.com/codr1/courtside/internal/api/promocodes"
	"github.com/codr1/courtside/internal/api/reservations"
	"github.com/codr1/courtside/internal/config"
)

func newServer(cfg *config.Config, svc *services) *http.Server {
	router := http.NewServeMux()

	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithContentType,
	)

	courts.InitHandlers(svc.booking)
	reservations.InitHandlers(svc.booking)
	promocodes.InitHandlers(svc.booking)
	payments.InitHandlers(svc.booking, svc.reconciler)

	registerRoutes(router, cfg, svc)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, cfg *config.Config, svc *services) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := svc.db.PingContext(ctx); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("Health check failed")
			http.Error(w, "Database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Court routes
	mux.HandleFunc("GET /api/v1/courts", courts.HandleListCourts)
	mux.HandleFunc("GET /api/v1/courts/{id}/availability", courts.HandleAvailability)

	// Reservation routes
	mux.Handle("POST /api/v1/reservations", svc.limiter.Middleware(http.HandlerFunc(reservations.HandleCreate)))
	mux.HandleFunc("GET /api/v1/reservations", reservations.HandleList)
	mux.HandleFunc("GET /api/v1/reservations/{id}", reservations.HandleGet)
	mux.Handle("PUT /api/v1/reservations/{id}", svc.limiter.Middleware(http.HandlerFunc(reservations.HandleUpdate)))

	mux.Handle("POST /api/v1/promo-codes/validate", svc.limiter.Middleware(http.HandlerFunc(promocodes.HandleValidate)))

	// Payment routes. The gateway posts to /payment/*, outside the API prefix.
	mux.HandleFunc("GET /api/v1/payments/initiate/{sale_id}", payments.HandleInitiate)
	mux.HandleFunc("POST /api/v1/payments/status", payments.HandleStatus)
	mux.HandleFunc("GET /payment/return", payments.HandleReturn)
	mux.HandleFunc("POST /payment/return", payments.HandleReturn)
	mux.HandleFunc("POST /payment/callback", payments.HandleCallback)

	if cfg.Features.EnableMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
}
