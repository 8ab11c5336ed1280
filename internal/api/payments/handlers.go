// internal/api/payments/handlers.go
package payments

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtside/internal/api/apiutil"
	"github.com/codr1/courtside/internal/apperr"
	"github.com/codr1/courtside/internal/booking"
	"github.com/codr1/courtside/internal/gateway"
	"github.com/codr1/courtside/internal/metrics"
	"github.com/codr1/courtside/internal/models"
	"github.com/codr1/courtside/internal/reconcile"
)

const (
	paymentsQueryTimeout = 5 * time.Second

	channelReturn   = "return"
	channelCallback = "callback"
)

var (
	bookingService *booking.Service
	reconciler     *reconcile.Reconciler
	handlersOnce   sync.Once
)

type returnResponse struct {
	Success     bool                       `json:"success"`
	Status      string                     `json:"status"`
	Message     string                     `json:"message"`
	SaleID      int64                      `json:"sale_id"`
	BookingID   int64                      `json:"booking_id,omitempty"`
	Transaction *reconcile.TransactionEcho `json:"transaction"`
}

type statusRequest struct {
	TransactionID string `json:"transaction_id"`
}

type transactionResponse struct {
	TransactionID  string     `json:"transaction_id"`
	SaleID         int64      `json:"sale_id"`
	Amount         string     `json:"amount"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"`
	PaymentChannel string     `json:"payment_channel,omitempty"`
	PaymentDate    *time.Time `json:"payment_date,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(s *booking.Service, r *reconcile.Reconciler) {
	if s == nil || r == nil {
		return
	}
	handlersOnce.Do(func() {
		bookingService = s
		reconciler = r
	})
}

// GET /api/v1/payments/initiate/{sale_id}
func HandleInitiate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if bookingService == nil {
		logger.Error().Msg("Booking service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	saleID, err := apiutil.PathID(r, "sale_id")
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), paymentsQueryTimeout)
	defer cancel()

	checkout, err := bookingService.Checkout(ctx, saleID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	logger.Info().Int64("sale_id", saleID).Msg("Payment initiated")
	if err := apiutil.WriteJSON(w, http.StatusOK, checkout); err != nil {
		logger.Error().Err(err).Int64("sale_id", saleID).Msg("Failed to write checkout response")
	}
}

// GET|POST /payment/return
//
// The payer's browser lands here after checkout. The result is reported as
// JSON for the client to render.
func HandleReturn(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if reconciler == nil {
		logger.Error().Msg("Reconciler not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	outcome, err := process(r, channelReturn)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	echo := outcome.Transaction
	resp := returnResponse{
		Success:     outcome.Status == models.TransactionCompleted,
		Status:      outcome.Status,
		Message:     returnMessage(outcome.Status),
		SaleID:      outcome.SaleID,
		BookingID:   outcome.ReservationID,
		Transaction: &echo,
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write payment return response")
	}
}

// POST /payment/callback
//
// Server-to-server notification. The gateway keeps retrying until it reads
// the acknowledgement, so it is written for every notification that was
// handled, including rejected ones. Only processing failures return 500.
func HandleCallback(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if reconciler == nil {
		logger.Error().Msg("Reconciler not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if _, err := process(r, channelCallback); err != nil && apperr.KindOf(err) == apperr.Processing {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(gateway.CallbackAck)); err != nil {
		logger.Error().Err(err).Msg("Failed to write callback acknowledgement")
	}
}

// POST /api/v1/payments/status
func HandleStatus(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if reconciler == nil {
		logger.Error().Msg("Reconciler not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req statusRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), paymentsQueryTimeout)
	defer cancel()

	txn, err := reconciler.Lookup(ctx, strings.TrimSpace(req.TransactionID))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	resp := transactionResponse{
		TransactionID:  txn.TransactionID,
		SaleID:         txn.SaleID,
		Amount:         txn.Amount,
		Currency:       txn.Currency,
		Status:         txn.Status,
		PaymentChannel: txn.PaymentChannel.String,
		UpdatedAt:      txn.UpdatedAt,
	}
	if txn.PaymentDate.Valid {
		resp.PaymentDate = &txn.PaymentDate.Time
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write transaction status response")
	}
}

// process parses the posted notification and reconciles it, recording
// metrics for the channel it arrived on.
func process(r *http.Request, channel string) (reconcile.Outcome, error) {
	logger := log.Ctx(r.Context())
	start := time.Now()

	outcome, err := reconcileRequest(r)

	metrics.ReconcileDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
	result := outcome.Status
	if err != nil {
		result = string(apperr.KindOf(err))
	}
	metrics.NotificationsProcessed.WithLabelValues(channel, result).Inc()

	logger.Info().
		Str("channel", channel).
		Str("result", result).
		Int64("sale_id", outcome.SaleID).
		Msg("Payment notification handled")
	return outcome, err
}

func reconcileRequest(r *http.Request) (reconcile.Outcome, error) {
	if err := r.ParseForm(); err != nil {
		return reconcile.Outcome{}, apperr.Wrap(apperr.MalformedNotification, "invalid form body", err)
	}

	n, err := gateway.ParseNotification(r.Form)
	if err != nil {
		var missing gateway.MissingFieldError
		if errors.As(err, &missing) {
			return reconcile.Outcome{}, &apperr.Error{Kind: apperr.MalformedNotification, Field: missing.Field, Message: "missing required parameter"}
		}
		return reconcile.Outcome{}, apperr.Wrap(apperr.MalformedNotification, "invalid notification", err)
	}

	ctx, cancel := context.WithTimeout(r.Context(), paymentsQueryTimeout)
	defer cancel()

	return reconciler.Reconcile(ctx, n)
}

func returnMessage(status string) string {
	switch status {
	case models.TransactionCompleted:
		return "Payment successful"
	case models.TransactionFailed:
		return "Payment failed"
	case models.TransactionPending:
		return "Payment is pending"
	default:
		return "Payment status unknown"
	}
}
