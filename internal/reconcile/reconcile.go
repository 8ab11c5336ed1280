// Package reconcile applies payment notifications from the hosted gateway to
// transactions, sales and reservations.
//
// A notification is authenticated and resolved before anything is written.
// The transaction upsert, the sale status and the reservation cascade then
// commit together, so a failure leaves no partial state behind.
package reconcile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtside/internal/apperr"
	"github.com/codr1/courtside/internal/availability"
	"github.com/codr1/courtside/internal/booking"
	"github.com/codr1/courtside/internal/db"
	"github.com/codr1/courtside/internal/db/queries"
	"github.com/codr1/courtside/internal/email"
	"github.com/codr1/courtside/internal/gateway"
	"github.com/codr1/courtside/internal/models"
)

type Config struct {
	DB     *db.DB
	Secret string

	// Timeline reads reservation intervals when a released reservation has
	// to be re-checked before it holds its slot again.
	Timeline booking.Timeline

	// Notifier sends receipts for completed payments. Nil disables them.
	Notifier email.EmailSender

	// Location is the zone the gateway reports settlement dates in.
	Location *time.Location
}

type Reconciler struct {
	db       *db.DB
	signer   *gateway.Signer
	timeline booking.Timeline
	notifier email.EmailSender
	location *time.Location
}

func New(cfg Config) (*Reconciler, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("reconcile: database is required")
	}
	signer, err := gateway.NewSigner(cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Reconciler{
		db:       cfg.DB,
		signer:   signer,
		timeline: cfg.Timeline,
		notifier: cfg.Notifier,
		location: cfg.Location,
	}, nil
}

// BookingDetails summarises the reservation a payment was for.
type BookingDetails struct {
	CourtName   string `json:"court_name"`
	BookingDate string `json:"booking_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// TransactionEcho repeats the notification back to the payer.
type TransactionEcho struct {
	TranID         string          `json:"tranID"`
	Amount         string          `json:"amount"`
	Currency       string          `json:"currency"`
	Channel        string          `json:"channel"`
	PayDate        string          `json:"paydate"`
	AppCode        string          `json:"appcode"`
	Status         string          `json:"status"`
	BookingDetails *BookingDetails `json:"booking_details,omitempty"`
}

type Outcome struct {
	// Status is the mapped transaction status.
	Status        string
	SaleID        int64
	ReservationID int64
	Transaction   TransactionEcho

	// Previous is the transaction status before this notification, empty
	// the first time a transaction id is seen.
	Previous string
}

// Reconcile authenticates n and applies it. Errors carry an apperr kind:
// MalformedNotification, SignatureInvalid and UnknownOrder leave the
// database untouched; Processing means the write itself failed.
func (r *Reconciler) Reconcile(ctx context.Context, n gateway.Notification) (Outcome, error) {
	logger := log.Ctx(ctx).With().
		Str("tran_id", n.TranID).
		Str("order_id", n.OrderID).
		Str("status_code", n.Status).
		Logger()

	if err := n.Validate(); err != nil {
		var missing gateway.MissingFieldError
		if errors.As(err, &missing) {
			return Outcome{}, &apperr.Error{Kind: apperr.MalformedNotification, Field: missing.Field, Message: "missing required parameter"}
		}
		return Outcome{}, apperr.Wrap(apperr.MalformedNotification, "invalid notification", err)
	}

	if !r.signer.Verify(n) {
		logger.Warn().
			Str("payload", n.Values().Encode()).
			Msg("Rejected payment notification with invalid signature")
		return Outcome{}, &apperr.Error{Kind: apperr.SignatureInvalid, Message: "Invalid signature"}
	}

	saleID, ok := n.OrderNumber()
	if !ok {
		logger.Warn().Str("payload", n.Values().Encode()).Msg("Payment notification for malformed order id")
		return Outcome{}, &apperr.Error{Kind: apperr.UnknownOrder, Message: "Order not found"}
	}
	amountCents, err := gateway.ParseAmountCents(n.Amount)
	if err != nil {
		return Outcome{}, &apperr.Error{Kind: apperr.MalformedNotification, Field: "amount", Message: err.Error()}
	}

	status := gateway.MapStatus(n.Status)
	payload, err := json.Marshal(n.Values())
	if err != nil {
		return Outcome{}, apperr.Wrap(apperr.Processing, "failed to encode payload", err)
	}

	var (
		outcome  Outcome
		customer queries.Customer
	)
	err = r.db.RunInTx(ctx, func(tx *db.DB) error {
		sale, err := tx.Queries.GetSale(ctx, saleID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &apperr.Error{Kind: apperr.UnknownOrder, Message: "Order not found"}
			}
			return apperr.Wrap(apperr.Processing, "failed to load sale", err)
		}

		previous, err := tx.Queries.GetTransaction(ctx, n.TranID)
		switch {
		case err == nil:
			outcome.Previous = previous.Status
		case !errors.Is(err, sql.ErrNoRows):
			return apperr.Wrap(apperr.Processing, "failed to load transaction", err)
		}

		settled, ok := n.SettledAt(r.location)
		if _, err := tx.Queries.UpsertTransaction(ctx, queries.UpsertTransactionParams{
			TransactionID:  n.TranID,
			SaleID:         sale.ID,
			Amount:         n.Amount,
			AmountCents:    amountCents,
			Currency:       n.Currency,
			Status:         status,
			PaymentChannel: nullString(n.Channel),
			PaymentDate:    sql.NullTime{Time: settled, Valid: ok},
			PayDateRaw:     n.PayDate,
			AppCode:        nullString(n.AppCode),
			Domain:         nullString(n.Domain),
			ResponseData:   string(payload),
		}); err != nil {
			return apperr.Wrap(apperr.Processing, "failed to save transaction", err)
		}

		if err := tx.Queries.UpdateSaleStatus(ctx, sale.ID, status); err != nil {
			return apperr.Wrap(apperr.Processing, "failed to update sale", err)
		}

		reservation, details, err := r.cascade(ctx, tx.Queries, sale.ID, status, &logger)
		if err != nil {
			return err
		}

		customer, err = tx.Queries.GetCustomer(ctx, sale.CustomerID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return apperr.Wrap(apperr.Processing, "failed to load customer", err)
		}

		outcome.Status = status
		outcome.SaleID = sale.ID
		outcome.ReservationID = reservation
		outcome.Transaction = TransactionEcho{
			TranID:         n.TranID,
			Amount:         n.Amount,
			Currency:       n.Currency,
			Channel:        n.Channel,
			PayDate:        n.PayDate,
			AppCode:        n.AppCode,
			Status:         status,
			BookingDetails: details,
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.Processing {
			logger.Error().Err(err).Msg("Failed to apply payment notification")
			return Outcome{}, err
		}
		logger.Warn().Err(err).Str("payload", n.Values().Encode()).Msg("Rejected payment notification")
		return Outcome{}, err
	}

	logger.Info().
		Int64("sale_id", outcome.SaleID).
		Str("status", outcome.Status).
		Str("previous_status", outcome.Previous).
		Msg("Payment notification applied")

	if outcome.Status == models.TransactionCompleted && outcome.Previous != models.TransactionCompleted {
		r.sendReceipt(ctx, customer, outcome, &logger)
	}
	return outcome, nil
}

// cascade moves the sale's reservations to the state implied by the
// transaction status and returns the first reservation with its summary.
//
// A released reservation is only put back on hold when its interval is
// still free. Otherwise it is marked failed: the payment is recorded but
// the slot now belongs to someone else.
func (r *Reconciler) cascade(ctx context.Context, q *queries.Queries, saleID int64, status string, logger *zerolog.Logger) (int64, *BookingDetails, error) {
	reservations, err := q.ListReservationsBySale(ctx, saleID)
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.Processing, "failed to load reservations", err)
	}
	target := models.ReservationStatusFor(status)

	for _, res := range reservations {
		next := target
		if !models.HoldsSlot(res.Status) && models.HoldsSlot(next) {
			free, err := r.stillFree(ctx, q, res)
			if err != nil {
				return 0, nil, err
			}
			if !free {
				logger.Error().
					Int64("reservation_id", res.ID).
					Int64("court_id", res.CourtID).
					Str("date", res.BookingDate).
					Str("start_time", res.StartTime).
					Str("end_time", res.EndTime).
					Str("transaction_status", status).
					Msg("Released slot was rebooked before payment settled")
				next = models.ReservationFailed
			}
		}
		if next == res.Status {
			continue
		}
		if err := q.UpdateReservationStatus(ctx, res.ID, next); err != nil {
			return 0, nil, apperr.Wrap(apperr.Processing, "failed to update reservation", err)
		}
	}

	if len(reservations) == 0 {
		return 0, nil, nil
	}
	first := reservations[0]
	details := &BookingDetails{
		BookingDate: first.BookingDate,
		StartTime:   first.StartTime,
		EndTime:     first.EndTime,
	}
	court, err := q.GetCourt(ctx, first.CourtID)
	switch {
	case err == nil:
		details.CourtName = court.Name
	case !errors.Is(err, sql.ErrNoRows):
		return 0, nil, apperr.Wrap(apperr.Processing, "failed to load court", err)
	}
	return first.ID, details, nil
}

func (r *Reconciler) stillFree(ctx context.Context, q *queries.Queries, res queries.Reservation) (bool, error) {
	interval, err := r.timeline.Interval(res.BookingDate, res.StartTime, res.EndTime)
	if err != nil {
		return false, apperr.Wrap(apperr.Processing, "failed to read reservation interval", err)
	}
	day := availability.Midnight(interval.Start)
	booked, err := r.timeline.Booked(ctx, q, res.CourtID, day, day)
	if err != nil {
		return false, apperr.Wrap(apperr.Processing, "failed to load reservations", err)
	}
	for _, other := range availability.Conflicts(interval, booked) {
		if other.ID != res.ID {
			return false, nil
		}
	}
	return true, nil
}

func (r *Reconciler) sendReceipt(ctx context.Context, customer queries.Customer, outcome Outcome, logger *zerolog.Logger) {
	if r.notifier == nil || !customer.Email.Valid {
		return
	}
	receipt := email.Receipt{
		CustomerName:  customer.Name,
		Amount:        outcome.Transaction.Amount,
		Currency:      outcome.Transaction.Currency,
		TransactionID: outcome.Transaction.TranID,
		SaleID:        outcome.SaleID,
	}
	if d := outcome.Transaction.BookingDetails; d != nil {
		receipt.CourtName = d.CourtName
		receipt.Date = d.BookingDate
		receipt.StartTime = d.StartTime
		receipt.EndTime = d.EndTime
	}
	_ = email.SendPaymentReceipt(ctx, r.notifier, customer.Email.String, email.BuildPaymentReceipt(receipt), logger)
}

// Lookup returns a stored transaction by its gateway id.
func (r *Reconciler) Lookup(ctx context.Context, transactionID string) (queries.Transaction, error) {
	if transactionID == "" {
		return queries.Transaction{}, apperr.Invalid("transaction_id", "is required")
	}
	txn, err := r.db.Queries.GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return queries.Transaction{}, apperr.Missing("Transaction not found")
		}
		return queries.Transaction{}, apperr.Wrap(apperr.Processing, "failed to load transaction", err)
	}
	return txn, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
