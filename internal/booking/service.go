// Package booking is the reservation write path: it validates requests,
// prices them and guards the court timeline against overlapping holds.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/codr1/courtside/internal/apperr"
	"github.com/codr1/courtside/internal/availability"
	"github.com/codr1/courtside/internal/db"
	"github.com/codr1/courtside/internal/db/queries"
	"github.com/codr1/courtside/internal/gateway"
	"github.com/codr1/courtside/internal/metrics"
	"github.com/codr1/courtside/internal/models"
)

const (
	msgSlotTaken     = "This time slot is already booked"
	msgCourtInactive = "This court is not accepting bookings"
)

type Config struct {
	DB           *db.DB
	Location     *time.Location
	Defaults     Defaults
	SlotDuration time.Duration
	PageSize     int
	Checkout     gateway.CheckoutConfig
	Now          func() time.Time
}

type Service struct {
	db           *db.DB
	timeline     Timeline
	slotDuration time.Duration
	pageSize     int
	checkout     gateway.CheckoutConfig
	now          func() time.Time
}

func New(cfg Config) (*Service, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("booking: database is required")
	}
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = time.Hour
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		db:           cfg.DB,
		timeline:     Timeline{Location: cfg.Location, Defaults: cfg.Defaults},
		slotDuration: cfg.SlotDuration,
		pageSize:     cfg.PageSize,
		checkout:     cfg.Checkout,
		now:          cfg.Now,
	}, nil
}

// Timeline exposes the loader shared with payment reconciliation.
func (s *Service) Timeline() Timeline {
	return s.timeline
}

// Courts lists the courts open for booking.
func (s *Service) Courts(ctx context.Context) ([]queries.Court, error) {
	courts, err := s.db.Queries.ListActiveCourts(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Processing, "failed to list courts", err)
	}
	if courts == nil {
		courts = []queries.Court{}
	}
	return courts, nil
}

type DayAvailability struct {
	CourtID int64               `json:"court_id"`
	Date    string              `json:"date"`
	Slots   []availability.Slot `json:"slots"`
}

// Availability lists the day's slots for a court. Reservations dated the
// following day are loaded too so windows that run past midnight see them.
func (s *Service) Availability(ctx context.Context, courtID int64, date string) (DayAvailability, error) {
	logger := log.Ctx(ctx)

	day, err := s.timeline.Date(date)
	if err != nil {
		return DayAvailability{}, apperr.Invalid("date", "must be a date in YYYY-MM-DD format")
	}

	court, err := s.db.Queries.GetCourt(ctx, courtID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DayAvailability{}, apperr.Missing("Court not found")
		}
		return DayAvailability{}, apperr.Wrap(apperr.Processing, "failed to load court", err)
	}

	resource, err := s.timeline.Resource(ctx, s.db.Queries, court)
	if err != nil {
		return DayAvailability{}, apperr.Wrap(apperr.Processing, "failed to load operating hours", err)
	}
	booked, err := s.timeline.Booked(ctx, s.db.Queries, court.ID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return DayAvailability{}, apperr.Wrap(apperr.Processing, "failed to load reservations", err)
	}

	slots, diagnostics, err := availability.ComputeSlots(resource, day, booked, s.slotDuration)
	if err != nil {
		return DayAvailability{}, apperr.Wrap(apperr.Processing, "failed to compute slots", err)
	}
	for _, d := range diagnostics {
		logger.Warn().
			Int64("court_id", court.ID).
			Str("entry", d.Entry).
			Err(d.Err).
			Msg("Skipping unparseable operating hours")
	}
	if slots == nil {
		slots = []availability.Slot{}
	}

	return DayAvailability{CourtID: court.ID, Date: day.Format(dateLayout), Slots: slots}, nil
}

// Booking is a reservation together with the sale it is paid through.
type Booking struct {
	Reservation queries.Reservation `json:"reservation"`
	Sale        queries.Sale        `json:"sale"`
	CourtName   string              `json:"court_name"`
}

type CreateInput struct {
	CourtID    int64  `json:"court_id" validate:"required,gt=0"`
	CustomerID int64  `json:"customer_id" validate:"required,gt=0"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime  string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime    string `json:"end_time" validate:"required,datetime=15:04"`
	PromoCode  string `json:"promo_code" validate:"omitempty,max=64"`
}

// Create books a court interval for a customer. The timeline check and the
// insert run in one write transaction, so two overlapping requests cannot
// both succeed.
func (s *Service) Create(ctx context.Context, in CreateInput) (Booking, error) {
	booking, err := s.create(ctx, in)
	metrics.BookingAttempts.WithLabelValues("create", resultLabel(err)).Inc()
	return booking, err
}

func (s *Service) create(ctx context.Context, in CreateInput) (Booking, error) {
	logger := log.Ctx(ctx)

	if err := validateInput(in); err != nil {
		return Booking{}, err
	}
	candidate, err := s.requestedInterval(in.Date, in.StartTime, in.EndTime)
	if err != nil {
		return Booking{}, err
	}
	if _, err := s.db.Queries.GetCustomer(ctx, in.CustomerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Booking{}, apperr.Invalid("customer_id", "customer does not exist")
		}
		return Booking{}, apperr.Wrap(apperr.Processing, "failed to load customer", err)
	}
	promo, err := s.resolvePromo(ctx, in.PromoCode)
	if err != nil {
		return Booking{}, err
	}

	var result Booking
	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		court, err := s.guard(ctx, tx.Queries, in.CourtID, candidate, 0)
		if err != nil {
			return err
		}

		price := Price(court.PricePerHourCents, candidate.Duration())
		promoCode := sql.NullString{}
		if promo != nil {
			price = Discount(price, promo.DiscountPercentage)
			promoCode = sql.NullString{String: promo.Code, Valid: true}
		}

		sale, err := tx.Queries.CreateSale(ctx, queries.CreateSaleParams{
			CustomerID: in.CustomerID,
			TotalCents: price,
			Currency:   s.currency(),
			Status:     models.TransactionPending,
		})
		if err != nil {
			return apperr.Wrap(apperr.Processing, "failed to create sale", err)
		}

		reservation, err := tx.Queries.CreateReservation(ctx, queries.CreateReservationParams{
			CourtID:     court.ID,
			SaleID:      sale.ID,
			CustomerID:  in.CustomerID,
			BookingDate: candidate.Start.Format(dateLayout),
			StartTime:   candidate.Start.Format(clockLayout),
			EndTime:     candidate.End.Format(clockLayout),
			Status:      models.ReservationPending,
			PriceCents:  price,
			PromoCode:   promoCode,
		})
		if err != nil {
			return apperr.Wrap(apperr.Processing, "failed to create reservation", err)
		}

		result = Booking{Reservation: reservation, Sale: sale, CourtName: court.Name}
		return nil
	})
	if err != nil {
		return Booking{}, err
	}

	logger.Info().
		Int64("reservation_id", result.Reservation.ID).
		Int64("sale_id", result.Sale.ID).
		Int64("court_id", result.Reservation.CourtID).
		Str("date", result.Reservation.BookingDate).
		Str("start_time", result.Reservation.StartTime).
		Str("end_time", result.Reservation.EndTime).
		Msg("Reservation created")
	return result, nil
}

type UpdateInput struct {
	CustomerID int64  `json:"customer_id" validate:"required,gt=0"`
	CourtID    int64  `json:"court_id" validate:"omitempty,gt=0"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime  string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime    string `json:"end_time" validate:"required,datetime=15:04"`
}

// Update reschedules a pending reservation owned by the customer. The
// reservation's own interval does not count against the new one.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Booking, error) {
	booking, err := s.update(ctx, id, in)
	metrics.BookingAttempts.WithLabelValues("update", resultLabel(err)).Inc()
	return booking, err
}

func (s *Service) update(ctx context.Context, id int64, in UpdateInput) (Booking, error) {
	if err := validateInput(in); err != nil {
		return Booking{}, err
	}
	candidate, err := s.requestedInterval(in.Date, in.StartTime, in.EndTime)
	if err != nil {
		return Booking{}, err
	}

	var result Booking
	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		current, err := s.owned(ctx, tx.Queries, id, in.CustomerID)
		if err != nil {
			return err
		}
		if current.Status != models.ReservationPending {
			return apperr.Conflicting("Only pending reservations can be rescheduled")
		}

		courtID := current.CourtID
		if in.CourtID > 0 {
			courtID = in.CourtID
		}
		court, err := s.guard(ctx, tx.Queries, courtID, candidate, current.ID)
		if err != nil {
			return err
		}

		price := Price(court.PricePerHourCents, candidate.Duration())
		if current.PromoCode.Valid {
			promo, err := tx.Queries.GetActivePromoCode(ctx, current.PromoCode.String, s.now())
			switch {
			case err == nil:
				price = Discount(price, promo.DiscountPercentage)
			case !errors.Is(err, sql.ErrNoRows):
				return apperr.Wrap(apperr.Processing, "failed to load promo code", err)
			}
		}

		updated, err := tx.Queries.UpdateReservationSchedule(ctx, queries.UpdateReservationScheduleParams{
			ID:          current.ID,
			CourtID:     court.ID,
			BookingDate: candidate.Start.Format(dateLayout),
			StartTime:   candidate.Start.Format(clockLayout),
			EndTime:     candidate.End.Format(clockLayout),
			PriceCents:  price,
		})
		if err != nil {
			return apperr.Wrap(apperr.Processing, "failed to update reservation", err)
		}
		if err := tx.Queries.UpdateSaleTotal(ctx, current.SaleID, price); err != nil {
			return apperr.Wrap(apperr.Processing, "failed to update sale", err)
		}
		sale, err := tx.Queries.GetSale(ctx, current.SaleID)
		if err != nil {
			return apperr.Wrap(apperr.Processing, "failed to load sale", err)
		}

		result = Booking{Reservation: updated, Sale: sale, CourtName: court.Name}
		return nil
	})
	if err != nil {
		return Booking{}, err
	}

	log.Ctx(ctx).Info().
		Int64("reservation_id", result.Reservation.ID).
		Str("date", result.Reservation.BookingDate).
		Str("start_time", result.Reservation.StartTime).
		Str("end_time", result.Reservation.EndTime).
		Msg("Reservation rescheduled")
	return result, nil
}

// Get returns one of the customer's reservations. Reservations owned by
// someone else are reported as not found.
func (s *Service) Get(ctx context.Context, id, customerID int64) (Booking, error) {
	reservation, err := s.owned(ctx, s.db.Queries, id, customerID)
	if err != nil {
		return Booking{}, err
	}
	sale, err := s.db.Queries.GetSale(ctx, reservation.SaleID)
	if err != nil {
		return Booking{}, apperr.Wrap(apperr.Processing, "failed to load sale", err)
	}
	court, err := s.db.Queries.GetCourt(ctx, reservation.CourtID)
	if err != nil {
		return Booking{}, apperr.Wrap(apperr.Processing, "failed to load court", err)
	}
	return Booking{Reservation: reservation, Sale: sale, CourtName: court.Name}, nil
}

type Page struct {
	Items      []queries.Reservation `json:"data"`
	Page       int                   `json:"current_page"`
	PageSize   int                   `json:"per_page"`
	Total      int64                 `json:"total"`
	TotalPages int                   `json:"last_page"`
}

// ListForCustomer pages through a customer's reservations, latest first.
func (s *Service) ListForCustomer(ctx context.Context, customerID int64, page int) (Page, error) {
	if customerID <= 0 {
		return Page{}, apperr.Invalid("customer_id", "is required")
	}
	if page < 1 {
		page = 1
	}

	total, err := s.db.Queries.CountReservationsByCustomer(ctx, customerID)
	if err != nil {
		return Page{}, apperr.Wrap(apperr.Processing, "failed to count reservations", err)
	}
	items, err := s.db.Queries.ListReservationsByCustomer(ctx, queries.ListReservationsByCustomerParams{
		CustomerID: customerID,
		Limit:      int64(s.pageSize),
		Offset:     int64((page - 1) * s.pageSize),
	})
	if err != nil {
		return Page{}, apperr.Wrap(apperr.Processing, "failed to list reservations", err)
	}
	if items == nil {
		items = []queries.Reservation{}
	}

	return Page{
		Items:      items,
		Page:       page,
		PageSize:   s.pageSize,
		Total:      total,
		TotalPages: int(math.Max(1, math.Ceil(float64(total)/float64(s.pageSize)))),
	}, nil
}

// ValidatePromo looks up an active, unexpired promo code.
func (s *Service) ValidatePromo(ctx context.Context, code string) (queries.PromoCode, error) {
	if strings.TrimSpace(code) == "" {
		return queries.PromoCode{}, apperr.Invalid("code", "is required")
	}
	promo, err := s.resolvePromo(ctx, code)
	if err != nil {
		return queries.PromoCode{}, err
	}
	return *promo, nil
}

// Checkout builds the hosted payment form for a pending sale.
func (s *Service) Checkout(ctx context.Context, saleID int64) (gateway.Checkout, error) {
	sale, err := s.db.Queries.GetSale(ctx, saleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return gateway.Checkout{}, apperr.Missing("Sale not found")
		}
		return gateway.Checkout{}, apperr.Wrap(apperr.Processing, "failed to load sale", err)
	}
	if sale.Status == models.TransactionCompleted {
		return gateway.Checkout{}, apperr.Conflicting("This booking has already been paid")
	}

	customer, err := s.db.Queries.GetCustomer(ctx, sale.CustomerID)
	if err != nil {
		return gateway.Checkout{}, apperr.Wrap(apperr.Processing, "failed to load customer", err)
	}

	cfg := s.checkout
	if cfg.Currency == "" {
		cfg.Currency = sale.Currency
	}
	checkout, err := gateway.NewCheckout(cfg, gateway.Order{ID: sale.ID, TotalCents: sale.TotalCents}, gateway.Payer{
		Name:  customer.Name,
		Email: customer.Email.String,
		Phone: customer.Phone.String,
	})
	if err != nil {
		return gateway.Checkout{}, apperr.Wrap(apperr.Processing, "failed to build checkout", err)
	}
	return checkout, nil
}

// guard loads the court and judges candidate against its timeline, ignoring
// the reservation being rescheduled.
func (s *Service) guard(ctx context.Context, q *queries.Queries, courtID int64, candidate availability.Interval, exclude int64) (queries.Court, error) {
	court, err := q.GetCourt(ctx, courtID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return queries.Court{}, apperr.Invalid("court_id", "court does not exist")
		}
		return queries.Court{}, apperr.Wrap(apperr.Processing, "failed to load court", err)
	}

	resource, err := s.timeline.Resource(ctx, q, court)
	if err != nil {
		return queries.Court{}, apperr.Wrap(apperr.Processing, "failed to load operating hours", err)
	}
	day := availability.Midnight(candidate.Start)
	booked, err := s.timeline.Booked(ctx, q, court.ID, day, day)
	if err != nil {
		return queries.Court{}, apperr.Wrap(apperr.Processing, "failed to load reservations", err)
	}
	if exclude > 0 {
		booked = withoutReservation(booked, exclude)
	}

	slot := availability.Evaluate(resource, day, booked, candidate)
	switch slot.Reason {
	case availability.ReasonBooked:
		return queries.Court{}, apperr.Conflicting(msgSlotTaken)
	case availability.ReasonInactive:
		return queries.Court{}, apperr.Conflicting(msgCourtInactive)
	case availability.ReasonOutsideHours:
		return queries.Court{}, apperr.Invalid("start_time", "requested time is outside operating hours")
	}
	return court, nil
}

func (s *Service) owned(ctx context.Context, q *queries.Queries, id, customerID int64) (queries.Reservation, error) {
	if customerID <= 0 {
		return queries.Reservation{}, apperr.Invalid("customer_id", "is required")
	}
	reservation, err := q.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return queries.Reservation{}, apperr.Missing("Reservation not found")
		}
		return queries.Reservation{}, apperr.Wrap(apperr.Processing, "failed to load reservation", err)
	}
	if reservation.CustomerID != customerID {
		return queries.Reservation{}, apperr.Missing("Reservation not found")
	}
	return reservation, nil
}

// requestedInterval checks the calendar rules shared by create and update:
// the date must be after today and the end after the start.
func (s *Service) requestedInterval(date, start, end string) (availability.Interval, error) {
	day, err := s.timeline.Date(date)
	if err != nil {
		return availability.Interval{}, apperr.Invalid("date", "must be a date in YYYY-MM-DD format")
	}
	today := availability.Midnight(s.now().In(s.timeline.location()))
	if !day.After(today) {
		return availability.Interval{}, apperr.Invalid("date", "must be a date after today")
	}
	candidate, err := s.timeline.Interval(date, start, end)
	if err != nil {
		return availability.Interval{}, apperr.Invalid("start_time", err.Error())
	}
	if !candidate.End.After(candidate.Start) {
		return availability.Interval{}, apperr.Invalid("end_time", "must be after start_time")
	}
	return candidate, nil
}

func (s *Service) resolvePromo(ctx context.Context, code string) (*queries.PromoCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	promo, err := s.db.Queries.GetActivePromoCode(ctx, code, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Invalid("promo_code", "invalid or expired promo code")
		}
		return nil, apperr.Wrap(apperr.Processing, "failed to load promo code", err)
	}
	return &promo, nil
}

func (s *Service) currency() string {
	if s.checkout.Currency != "" {
		return s.checkout.Currency
	}
	return "MYR"
}

func withoutReservation(booked []availability.Booked, id int64) []availability.Booked {
	return lo.Reject(booked, func(b availability.Booked, _ int) bool {
		return b.ID == id
	})
}

func resultLabel(err error) string {
	if err == nil {
		return metrics.ResultOK
	}
	return string(apperr.KindOf(err))
}
