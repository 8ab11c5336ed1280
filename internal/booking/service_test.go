package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codr1/courtside/internal/apperr"
	"github.com/codr1/courtside/internal/availability"
	"github.com/codr1/courtside/internal/db"
	"github.com/codr1/courtside/internal/db/queries"
	"github.com/codr1/courtside/internal/gateway"
	"github.com/codr1/courtside/internal/models"
	"github.com/codr1/courtside/internal/testutil"
)

// 2026-03-10 is a Tuesday.
const bookingDate = "2026-03-10"

func fixedNow() time.Time {
	return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T, database *db.DB) *Service {
	t.Helper()

	svc, err := New(Config{
		DB:           database,
		Location:     time.UTC,
		Defaults:     Defaults{Open: "06:00", Close: "22:00"},
		SlotDuration: time.Hour,
		PageSize:     2,
		Checkout: gateway.CheckoutConfig{
			MerchantID:    "AMcourtside",
			VerifyKey:     "v3rify",
			ActionURL:     "https://pay.example.com/RMS/pay/%s/",
			Currency:      "MYR",
			ReturnURL:     "http://localhost/payment/return",
			CallbackURL:   "http://localhost/payment/callback",
			DefaultRegion: "MY",
		},
		Now: fixedNow,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type fixture struct {
	db       *db.DB
	svc      *Service
	court    queries.Court
	customer queries.Customer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	return fixture{
		db:       database,
		svc:      newTestService(t, database),
		court:    testutil.SeedCourt(t, database, "Court 1", 4000, "08:00", "12:00"),
		customer: testutil.SeedCustomer(t, database, "Aina", "aina@example.com"),
	}
}

func (f fixture) input(start, end string) CreateInput {
	return CreateInput{
		CourtID:    f.court.ID,
		CustomerID: f.customer.ID,
		Date:       bookingDate,
		StartTime:  start,
		EndTime:    end,
	}
}

func TestCreateBooksPendingReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, f.input("09:00", "10:30"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if booking.Reservation.Status != models.ReservationPending {
		t.Fatalf("expected pending reservation, got %q", booking.Reservation.Status)
	}
	if booking.Sale.Status != models.TransactionPending {
		t.Fatalf("expected pending sale, got %q", booking.Sale.Status)
	}
	if booking.Reservation.PriceCents != 6000 || booking.Sale.TotalCents != 6000 {
		t.Fatalf("expected 90 minutes at 40.00/h to cost 6000, got %d/%d", booking.Reservation.PriceCents, booking.Sale.TotalCents)
	}
	if booking.Reservation.SaleID != booking.Sale.ID {
		t.Fatalf("reservation not linked to sale")
	}
	if booking.Reservation.StartTime != "09:00" || booking.Reservation.EndTime != "10:30" {
		t.Fatalf("unexpected stored interval %s-%s", booking.Reservation.StartTime, booking.Reservation.EndTime)
	}
	if booking.CourtName != "Court 1" {
		t.Fatalf("expected court name, got %q", booking.CourtName)
	}
}

func TestCreateRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.input("09:00", "10:00")); err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name       string
		start, end string
		wantKind   apperr.Kind
	}{
		{"same interval", "09:00", "10:00", apperr.Conflict},
		{"covers existing", "08:30", "10:30", apperr.Conflict},
		{"inside existing", "09:15", "09:45", apperr.Conflict},
		{"ends inside", "08:00", "09:30", apperr.Conflict},
		{"touches end", "10:00", "11:00", ""},
		{"touches start", "08:00", "09:00", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, f.input(tt.start, tt.end))
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, apperr.ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
			if err.Error() != msgSlotTaken {
				t.Fatalf("unexpected message %q", err.Error())
			}
		})
	}
}

func TestCreateIgnoresReleasedReservations(t *testing.T) {
	f := newFixture(t)
	testutil.SeedBooking(t, f.db, f.court.ID, f.customer.ID, bookingDate, "09:00", "10:00", models.ReservationCancelled, 4000)
	testutil.SeedBooking(t, f.db, f.court.ID, f.customer.ID, bookingDate, "09:00", "10:00", models.ReservationFailed, 4000)

	if _, err := f.svc.Create(context.Background(), f.input("09:00", "10:00")); err != nil {
		t.Fatalf("released reservations must not block: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		mutate    func(*CreateInput)
		wantField string
	}{
		{"missing court", func(in *CreateInput) { in.CourtID = 0 }, "court_id"},
		{"unknown court", func(in *CreateInput) { in.CourtID = 999 }, "court_id"},
		{"unknown customer", func(in *CreateInput) { in.CustomerID = 999 }, "customer_id"},
		{"bad date", func(in *CreateInput) { in.Date = "10/03/2026" }, "date"},
		{"today", func(in *CreateInput) { in.Date = "2026-03-09" }, "date"},
		{"past", func(in *CreateInput) { in.Date = "2026-03-01" }, "date"},
		{"bad time", func(in *CreateInput) { in.StartTime = "9am" }, "start_time"},
		{"end before start", func(in *CreateInput) { in.StartTime, in.EndTime = "10:00", "09:00" }, "end_time"},
		{"zero length", func(in *CreateInput) { in.EndTime = in.StartTime }, "end_time"},
		{"outside hours", func(in *CreateInput) { in.StartTime, in.EndTime = "11:30", "12:30" }, "start_time"},
		{"unknown promo", func(in *CreateInput) { in.PromoCode = "NOPE" }, "promo_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input("09:00", "10:00")
			tt.mutate(&in)

			_, err := f.svc.Create(ctx, in)
			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Kind != apperr.Validation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if appErr.Field != tt.wantField {
				t.Fatalf("expected field %q, got %q (%v)", tt.wantField, appErr.Field, err)
			}
		})
	}
}

func TestCreateAppliesPromo(t *testing.T) {
	f := newFixture(t)
	testutil.SeedPromo(t, f.db, "SPRING20", 20, fixedNow().Add(48*time.Hour))

	in := f.input("09:00", "11:00")
	in.PromoCode = "SPRING20"
	booking, err := f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if booking.Reservation.PriceCents != 6400 {
		t.Fatalf("expected 8000 less 20%% = 6400, got %d", booking.Reservation.PriceCents)
	}
	if !booking.Reservation.PromoCode.Valid || booking.Reservation.PromoCode.String != "SPRING20" {
		t.Fatalf("expected promo code stored, got %+v", booking.Reservation.PromoCode)
	}
}

func TestCreateRejectsExpiredPromo(t *testing.T) {
	f := newFixture(t)
	testutil.SeedPromo(t, f.db, "OLD", 50, fixedNow().Add(-time.Hour))

	in := f.input("09:00", "10:00")
	in.PromoCode = "OLD"
	_, err := f.svc.Create(context.Background(), in)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateInactiveCourtConflicts(t *testing.T) {
	f := newFixture(t)
	if err := f.db.Queries.SetCourtActive(context.Background(), f.court.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := f.svc.Create(context.Background(), f.input("09:00", "10:00"))
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict for inactive court, got %v", err)
	}
}

func TestCreateConcurrentRequestsBookOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, f.input("09:00", "10:00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != workers-1 {
		t.Fatalf("expected exactly one booking, got %d succeeded and %d conflicts", succeeded, conflicts)
	}
}

func TestAvailabilityReflectsBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.input("09:00", "10:00")); err != nil {
		t.Fatalf("create: %v", err)
	}

	day, err := f.svc.Availability(ctx, f.court.ID, bookingDate)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(day.Slots) != 4 {
		t.Fatalf("expected 4 slots between 08:00 and 12:00, got %d", len(day.Slots))
	}

	for _, slot := range day.Slots {
		booked := slot.Start.Hour() == 9
		if booked && (slot.Available || slot.Reason != availability.ReasonBooked) {
			t.Fatalf("expected 09:00 slot to be booked, got %+v", slot)
		}
		if !booked && !slot.Available {
			t.Fatalf("expected %s slot to be free, got %+v", slot.Start.Format("15:04"), slot)
		}
	}
}

func TestAvailabilityUsesWeekdayHoursAndDefaults(t *testing.T) {
	database := testutil.NewTestDB(t)
	svc := newTestService(t, database)
	ctx := context.Background()

	plain := testutil.SeedCourt(t, database, "Default Court", 3000, "", "")
	day, err := svc.Availability(ctx, plain.ID, bookingDate)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(day.Slots) != 16 {
		t.Fatalf("expected 16 default slots between 06:00 and 22:00, got %d", len(day.Slots))
	}

	late := testutil.SeedCourt(t, database, "Late Court", 3000, "", "")
	for _, hours := range []string{"7:00am-8:00am", "22:00 to 01:00; nonsense"} {
		if err := database.Queries.AddCourtHours(ctx, queries.AddCourtHoursParams{
			CourtID:   late.ID,
			DayOfWeek: int64(time.Tuesday),
			Hours:     hours,
		}); err != nil {
			t.Fatalf("add hours: %v", err)
		}
	}
	testutil.SeedBooking(t, database, late.ID, testutil.SeedCustomer(t, database, "B", "").ID, "2026-03-11", "00:00", "01:00", models.ReservationConfirmed, 3000)

	day, err = svc.Availability(ctx, late.ID, bookingDate)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(day.Slots) != 4 {
		t.Fatalf("expected 1 morning and 3 late slots, got %d: %+v", len(day.Slots), day.Slots)
	}
	last := day.Slots[len(day.Slots)-1]
	if last.Start.Day() != 11 || last.Available || last.Reason != availability.ReasonBooked {
		t.Fatalf("expected the next-day slot to be booked, got %+v", last)
	}
}

func TestAvailabilityErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Availability(ctx, 999, bookingDate); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.Availability(ctx, f.court.ID, "tomorrow"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateReschedulesExcludingItself(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, f.input("09:00", "10:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := f.svc.Update(ctx, booking.Reservation.ID, UpdateInput{
		CustomerID: f.customer.ID,
		Date:       bookingDate,
		StartTime:  "09:30",
		EndTime:    "11:30",
	})
	if err != nil {
		t.Fatalf("update overlapping its own interval: %v", err)
	}
	if updated.Reservation.StartTime != "09:30" || updated.Reservation.EndTime != "11:30" {
		t.Fatalf("unexpected interval %s-%s", updated.Reservation.StartTime, updated.Reservation.EndTime)
	}
	if updated.Reservation.PriceCents != 8000 || updated.Sale.TotalCents != 8000 {
		t.Fatalf("expected repriced 8000, got %d/%d", updated.Reservation.PriceCents, updated.Sale.TotalCents)
	}
}

func TestUpdateConflictsWithOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.input("09:00", "10:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.input("10:00", "11:00")); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.svc.Update(ctx, first.Reservation.ID, UpdateInput{
		CustomerID: f.customer.ID,
		Date:       bookingDate,
		StartTime:  "09:30",
		EndTime:    "10:30",
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateOwnershipAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := testutil.SeedCustomer(t, f.db, "Other", "other@example.com")

	booking, err := f.svc.Create(ctx, f.input("09:00", "10:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	in := UpdateInput{CustomerID: other.ID, Date: bookingDate, StartTime: "10:00", EndTime: "11:00"}
	if _, err := f.svc.Update(ctx, booking.Reservation.ID, in); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for another customer, got %v", err)
	}

	if err := f.db.Queries.UpdateReservationStatus(ctx, booking.Reservation.ID, models.ReservationConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	in.CustomerID = f.customer.ID
	if _, err := f.svc.Update(ctx, booking.Reservation.ID, in); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict for confirmed reservation, got %v", err)
	}
}

func TestGetAndListForCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []int64
	for _, start := range []string{"08:00", "09:00", "10:00"} {
		end := map[string]string{"08:00": "09:00", "09:00": "10:00", "10:00": "11:00"}[start]
		b, err := f.svc.Create(ctx, f.input(start, end))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, b.Reservation.ID)
	}

	got, err := f.svc.Get(ctx, ids[0], f.customer.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Reservation.ID != ids[0] || got.CourtName != "Court 1" {
		t.Fatalf("unexpected booking %+v", got)
	}
	if _, err := f.svc.Get(ctx, ids[0], f.customer.ID+100); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for a stranger, got %v", err)
	}

	page, err := f.svc.ListForCustomer(ctx, f.customer.ID, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected first page %+v", page)
	}
	if page.Items[0].StartTime != "10:00" {
		t.Fatalf("expected latest first, got %s", page.Items[0].StartTime)
	}

	page, err = f.svc.ListForCustomer(ctx, f.customer.ID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].StartTime != "08:00" {
		t.Fatalf("unexpected second page %+v", page.Items)
	}
}

func TestValidatePromo(t *testing.T) {
	f := newFixture(t)
	testutil.SeedPromo(t, f.db, "WELCOME", 10, fixedNow().Add(time.Hour))

	promo, err := f.svc.ValidatePromo(context.Background(), "WELCOME")
	if err != nil {
		t.Fatalf("validate promo: %v", err)
	}
	if promo.DiscountPercentage != 10 {
		t.Fatalf("unexpected promo %+v", promo)
	}

	if _, err := f.svc.ValidatePromo(context.Background(), "MISSING"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, f.input("09:00", "10:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	checkout, err := f.svc.Checkout(ctx, booking.Sale.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if checkout.ActionURL != "https://pay.example.com/RMS/pay/AMcourtside/" {
		t.Fatalf("unexpected action url %q", checkout.ActionURL)
	}
	if checkout.Params["amount"] != "40.00" || checkout.Params["bill_email"] != "aina@example.com" {
		t.Fatalf("unexpected params %+v", checkout.Params)
	}

	if _, err := f.svc.Checkout(ctx, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := f.db.Queries.UpdateSaleStatus(ctx, booking.Sale.ID, models.TransactionCompleted); err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	if _, err := f.svc.Checkout(ctx, booking.Sale.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict for a paid sale, got %v", err)
	}
}
