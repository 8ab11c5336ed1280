package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/codr1/courtside/internal/db"
	"github.com/codr1/courtside/internal/db/queries"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// SeedCourt inserts an active court priced per hour with the given
// opening and closing times.
func SeedCourt(t *testing.T, database *db.DB, name string, priceCents int64, open, closing string) queries.Court {
	t.Helper()

	court, err := database.Queries.CreateCourt(context.Background(), queries.CreateCourtParams{
		Name:              name,
		PricePerHourCents: priceCents,
		OpeningTime:       sql.NullString{String: open, Valid: open != ""},
		ClosingTime:       sql.NullString{String: closing, Valid: closing != ""},
		IsActive:          true,
	})
	if err != nil {
		t.Fatalf("seed court: %v", err)
	}
	return court
}

// SeedCustomer inserts a customer with the given email.
func SeedCustomer(t *testing.T, database *db.DB, name, email string) queries.Customer {
	t.Helper()

	customer, err := database.Queries.CreateCustomer(context.Background(), queries.CreateCustomerParams{
		Name:  name,
		Email: sql.NullString{String: email, Valid: email != ""},
		Phone: sql.NullString{String: "+60123456789", Valid: true},
	})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer
}

// SeedPromo inserts an active promo code expiring at expires.
func SeedPromo(t *testing.T, database *db.DB, code string, pct int64, expires time.Time) queries.PromoCode {
	t.Helper()

	promo, err := database.Queries.CreatePromoCode(context.Background(), queries.CreatePromoCodeParams{
		Code:               code,
		DiscountPercentage: pct,
		Description:        code + " discount",
		IsActive:           true,
		ExpiresAt:          expires,
	})
	if err != nil {
		t.Fatalf("seed promo: %v", err)
	}
	return promo
}

// SeedBooking inserts a sale and a single reservation under it.
func SeedBooking(t *testing.T, database *db.DB, courtID, customerID int64, date, start, end, status string, priceCents int64) (queries.Sale, queries.Reservation) {
	t.Helper()
	ctx := context.Background()

	sale, err := database.Queries.CreateSale(ctx, queries.CreateSaleParams{
		CustomerID: customerID,
		TotalCents: priceCents,
		Currency:   "MYR",
		Status:     "pending",
	})
	if err != nil {
		t.Fatalf("seed sale: %v", err)
	}
	reservation, err := database.Queries.CreateReservation(ctx, queries.CreateReservationParams{
		CourtID:     courtID,
		SaleID:      sale.ID,
		CustomerID:  customerID,
		BookingDate: date,
		StartTime:   start,
		EndTime:     end,
		Status:      status,
		PriceCents:  priceCents,
	})
	if err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	return sale, reservation
}
