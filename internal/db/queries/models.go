package queries

import (
	"database/sql"
	"time"
)

type Court struct {
	ID                int64          `json:"id"`
	Name              string         `json:"name"`
	PricePerHourCents int64          `json:"price_per_hour_cents"`
	OpeningTime       sql.NullString `json:"-"`
	ClosingTime       sql.NullString `json:"-"`
	IsActive          bool           `json:"is_active"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

type CourtHour struct {
	ID        int64
	CourtID   int64
	DayOfWeek int64
	Hours     string
}

type Customer struct {
	ID        int64
	Name      string
	Email     sql.NullString
	Phone     sql.NullString
	CreatedAt time.Time
}

type PromoCode struct {
	ID                 int64     `json:"id"`
	Code               string    `json:"code"`
	DiscountPercentage int64     `json:"discount_percentage"`
	Description        string    `json:"description"`
	IsActive           bool      `json:"is_active"`
	ExpiresAt          time.Time `json:"expires_at"`
}

type Sale struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	TotalCents int64     `json:"total_cents"`
	Currency   string    `json:"currency"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Reservation struct {
	ID          int64          `json:"id"`
	CourtID     int64          `json:"court_id"`
	SaleID      int64          `json:"sale_id"`
	CustomerID  int64          `json:"customer_id"`
	BookingDate string         `json:"booking_date"`
	StartTime   string         `json:"start_time"`
	EndTime     string         `json:"end_time"`
	Status      string         `json:"status"`
	PriceCents  int64          `json:"price_cents"`
	PromoCode   sql.NullString `json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type Transaction struct {
	TransactionID  string
	SaleID         int64
	Amount         string
	AmountCents    int64
	Currency       string
	Status         string
	PaymentChannel sql.NullString
	PaymentDate    sql.NullTime
	PayDateRaw     string
	AppCode        sql.NullString
	Domain         sql.NullString
	ResponseData   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
