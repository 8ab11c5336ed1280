package queries

import (
	"context"
	"database/sql"
)

const reservationColumns = `id, court_id, sale_id, customer_id, booking_date, start_time, end_time, status, price_cents, promo_code, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (Reservation, error) {
	var r Reservation
	err := row.Scan(
		&r.ID,
		&r.CourtID,
		&r.SaleID,
		&r.CustomerID,
		&r.BookingDate,
		&r.StartTime,
		&r.EndTime,
		&r.Status,
		&r.PriceCents,
		&r.PromoCode,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func collectReservations(rows *sql.Rows) ([]Reservation, error) {
	defer rows.Close()
	var items []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createReservation = `INSERT INTO reservations (
    court_id, sale_id, customer_id, booking_date, start_time, end_time, status, price_cents, promo_code
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + reservationColumns

type CreateReservationParams struct {
	CourtID     int64
	SaleID      int64
	CustomerID  int64
	BookingDate string
	StartTime   string
	EndTime     string
	Status      string
	PriceCents  int64
	PromoCode   sql.NullString
}

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (Reservation, error) {
	return scanReservation(q.db.QueryRowContext(ctx, createReservation,
		arg.CourtID,
		arg.SaleID,
		arg.CustomerID,
		arg.BookingDate,
		arg.StartTime,
		arg.EndTime,
		arg.Status,
		arg.PriceCents,
		arg.PromoCode,
	))
}

const getReservation = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`

func (q *Queries) GetReservation(ctx context.Context, id int64) (Reservation, error) {
	return scanReservation(q.db.QueryRowContext(ctx, getReservation, id))
}

const getFirstReservationBySale = `SELECT ` + reservationColumns + ` FROM reservations WHERE sale_id = ? ORDER BY id LIMIT 1`

func (q *Queries) GetFirstReservationBySale(ctx context.Context, saleID int64) (Reservation, error) {
	return scanReservation(q.db.QueryRowContext(ctx, getFirstReservationBySale, saleID))
}

const listReservationsBySale = `SELECT ` + reservationColumns + ` FROM reservations WHERE sale_id = ? ORDER BY id`

func (q *Queries) ListReservationsBySale(ctx context.Context, saleID int64) ([]Reservation, error) {
	rows, err := q.db.QueryContext(ctx, listReservationsBySale, saleID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

const listReservationsForCourtDates = `SELECT ` + reservationColumns + ` FROM reservations
WHERE court_id = ? AND booking_date BETWEEN ? AND ?
ORDER BY booking_date, start_time, id`

type ListReservationsForCourtDatesParams struct {
	CourtID  int64
	FromDate string
	ToDate   string
}

// ListReservationsForCourtDates returns every reservation on the court whose
// booking_date falls in [FromDate, ToDate], regardless of status.
func (q *Queries) ListReservationsForCourtDates(ctx context.Context, arg ListReservationsForCourtDatesParams) ([]Reservation, error) {
	rows, err := q.db.QueryContext(ctx, listReservationsForCourtDates, arg.CourtID, arg.FromDate, arg.ToDate)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

const listReservationsByCustomer = `SELECT ` + reservationColumns + ` FROM reservations
WHERE customer_id = ?
ORDER BY booking_date DESC, start_time DESC, id DESC
LIMIT ? OFFSET ?`

type ListReservationsByCustomerParams struct {
	CustomerID int64
	Limit      int64
	Offset     int64
}

func (q *Queries) ListReservationsByCustomer(ctx context.Context, arg ListReservationsByCustomerParams) ([]Reservation, error) {
	rows, err := q.db.QueryContext(ctx, listReservationsByCustomer, arg.CustomerID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

const countReservationsByCustomer = `SELECT COUNT(*) FROM reservations WHERE customer_id = ?`

func (q *Queries) CountReservationsByCustomer(ctx context.Context, customerID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countReservationsByCustomer, customerID).Scan(&n)
	return n, err
}

const updateReservationSchedule = `UPDATE reservations
SET court_id = ?, booking_date = ?, start_time = ?, end_time = ?, price_cents = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING ` + reservationColumns

type UpdateReservationScheduleParams struct {
	ID          int64
	CourtID     int64
	BookingDate string
	StartTime   string
	EndTime     string
	PriceCents  int64
}

func (q *Queries) UpdateReservationSchedule(ctx context.Context, arg UpdateReservationScheduleParams) (Reservation, error) {
	return scanReservation(q.db.QueryRowContext(ctx, updateReservationSchedule,
		arg.CourtID,
		arg.BookingDate,
		arg.StartTime,
		arg.EndTime,
		arg.PriceCents,
		arg.ID,
	))
}

const updateReservationStatus = `UPDATE reservations SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

func (q *Queries) UpdateReservationStatus(ctx context.Context, id int64, status string) error {
	_, err := q.db.ExecContext(ctx, updateReservationStatus, status, id)
	return err
}
