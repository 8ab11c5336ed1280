package queries

import (
	"context"
	"database/sql"
)

const courtColumns = `id, name, price_per_hour_cents, opening_time, closing_time, is_active, created_at, updated_at`

func scanCourt(row interface{ Scan(...any) error }) (Court, error) {
	var c Court
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.PricePerHourCents,
		&c.OpeningTime,
		&c.ClosingTime,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

const getCourt = `SELECT ` + courtColumns + ` FROM courts WHERE id = ?`

func (q *Queries) GetCourt(ctx context.Context, id int64) (Court, error) {
	return scanCourt(q.db.QueryRowContext(ctx, getCourt, id))
}

const listActiveCourts = `SELECT ` + courtColumns + ` FROM courts WHERE is_active = 1 ORDER BY name, id`

func (q *Queries) ListActiveCourts(ctx context.Context) ([]Court, error) {
	rows, err := q.db.QueryContext(ctx, listActiveCourts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Court
	for rows.Next() {
		c, err := scanCourt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createCourt = `INSERT INTO courts (name, price_per_hour_cents, opening_time, closing_time, is_active)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + courtColumns

type CreateCourtParams struct {
	Name              string
	PricePerHourCents int64
	OpeningTime       sql.NullString
	ClosingTime       sql.NullString
	IsActive          bool
}

func (q *Queries) CreateCourt(ctx context.Context, arg CreateCourtParams) (Court, error) {
	return scanCourt(q.db.QueryRowContext(ctx, createCourt,
		arg.Name,
		arg.PricePerHourCents,
		arg.OpeningTime,
		arg.ClosingTime,
		arg.IsActive,
	))
}

const setCourtActive = `UPDATE courts SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

func (q *Queries) SetCourtActive(ctx context.Context, id int64, active bool) error {
	_, err := q.db.ExecContext(ctx, setCourtActive, active, id)
	return err
}

const listCourtHours = `SELECT id, court_id, day_of_week, hours FROM court_hours WHERE court_id = ? ORDER BY day_of_week, id`

func (q *Queries) ListCourtHours(ctx context.Context, courtID int64) ([]CourtHour, error) {
	rows, err := q.db.QueryContext(ctx, listCourtHours, courtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CourtHour
	for rows.Next() {
		var h CourtHour
		if err := rows.Scan(&h.ID, &h.CourtID, &h.DayOfWeek, &h.Hours); err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const addCourtHours = `INSERT INTO court_hours (court_id, day_of_week, hours) VALUES (?, ?, ?)`

type AddCourtHoursParams struct {
	CourtID   int64
	DayOfWeek int64
	Hours     string
}

func (q *Queries) AddCourtHours(ctx context.Context, arg AddCourtHoursParams) error {
	_, err := q.db.ExecContext(ctx, addCourtHours, arg.CourtID, arg.DayOfWeek, arg.Hours)
	return err
}
