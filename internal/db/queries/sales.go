package queries

import "context"

const saleColumns = `id, customer_id, total_cents, currency, status, created_at, updated_at`

func scanSale(row interface{ Scan(...any) error }) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.CustomerID, &s.TotalCents, &s.Currency, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const createSale = `INSERT INTO sales (customer_id, total_cents, currency, status)
VALUES (?, ?, ?, ?)
RETURNING ` + saleColumns

type CreateSaleParams struct {
	CustomerID int64
	TotalCents int64
	Currency   string
	Status     string
}

func (q *Queries) CreateSale(ctx context.Context, arg CreateSaleParams) (Sale, error) {
	return scanSale(q.db.QueryRowContext(ctx, createSale, arg.CustomerID, arg.TotalCents, arg.Currency, arg.Status))
}

const getSale = `SELECT ` + saleColumns + ` FROM sales WHERE id = ?`

func (q *Queries) GetSale(ctx context.Context, id int64) (Sale, error) {
	return scanSale(q.db.QueryRowContext(ctx, getSale, id))
}

const updateSaleStatus = `UPDATE sales SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

func (q *Queries) UpdateSaleStatus(ctx context.Context, id int64, status string) error {
	_, err := q.db.ExecContext(ctx, updateSaleStatus, status, id)
	return err
}

const updateSaleTotal = `UPDATE sales SET total_cents = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

func (q *Queries) UpdateSaleTotal(ctx context.Context, id int64, totalCents int64) error {
	_, err := q.db.ExecContext(ctx, updateSaleTotal, totalCents, id)
	return err
}
