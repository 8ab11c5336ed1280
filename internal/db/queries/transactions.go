package queries

import (
	"context"
	"database/sql"
)

const transactionColumns = `transaction_id, sale_id, amount, amount_cents, currency, status, payment_channel, payment_date, pay_date_raw, app_code, domain, response_data, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.TransactionID,
		&t.SaleID,
		&t.Amount,
		&t.AmountCents,
		&t.Currency,
		&t.Status,
		&t.PaymentChannel,
		&t.PaymentDate,
		&t.PayDateRaw,
		&t.AppCode,
		&t.Domain,
		&t.ResponseData,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

// UpsertTransaction keys on transaction_id so a redelivered notification
// rewrites the same row instead of adding a second one.
const upsertTransaction = `INSERT INTO transactions (
    transaction_id, sale_id, amount, amount_cents, currency, status,
    payment_channel, payment_date, pay_date_raw, app_code, domain, response_data
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(transaction_id) DO UPDATE SET
    sale_id = excluded.sale_id,
    amount = excluded.amount,
    amount_cents = excluded.amount_cents,
    currency = excluded.currency,
    status = excluded.status,
    payment_channel = excluded.payment_channel,
    payment_date = excluded.payment_date,
    pay_date_raw = excluded.pay_date_raw,
    app_code = excluded.app_code,
    domain = excluded.domain,
    response_data = excluded.response_data,
    updated_at = CURRENT_TIMESTAMP
RETURNING ` + transactionColumns

type UpsertTransactionParams struct {
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
}

func (q *Queries) UpsertTransaction(ctx context.Context, arg UpsertTransactionParams) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, upsertTransaction,
		arg.TransactionID,
		arg.SaleID,
		arg.Amount,
		arg.AmountCents,
		arg.Currency,
		arg.Status,
		arg.PaymentChannel,
		arg.PaymentDate,
		arg.PayDateRaw,
		arg.AppCode,
		arg.Domain,
		arg.ResponseData,
	))
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = ?`

func (q *Queries) GetTransaction(ctx context.Context, transactionID string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, transactionID))
}

const countTransactions = `SELECT COUNT(*) FROM transactions`

func (q *Queries) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countTransactions).Scan(&n)
	return n, err
}
