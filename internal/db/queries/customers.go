package queries

import (
	"context"
	"database/sql"
	"time"
)

const getCustomer = `SELECT id, name, email, phone, created_at FROM customers WHERE id = ?`

func (q *Queries) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := q.db.QueryRowContext(ctx, getCustomer, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	return c, err
}

const createCustomer = `INSERT INTO customers (name, email, phone) VALUES (?, ?, ?)
RETURNING id, name, email, phone, created_at`

type CreateCustomerParams struct {
	Name  string
	Email sql.NullString
	Phone sql.NullString
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	var c Customer
	err := q.db.QueryRowContext(ctx, createCustomer, arg.Name, arg.Email, arg.Phone).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	return c, err
}

const promoColumns = `id, code, discount_percentage, description, is_active, expires_at`

const getActivePromoCode = `SELECT ` + promoColumns + ` FROM promo_codes
WHERE code = ? AND is_active = 1 AND expires_at > ?`

func (q *Queries) GetActivePromoCode(ctx context.Context, code string, now time.Time) (PromoCode, error) {
	var p PromoCode
	err := q.db.QueryRowContext(ctx, getActivePromoCode, code, now.UTC()).
		Scan(&p.ID, &p.Code, &p.DiscountPercentage, &p.Description, &p.IsActive, &p.ExpiresAt)
	return p, err
}

const createPromoCode = `INSERT INTO promo_codes (code, discount_percentage, description, is_active, expires_at)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + promoColumns

type CreatePromoCodeParams struct {
	Code               string
	DiscountPercentage int64
	Description        string
	IsActive           bool
	ExpiresAt          time.Time
}

func (q *Queries) CreatePromoCode(ctx context.Context, arg CreatePromoCodeParams) (PromoCode, error) {
	var p PromoCode
	err := q.db.QueryRowContext(ctx, createPromoCode,
		arg.Code,
		arg.DiscountPercentage,
		arg.Description,
		arg.IsActive,
		arg.ExpiresAt.UTC(),
	).Scan(&p.ID, &p.Code, &p.DiscountPercentage, &p.Description, &p.IsActive, &p.ExpiresAt)
	return p, err
}
