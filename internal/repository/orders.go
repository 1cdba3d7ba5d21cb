package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// insertOrder relies on the unique index on provider_session_id to enforce
// at-most-one order per checkout session.
const insertOrder = `
INSERT INTO orders (owner, provider_session_id, items, total_amount, payment_status)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, owner, provider_session_id, items, total_amount, payment_status, created_at
`

type InsertOrderParams struct {
	Owner             string
	ProviderSessionID string
	Items             []byte
	TotalAmount       pgtype.Numeric
	PaymentStatus     PaymentStatus
}

func (q *Queries) InsertOrder(c context.Context, arg InsertOrderParams) (Order, error) {
	row := q.db.QueryRow(c, insertOrder,
		arg.Owner,
		arg.ProviderSessionID,
		arg.Items,
		arg.TotalAmount,
		arg.PaymentStatus,
	)
	var o Order
	err := scanOrder(row, &o)
	return o, err
}

const findOrdersByOwner = `
SELECT id, owner, provider_session_id, items, total_amount, payment_status, created_at
FROM orders
WHERE owner = $1
ORDER BY created_at DESC
LIMIT 50
`

func (q *Queries) FindOrdersByOwner(c context.Context, owner string) ([]Order, error) {
	rows, err := q.db.Query(c, findOrdersByOwner, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []Order{}
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const findOrderByProviderSessionId = `
SELECT id, owner, provider_session_id, items, total_amount, payment_status, created_at
FROM orders
WHERE provider_session_id = $1
`

func (q *Queries) FindOrderByProviderSessionId(
	c context.Context,
	providerSessionID string,
) (Order, error) {
	row := q.db.QueryRow(c, findOrderByProviderSessionId, providerSessionID)
	var o Order
	err := scanOrder(row, &o)
	return o, err
}

func scanOrder(row scannable, o *Order) error {
	return row.Scan(
		&o.ID,
		&o.Owner,
		&o.ProviderSessionID,
		&o.Items,
		&o.TotalAmount,
		&o.PaymentStatus,
		&o.CreatedAt,
	)
}
