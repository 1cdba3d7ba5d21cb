package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// upsertCart creates the owner's cart lazily on first use. The no-op update
// makes RETURNING work for the conflict path as well.
const upsertCart = `
INSERT INTO carts (owner)
VALUES ($1)
ON CONFLICT (owner) DO UPDATE SET updated_at = now()
RETURNING id, owner, created_at, updated_at
`

func (q *Queries) UpsertCart(c context.Context, owner string) (Cart, error) {
	row := q.db.QueryRow(c, upsertCart, owner)
	var cart Cart
	err := row.Scan(&cart.ID, &cart.Owner, &cart.CreatedAt, &cart.UpdatedAt)
	return cart, err
}

const findCartByOwner = `
SELECT id, owner, created_at, updated_at
FROM carts
WHERE owner = $1
`

func (q *Queries) FindCartByOwner(c context.Context, owner string) (Cart, error) {
	row := q.db.QueryRow(c, findCartByOwner, owner)
	var cart Cart
	err := row.Scan(&cart.ID, &cart.Owner, &cart.CreatedAt, &cart.UpdatedAt)
	return cart, err
}

// upsertCartItem merges concurrent adds for the same product into a single
// line in one atomic statement. The recorded unit price keeps its add-time
// value on merge.
const upsertCartItem = `
INSERT INTO cart_items (cart_id, product_id, quantity, price)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cart_id, product_id)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
RETURNING id, cart_id, product_id, quantity, price, created_at, updated_at
`

type UpsertCartItemParams struct {
	CartID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	Price     pgtype.Numeric
}

func (q *Queries) UpsertCartItem(c context.Context, arg UpsertCartItemParams) (CartItem, error) {
	row := q.db.QueryRow(c, upsertCartItem, arg.CartID, arg.ProductID, arg.Quantity, arg.Price)
	var item CartItem
	err := scanCartItem(row, &item)
	return item, err
}

const findCartItems = `
SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.price,
       p.name, p.image_url, p.price, p.stock
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
WHERE ci.cart_id = $1
ORDER BY ci.created_at
`

func (q *Queries) FindCartItems(c context.Context, cartID uuid.UUID) ([]FindCartItemsRow, error) {
	rows, err := q.db.Query(c, findCartItems, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []FindCartItemsRow{}
	for rows.Next() {
		var i FindCartItemsRow
		err := rows.Scan(
			&i.ID,
			&i.CartID,
			&i.ProductID,
			&i.Quantity,
			&i.Price,
			&i.ProductName,
			&i.ImageUrl,
			&i.CurrentPrice,
			&i.Stock,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const findCartItemById = `
SELECT id, cart_id, product_id, quantity, price, created_at, updated_at
FROM cart_items
WHERE id = $1
`

func (q *Queries) FindCartItemById(c context.Context, id uuid.UUID) (CartItem, error) {
	row := q.db.QueryRow(c, findCartItemById, id)
	var item CartItem
	err := scanCartItem(row, &item)
	return item, err
}

const updateCartItemQuantity = `
UPDATE cart_items
SET quantity = $2, updated_at = now()
WHERE id = $1
`

type UpdateCartItemQuantityParams struct {
	ID       uuid.UUID
	Quantity int32
}

func (q *Queries) UpdateCartItemQuantity(
	c context.Context,
	arg UpdateCartItemQuantityParams,
) (int64, error) {
	tag, err := q.db.Exec(c, updateCartItemQuantity, arg.ID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteCartItem = `
DELETE FROM cart_items WHERE id = $1
`

func (q *Queries) DeleteCartItem(c context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(c, deleteCartItem, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteCartItemsByOwner = `
DELETE FROM cart_items
WHERE cart_id IN (SELECT id FROM carts WHERE owner = $1)
`

func (q *Queries) DeleteCartItemsByOwner(c context.Context, owner string) (int64, error) {
	tag, err := q.db.Exec(c, deleteCartItemsByOwner, owner)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanCartItem(row scannable, i *CartItem) error {
	return row.Scan(
		&i.ID,
		&i.CartID,
		&i.ProductID,
		&i.Quantity,
		&i.Price,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
}
