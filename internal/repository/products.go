package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const insertProduct = `
INSERT INTO products (name, description, price, category, image_url, stock)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, name, description, price, category, image_url, stock, rating, reviews_count, created_at, updated_at
`

type InsertProductParams struct {
	Name        string
	Description string
	Price       pgtype.Numeric
	Category    string
	ImageUrl    string
	Stock       int32
}

func (q *Queries) InsertProduct(c context.Context, arg InsertProductParams) (Product, error) {
	row := q.db.QueryRow(c, insertProduct,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.Category,
		arg.ImageUrl,
		arg.Stock,
	)
	var p Product
	err := scanProduct(row, &p)
	return p, err
}

const findProducts = `
SELECT id, name, description, price, category, image_url, stock, rating, reviews_count, created_at, updated_at
FROM products
WHERE ($1::text IS NULL OR category = $1)
  AND ($2::text IS NULL OR name ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
ORDER BY created_at DESC
LIMIT 100
`

type FindProductsParams struct {
	Category *string
	Search   *string
}

func (q *Queries) FindProducts(c context.Context, arg FindProductsParams) ([]Product, error) {
	rows, err := q.db.Query(c, findProducts, arg.Category, arg.Search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const findProductById = `
SELECT id, name, description, price, category, image_url, stock, rating, reviews_count, created_at, updated_at
FROM products
WHERE id = $1
`

func (q *Queries) FindProductById(c context.Context, id uuid.UUID) (Product, error) {
	row := q.db.QueryRow(c, findProductById, id)
	var p Product
	err := scanProduct(row, &p)
	return p, err
}

const findCategories = `
SELECT DISTINCT category FROM products ORDER BY category
`

func (q *Queries) FindCategories(c context.Context) ([]string, error) {
	rows, err := q.db.Query(c, findCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	categories := []string{}
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// decrementProductStock is a conditional decrement: it refuses to take the
// stock below zero so concurrent paid reconciliations can never oversell.
const decrementProductStock = `
UPDATE products
SET stock = stock - $2, updated_at = now()
WHERE id = $1 AND stock >= $2
`

type DecrementProductStockParams struct {
	ID       uuid.UUID
	Quantity int32
}

// DecrementProductStock returns the number of rows updated: zero means the
// product is unknown or its remaining stock is insufficient.
func (q *Queries) DecrementProductStock(
	c context.Context,
	arg DecrementProductStockParams,
) (int64, error) {
	tag, err := q.db.Exec(c, decrementProductStock, arg.ID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const updateProductRating = `
UPDATE products
SET rating = $2, reviews_count = $3, updated_at = now()
WHERE id = $1
`

type UpdateProductRatingParams struct {
	ID           uuid.UUID
	Rating       pgtype.Numeric
	ReviewsCount int32
}

func (q *Queries) UpdateProductRating(c context.Context, arg UpdateProductRatingParams) error {
	_, err := q.db.Exec(c, updateProductRating, arg.ID, arg.Rating, arg.ReviewsCount)
	return err
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row scannable, p *Product) error {
	return row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Category,
		&p.ImageUrl,
		&p.Stock,
		&p.Rating,
		&p.ReviewsCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}
