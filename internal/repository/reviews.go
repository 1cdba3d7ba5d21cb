package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const insertReview = `
INSERT INTO reviews (product_id, owner, rating, comment)
VALUES ($1, $2, $3, $4)
RETURNING id, product_id, owner, rating, comment, created_at
`

type InsertReviewParams struct {
	ProductID uuid.UUID
	Owner     string
	Rating    int32
	Comment   string
}

func (q *Queries) InsertReview(c context.Context, arg InsertReviewParams) (Review, error) {
	row := q.db.QueryRow(c, insertReview, arg.ProductID, arg.Owner, arg.Rating, arg.Comment)
	var r Review
	err := row.Scan(&r.ID, &r.ProductID, &r.Owner, &r.Rating, &r.Comment, &r.CreatedAt)
	return r, err
}

const findReviewsByProductId = `
SELECT id, product_id, owner, rating, comment, created_at
FROM reviews
WHERE product_id = $1
ORDER BY created_at DESC
LIMIT 100
`

func (q *Queries) FindReviewsByProductId(
	c context.Context,
	productID uuid.UUID,
) ([]Review, error) {
	rows, err := q.db.Query(c, findReviewsByProductId, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	reviews := []Review{}
	for rows.Next() {
		var r Review
		err := rows.Scan(&r.ID, &r.ProductID, &r.Owner, &r.Rating, &r.Comment, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

const aggregateProductRating = `
SELECT COALESCE(ROUND(AVG(rating), 1), 0), COUNT(*)
FROM reviews
WHERE product_id = $1
`

type AggregateProductRatingRow struct {
	Rating       pgtype.Numeric
	ReviewsCount int64
}

func (q *Queries) AggregateProductRating(
	c context.Context,
	productID uuid.UUID,
) (AggregateProductRatingRow, error) {
	row := q.db.QueryRow(c, aggregateProductRating, productID)
	var agg AggregateProductRatingRow
	err := row.Scan(&agg.Rating, &agg.ReviewsCount)
	return agg, err
}
