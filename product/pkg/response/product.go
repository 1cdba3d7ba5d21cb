package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category"`
	ImageUrl     string          `json:"imageUrl"`
	Stock        int32           `json:"stock"`
	Rating       decimal.Decimal `json:"rating"`
	ReviewsCount int32           `json:"reviewsCount"`
	CreatedAt    time.Time       `json:"createdAt"`
}
