package response

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartItem struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	ImageUrl  string          `json:"imageUrl"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int32           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Cart is the read model returned to clients. ItemsCount sums quantities
// across lines, TotalAmount sums each line's recorded unit price times its
// quantity.
type Cart struct {
	Items       []CartItem      `json:"items"`
	ItemsCount  int32           `json:"itemsCount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}
