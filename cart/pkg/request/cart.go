package request

import "github.com/google/uuid"

type AddCartItem struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int32     `json:"quantity"  validate:"required,min=1"`
}

// UpdateCartItem carries no lower bound on purpose: a quantity of zero or
// below removes the line instead of updating it.
type UpdateCartItem struct {
	Quantity int32 `json:"quantity"`
}
