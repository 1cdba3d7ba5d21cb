package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem is a line frozen at checkout time: the unit price is the one the
// buyer paid, not the catalog price at read time.
type OrderItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type Order struct {
	ID                uuid.UUID       `json:"id"`
	ProviderSessionID string          `json:"providerSessionId"`
	Items             []OrderItem     `json:"items"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	PaymentStatus     string          `json:"paymentStatus"`
	CreatedAt         time.Time       `json:"createdAt"`
}
