package response

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CheckoutSession struct {
	ProviderSessionID string          `json:"providerSessionId"`
	RedirectURL       string          `json:"redirectUrl"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status"`
}

// CheckoutStatus is the reconciled view of a session. OrderID is set once a
// paid session has been materialized into an order.
type CheckoutStatus struct {
	ProviderSessionID string     `json:"providerSessionId"`
	Status            string     `json:"status"`
	NeedsReview       bool       `json:"needsReview"`
	OrderID           *uuid.UUID `json:"orderId,omitempty"`
}
