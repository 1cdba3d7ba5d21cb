package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider session status values as the hosted checkout reports them.
const (
	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"

	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// Webhook event types pushed by the provider.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

type CreateSessionParams struct {
	Amount     decimal.Decimal
	Currency   string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type Session struct {
	ID          string
	RedirectURL string
}

type SessionStatus struct {
	Status        string
	PaymentStatus string
	AmountTotal   decimal.Decimal
	Currency      string
}

type Event struct {
	EventType     string `json:"event_type"`
	SessionID     string `json:"session_id"`
	PaymentStatus string `json:"payment_status"`
}

// Provider is the hosted-checkout boundary. The storefront only ever creates
// a session and asks for its status; the payment page itself is the
// provider's business.
type Provider interface {
	CreateCheckoutSession(c context.Context, param CreateSessionParams) (Session, error)
	GetSessionStatus(c context.Context, providerSessionID string) (SessionStatus, error)
}
