package repository

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type CheckoutSessionStatus string

const (
	CheckoutSessionStatusInitiated CheckoutSessionStatus = "initiated"
	CheckoutSessionStatusPaid      CheckoutSessionStatus = "paid"
	CheckoutSessionStatusExpired   CheckoutSessionStatus = "expired"
	CheckoutSessionStatusFailed    CheckoutSessionStatus = "failed"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type User struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	Password  string
	IsActive  bool
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type Product struct {
	ID           uuid.UUID
	Name         string
	Description  string
	Price        pgtype.Numeric
	Category     string
	ImageUrl     string
	Stock        int32
	Rating       pgtype.Numeric
	ReviewsCount int32
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

type Cart struct {
	ID        uuid.UUID
	Owner     string
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	Price     pgtype.Numeric
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

// FindCartItemsRow joins each cart line with the product's current catalog
// details. Price is the unit price recorded at add time, CurrentPrice the
// catalog price at read time.
type FindCartItemsRow struct {
	ID           uuid.UUID
	CartID       uuid.UUID
	ProductID    uuid.UUID
	Quantity     int32
	Price        pgtype.Numeric
	ProductName  string
	ImageUrl     string
	CurrentPrice pgtype.Numeric
	Stock        int32
}

type CheckoutSession struct {
	ID                uuid.UUID
	ProviderSessionID string
	Owner             string
	Amount            pgtype.Numeric
	Currency          string
	Status            CheckoutSessionStatus
	Metadata          []byte
	NeedsReview       bool
	CreatedAt         pgtype.Timestamptz
	UpdatedAt         pgtype.Timestamptz
}

type Order struct {
	ID                uuid.UUID
	Owner             string
	ProviderSessionID string
	Items             []byte
	TotalAmount       pgtype.Numeric
	PaymentStatus     PaymentStatus
	CreatedAt         pgtype.Timestamptz
}

type Review struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Owner     string
	Rating    int32
	Comment   string
	CreatedAt pgtype.Timestamptz
}
