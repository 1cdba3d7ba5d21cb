package errors

import (
	"errors"
)

// Domain error taxonomy. Services return these sentinels (usually wrapped)
// so controllers can map them to HTTP status codes.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrOutOfStock        = errors.New("product is out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrProviderTimeout   = errors.New("payment provider timeout")
	ErrProviderError     = errors.New("unexpected payment provider response")
	ErrEmptyAuth         = errors.New("missing authorization")
	ErrTokenInvalid      = errors.New("invalid token")
	ErrEmailTaken        = errors.New("email already registered")
	ErrPasswordMismatch  = errors.New("password mismatch")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
)
