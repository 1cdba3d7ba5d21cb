package identity

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the opaque key scoping carts, checkout sessions and orders to
// their owner: a verified user id, or a client-generated session id for
// guests.
type Identity struct {
	UserID    uuid.UUID
	SessionID string
}

func FromUser(userID uuid.UUID) Identity {
	return Identity{UserID: userID}
}

func FromSession(sessionID string) Identity {
	return Identity{SessionID: sessionID}
}

func (i Identity) IsUser() bool {
	return i.UserID != uuid.Nil
}

func (i Identity) IsZero() bool {
	return i.UserID == uuid.Nil && i.SessionID == ""
}

// Owner returns the single opaque owner key used in storage. A cart for a
// given owner key is unique.
func (i Identity) Owner() string {
	if i.IsUser() {
		return i.UserID.String()
	}
	return i.SessionID
}

type identityKey struct{}

func AttachToContext(c context.Context, id Identity) context.Context {
	return context.WithValue(c, identityKey{}, id)
}

func FromContext(c context.Context) Identity {
	id, ok := c.Value(identityKey{}).(Identity)
	if !ok {
		return Identity{}
	}
	return id
}
