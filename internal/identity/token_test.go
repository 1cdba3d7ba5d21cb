package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := NewToken("test-secret", userID)
	require.NoError(t, err)

	parsed, err := VerifyToken(context.Background(), "test-secret", token)
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	token, err := NewToken("test-secret", uuid.New())
	require.NoError(t, err)

	_, err = VerifyToken(context.Background(), "other-secret", token)
	require.Error(t, err)
}

func TestVerifyTokenGarbage(t *testing.T) {
	_, err := VerifyToken(context.Background(), "test-secret", "not.a.token")
	require.Error(t, err)
}

func TestOwnerKey(t *testing.T) {
	userID := uuid.New()
	assert.Equal(t, userID.String(), FromUser(userID).Owner())

	sessionID := uuid.NewString()
	guest := FromSession(sessionID)
	assert.Equal(t, sessionID, guest.Owner())
	assert.False(t, guest.IsUser())
	assert.False(t, guest.IsZero())
	assert.True(t, Identity{}.IsZero())
}
