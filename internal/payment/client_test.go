package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/commercelab/storefront/internal/config"
	inErr "github.com/commercelab/storefront/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string, timeout time.Duration) *Client {
	return NewClient(config.Payment{
		BaseURL:    baseURL,
		APIKey:     "sk_test_123",
		Currency:   "usd",
		SuccessURL: "http://localhost:3000/success",
		CancelURL:  "http://localhost:3000/cancel",
		Timeout:    timeout,
	})
}

func TestCreateCheckoutSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		body := createSessionRequest{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "usd", body.Currency)
		assert.True(t, body.Amount.Equal(decimal.RequireFromString("59.98")))

		json.NewEncoder(w).Encode(createSessionResponse{
			ID:  "cs_test_a1b2c3",
			URL: "https://pay.example.com/cs_test_a1b2c3",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 5*time.Second)
	session, err := client.CreateCheckoutSession(context.Background(), CreateSessionParams{
		Amount:     decimal.RequireFromString("59.98"),
		Currency:   "usd",
		SuccessURL: "http://localhost:3000/success",
		CancelURL:  "http://localhost:3000/cancel",
		Metadata:   map[string]string{"owner": "d41a1cb8-0000-0000-0000-000000000001"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_a1b2c3", session.ID)
	assert.Equal(t, "https://pay.example.com/cs_test_a1b2c3", session.RedirectURL)
}

func TestCreateCheckoutSessionTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 50*time.Millisecond)
	_, err := client.CreateCheckoutSession(context.Background(), CreateSessionParams{
		Amount:   decimal.RequireFromString("10.00"),
		Currency: "usd",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrProviderTimeout)
}

func TestCreateCheckoutSessionMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 5*time.Second)
	_, err := client.CreateCheckoutSession(context.Background(), CreateSessionParams{
		Amount:   decimal.RequireFromString("10.00"),
		Currency: "usd",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrProviderError)
}

func TestCreateCheckoutSessionUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 5*time.Second)
	_, err := client.CreateCheckoutSession(context.Background(), CreateSessionParams{
		Amount:   decimal.RequireFromString("10.00"),
		Currency: "usd",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrProviderError)
}

func TestGetSessionStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/checkout/sessions/cs_test_a1b2c3", r.URL.Path)
		json.NewEncoder(w).Encode(sessionStatusResponse{
			Status:        SessionStatusComplete,
			PaymentStatus: PaymentStatusPaid,
			AmountTotal:   decimal.RequireFromString("59.98"),
			Currency:      "usd",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 5*time.Second)
	status, err := client.GetSessionStatus(context.Background(), "cs_test_a1b2c3")
	require.NoError(t, err)
	assert.Equal(t, SessionStatusComplete, status.Status)
	assert.Equal(t, PaymentStatusPaid, status.PaymentStatus)
}

func TestGetSessionStatusNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 5*time.Second)
	_, err := client.GetSessionStatus(context.Background(), "cs_missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, inErr.ErrNotFound)
}
