package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/commercelab/storefront/internal/config"
	inErr "github.com/commercelab/storefront/internal/errors"
	inHttp "github.com/commercelab/storefront/internal/http"
	"github.com/commercelab/storefront/internal/log"
	inOtel "github.com/commercelab/storefront/internal/otel"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Client struct {
	http   *http.Client
	config config.Payment
}

// NewClient returns a Provider backed by the hosted checkout's REST API.
// The underlying http.Client carries the configured timeout so a stalled
// provider never stalls a storefront request for longer than that.
func NewClient(cfg config.Payment) *Client {
	return &Client{
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
		config: cfg,
	}
}

type createSessionRequest struct {
	Amount     decimal.Decimal   `json:"amount"`
	Currency   string            `json:"currency"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type createSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type sessionStatusResponse struct {
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	AmountTotal   decimal.Decimal `json:"amount_total"`
	Currency      string          `json:"currency"`
}

func (p *Client) CreateCheckoutSession(c context.Context, param CreateSessionParams) (Session, error) {
	c, span := inOtel.Tracer.Start(c, "Client CreateCheckoutSession")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Client CreateCheckoutSession").
		Str(log.KeyProcess, "creating provider session").
		Logger()

	logger.Info().Msg("marshaling create session request")
	body, err := json.Marshal(createSessionRequest{
		Amount:     param.Amount,
		Currency:   param.Currency,
		SuccessURL: param.SuccessURL,
		CancelURL:  param.CancelURL,
		Metadata:   param.Metadata,
	})
	if err != nil {
		err = fmt.Errorf("failed marshaling create session request with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Session{}, err
	}
	logger.Info().Msg("marshaled create session request")

	endpoint := p.config.BaseURL + "/v1/checkout/sessions"
	logger.Info().Str(log.KeyEndpoint, endpoint).Msg("sending create session request")
	req, err := http.NewRequestWithContext(c, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		err = fmt.Errorf("failed creating request with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Session{}, err
	}
	req.Header.Set(inHttp.HeaderContentType, inHttp.HeaderValueJson)
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.http.Do(req)
	if err != nil {
		err = providerError("create session", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Session{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err = fmt.Errorf("provider returned status=%d with error=%w", resp.StatusCode, inErr.ErrProviderError)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Session{}, err
	}
	logger.Info().Msg("sent create session request")

	logger = logger.With().Str(log.KeyProcess, "decoding provider response").Logger()
	logger.Info().Msg("decoding provider response")
	created := createSessionResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		err = fmt.Errorf("failed decoding provider response with error=%w", errors.Join(err, inErr.ErrProviderError))
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Session{}, err
	}
	if created.ID == "" || created.URL == "" {
		err = fmt.Errorf("provider response missing id or url with error=%w", inErr.ErrProviderError)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Session{}, err
	}
	logger.Info().Str(log.KeyProviderSessionID, created.ID).Msg("decoded provider response")

	return Session{ID: created.ID, RedirectURL: created.URL}, nil
}

func (p *Client) GetSessionStatus(c context.Context, providerSessionID string) (SessionStatus, error) {
	c, span := inOtel.Tracer.Start(c, "Client GetSessionStatus")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Client GetSessionStatus").
		Str(log.KeyProcess, "retrieving provider session").
		Str(log.KeyProviderSessionID, providerSessionID).
		Logger()

	endpoint := p.config.BaseURL + "/v1/checkout/sessions/" + url.PathEscape(providerSessionID)
	logger.Info().Str(log.KeyEndpoint, endpoint).Msg("sending session status request")
	req, err := http.NewRequestWithContext(c, http.MethodGet, endpoint, nil)
	if err != nil {
		err = fmt.Errorf("failed creating request with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return SessionStatus{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.http.Do(req)
	if err != nil {
		err = providerError("session status", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return SessionStatus{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		err = fmt.Errorf("provider session=%s with error=%w", providerSessionID, inErr.ErrNotFound)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return SessionStatus{}, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err = fmt.Errorf("provider returned status=%d with error=%w", resp.StatusCode, inErr.ErrProviderError)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return SessionStatus{}, err
	}
	logger.Info().Msg("sent session status request")

	logger = logger.With().Str(log.KeyProcess, "decoding provider response").Logger()
	logger.Info().Msg("decoding provider response")
	status := sessionStatusResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		err = fmt.Errorf("failed decoding provider response with error=%w", errors.Join(err, inErr.ErrProviderError))
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return SessionStatus{}, err
	}
	logger.Info().
		Str("status", status.Status).
		Str("paymentStatus", status.PaymentStatus).
		Msg("decoded provider response")

	return SessionStatus{
		Status:        status.Status,
		PaymentStatus: status.PaymentStatus,
		AmountTotal:   status.AmountTotal,
		Currency:      status.Currency,
	}, nil
}

// providerError distinguishes a deadline overrun from every other transport
// failure so callers can surface retryable timeouts separately.
func providerError(op string, err error) error {
	urlErr := &url.Error{}
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("failed %s with error=%w", op, errors.Join(err, inErr.ErrProviderTimeout))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed %s with error=%w", op, errors.Join(err, inErr.ErrProviderTimeout))
	}
	return fmt.Errorf("failed %s with error=%w", op, errors.Join(err, inErr.ErrProviderError))
}
