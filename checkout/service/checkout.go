package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/commercelab/storefront/checkout/pkg/request"
	"github.com/commercelab/storefront/checkout/pkg/response"
	"github.com/commercelab/storefront/internal/cache"
	"github.com/commercelab/storefront/internal/config"
	"github.com/commercelab/storefront/internal/constants"
	inErr "github.com/commercelab/storefront/internal/errors"
	"github.com/commercelab/storefront/internal/identity"
	"github.com/commercelab/storefront/internal/log"
	inOtel "github.com/commercelab/storefront/internal/otel"
	"github.com/commercelab/storefront/internal/payment"
	"github.com/commercelab/storefront/internal/repository"
	orderResponse "github.com/commercelab/storefront/order/pkg/response"
)

type CheckoutService struct {
	pool     *pgxpool.Pool
	queries  *repository.Queries
	cache    *redis.Client
	provider payment.Provider
	config   config.Payment
}

func NewCheckoutService(
	pool *pgxpool.Pool,
	queries *repository.Queries,
	cache *redis.Client,
	provider payment.Provider,
	config config.Payment,
) CheckoutService {
	return CheckoutService{
		pool:     pool,
		queries:  queries,
		cache:    cache,
		provider: provider,
		config:   config,
	}
}

// sessionMetadata is the snapshot stored with the session at creation time.
// Materializing the order only reads this snapshot, never the live cart.
type sessionMetadata struct {
	Owner string                    `json:"owner"`
	Items []orderResponse.OrderItem `json:"items"`
}

type orderPaidEvent struct {
	OrderID           string `json:"orderId"`
	Owner             string `json:"owner"`
	ProviderSessionID string `json:"providerSessionId"`
	TotalAmount       string `json:"totalAmount"`
}

func (s CheckoutService) CreateSession(
	c context.Context,
	id identity.Identity,
	param request.CreateSession,
) (response.CheckoutSession, error) {
	c, span := inOtel.Tracer.Start(c, "CheckoutService CreateSession")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService CreateSession").
		Str(log.KeyIdentity, id.Owner()).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart").Logger()
	logger.Info().Msg("finding cart")
	cart, err := s.queries.FindCartByOwner(c, id.Owner())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = fmt.Errorf("owner=%s with error=%w", id.Owner(), inErr.ErrEmptyCart)
		} else {
			err = fmt.Errorf("failed finding cart with error=%w", err)
		}
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutSession{}, err
	}
	rows, err := s.queries.FindCartItems(c, cart.ID)
	if err != nil {
		err = fmt.Errorf("failed finding cart items with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutSession{}, err
	}
	if len(rows) == 0 {
		err = fmt.Errorf("owner=%s with error=%w", id.Owner(), inErr.ErrEmptyCart)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutSession{}, err
	}
	logger = logger.With().Int(log.KeyCartItems, len(rows)).Logger()
	logger.Info().Msg("found cart")

	logger = logger.With().Str(log.KeyProcess, "snapshotting cart").Logger()
	logger.Info().Msg("snapshotting cart")
	total := decimal.Zero
	metadata := sessionMetadata{Owner: id.Owner(), Items: make([]orderResponse.OrderItem, len(rows))}
	for i, row := range rows {
		if row.Stock < row.Quantity {
			err = fmt.Errorf(
				"product=%s requested quantity=%d exceeds stock=%d with error=%w",
				row.ProductName,
				row.Quantity,
				row.Stock,
				inErr.ErrOutOfStock,
			)
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.CheckoutSession{}, err
		}
		// Lines are charged at the catalog price current at checkout, not the
		// price recorded when the item was added.
		price := repository.DecimalFromNumeric(row.CurrentPrice)
		metadata.Items[i] = orderResponse.OrderItem{
			ProductID: row.ProductID,
			Name:      row.ProductName,
			Quantity:  row.Quantity,
			UnitPrice: price,
		}
		total = total.Add(price.Mul(decimal.NewFromInt32(row.Quantity)))
	}
	logger = logger.With().Str(log.KeyTotalAmount, total.String()).Logger()
	logger.Info().Msg("snapshotted cart")

	successURL := param.SuccessURL
	if successURL == "" {
		successURL = s.config.SuccessURL
	}
	cancelURL := param.CancelURL
	if cancelURL == "" {
		cancelURL = s.config.CancelURL
	}

	logger = logger.With().Str(log.KeyProcess, "creating provider session").Logger()
	logger.Info().Msg("creating provider session")
	c = logger.WithContext(c)
	session, err := s.provider.CreateCheckoutSession(c, payment.CreateSessionParams{
		Amount:     total,
		Currency:   s.config.Currency,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Metadata:   map[string]string{"owner": id.Owner()},
	})
	if err != nil {
		err = fmt.Errorf("failed creating provider session with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutSession{}, err
	}
	logger = logger.With().Str(log.KeyProviderSessionID, session.ID).Logger()
	logger.Info().Msg("created provider session")

	logger = logger.With().Str(log.KeyProcess, "inserting checkout session").Logger()
	logger.Info().Msg("inserting checkout session")
	marshaled, err := json.Marshal(metadata)
	if err != nil {
		err = fmt.Errorf("failed marshaling session metadata with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutSession{}, err
	}
	inserted, err := s.queries.InsertCheckoutSession(c, repository.InsertCheckoutSessionParams{
		ProviderSessionID: session.ID,
		Owner:             id.Owner(),
		Amount:            repository.NumericFromDecimal(total),
		Currency:          s.config.Currency,
		Metadata:          marshaled,
	})
	if err != nil {
		err = fmt.Errorf("failed inserting checkout session with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutSession{}, err
	}
	logger.Info().Msg("inserted checkout session")

	return response.CheckoutSession{
		ProviderSessionID: inserted.ProviderSessionID,
		RedirectURL:       session.RedirectURL,
		Amount:            total,
		Currency:          inserted.Currency,
		Status:            string(inserted.Status),
	}, nil
}

// GetStatus reconciles the session against the provider when it is still
// pending, then reports the local state. Polling and webhooks go through the
// same transition, so whichever arrives first wins and the other is a no-op.
func (s CheckoutService) GetStatus(
	c context.Context,
	id identity.Identity,
	providerSessionID string,
) (response.CheckoutStatus, error) {
	c, span := inOtel.Tracer.Start(c, "CheckoutService GetStatus")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService GetStatus").
		Str(log.KeyIdentity, id.Owner()).
		Str(log.KeyProviderSessionID, providerSessionID).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding checkout session").Logger()
	logger.Info().Msg("finding checkout session")
	session, err := s.queries.FindCheckoutSessionByProviderId(c, providerSessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = fmt.Errorf(
				"providerSessionId=%s with error=%w",
				providerSessionID,
				inErr.ErrNotFound,
			)
		} else {
			err = fmt.Errorf("failed finding checkout session with error=%w", err)
		}
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutStatus{}, err
	}
	if session.Owner != id.Owner() {
		err = fmt.Errorf(
			"providerSessionId=%s with error=%w",
			providerSessionID,
			inErr.ErrNotFound,
		)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutStatus{}, err
	}
	logger.Info().Msg("found checkout session")

	if session.Status == repository.CheckoutSessionStatusInitiated {
		logger = logger.With().Str(log.KeyProcess, "querying provider").Logger()
		logger.Info().Msg("querying provider")
		c = logger.WithContext(c)
		providerStatus, err := s.provider.GetSessionStatus(c, providerSessionID)
		if err != nil {
			err = fmt.Errorf("failed querying provider with error=%w", err)
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.CheckoutStatus{}, err
		}
		logger.Info().Msg("queried provider")

		session, err = s.reconcile(c, session, providerStatus)
		if err != nil && !errors.Is(err, inErr.ErrInsufficientStock) {
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.CheckoutStatus{}, err
		}
	}

	return s.statusResponse(c, session)
}

// HandleProviderEvent applies a webhook notification. Events for unknown
// sessions are rejected, unrecognized event types are acknowledged without a
// transition.
func (s CheckoutService) HandleProviderEvent(
	c context.Context,
	event payment.Event,
) (response.CheckoutStatus, error) {
	c, span := inOtel.Tracer.Start(c, "CheckoutService HandleProviderEvent")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService HandleProviderEvent").
		Str(log.KeyProviderSessionID, event.SessionID).
		Str("eventType", event.EventType).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding checkout session").Logger()
	logger.Info().Msg("finding checkout session")
	session, err := s.queries.FindCheckoutSessionByProviderId(c, event.SessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = fmt.Errorf("providerSessionId=%s with error=%w", event.SessionID, inErr.ErrNotFound)
		} else {
			err = fmt.Errorf("failed finding checkout session with error=%w", err)
		}
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutStatus{}, err
	}
	logger.Info().Msg("found checkout session")

	providerStatus := payment.SessionStatus{}
	switch event.EventType {
	case payment.EventCheckoutCompleted:
		providerStatus.Status = payment.SessionStatusComplete
		providerStatus.PaymentStatus = event.PaymentStatus
	case payment.EventCheckoutExpired:
		providerStatus.Status = payment.SessionStatusExpired
		providerStatus.PaymentStatus = payment.PaymentStatusUnpaid
	default:
		logger.Info().Msg("ignoring unrecognized event type")
		return s.statusResponse(c, session)
	}

	c = logger.WithContext(c)
	session, err = s.reconcile(c, session, providerStatus)
	if err != nil && !errors.Is(err, inErr.ErrInsufficientStock) {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutStatus{}, err
	}

	return s.statusResponse(c, session)
}

// reconcile moves the session toward the provider-reported outcome. A
// session already in a terminal state is returned as is, except when the
// provider reports paid against a session settled as anything other than
// paid.
func (s CheckoutService) reconcile(
	c context.Context,
	session repository.CheckoutSession,
	providerStatus payment.SessionStatus,
) (repository.CheckoutSession, error) {
	c, span := inOtel.Tracer.Start(c, "CheckoutService reconcile")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService reconcile").
		Str(log.KeyProviderSessionID, session.ProviderSessionID).
		Str(log.KeyPaymentStatus, providerStatus.PaymentStatus).
		Logger()

	if session.Status != repository.CheckoutSessionStatusInitiated {
		if providerStatus.PaymentStatus == payment.PaymentStatusPaid &&
			session.Status != repository.CheckoutSessionStatusPaid {
			// The provider collected money for a session we already settled
			// as expired or failed. Never materialize an order here; surface
			// it so someone reconciles the charge by hand.
			err := fmt.Errorf(
				"payment reported for session already %s with error=%w",
				session.Status,
				inErr.ErrProviderError,
			)
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return session, err
		}
		logger.Info().Msg("session already terminal")
		return session, nil
	}

	switch {
	case providerStatus.PaymentStatus == payment.PaymentStatusPaid:
		c = logger.WithContext(c)
		return s.applyPaid(c, session)
	case providerStatus.Status == payment.SessionStatusExpired:
		logger = logger.With().Str(log.KeyProcess, "expiring session").Logger()
		logger.Info().Msg("expiring session")
		expired, err := s.queries.TransitionCheckoutSession(
			c,
			repository.TransitionCheckoutSessionParams{
				ProviderSessionID: session.ProviderSessionID,
				Status:            repository.CheckoutSessionStatusExpired,
			},
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Lost the race against another transition, report whatever won.
				return s.queries.FindCheckoutSessionByProviderId(c, session.ProviderSessionID)
			}
			err = fmt.Errorf("failed expiring session with error=%w", err)
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return session, err
		}
		logger.Info().Msg("expired session")
		return expired, nil
	default:
		logger.Info().Msg("session still pending at provider")
		return session, nil
	}
}

// applyPaid performs the single paid transition: CAS the session, decrement
// stock, materialize the order and clear the cart in one transaction. Replays
// land on the CAS returning no rows and read back the already-applied state.
func (s CheckoutService) applyPaid(
	c context.Context,
	session repository.CheckoutSession,
) (repository.CheckoutSession, error) {
	c, span := inOtel.Tracer.Start(c, "CheckoutService applyPaid")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService applyPaid").
		Str(log.KeyProviderSessionID, session.ProviderSessionID).
		Str(log.KeyIdentity, session.Owner).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "initializing transaction").Logger()
	logger.Info().Msg("initializing transaction")
	tx, err := s.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		err = fmt.Errorf("failed initializing transaction with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return session, err
	}
	defer func(lg zerolog.Logger) {
		rollbackErr := tx.Rollback(c)
		if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			rollbackErr = fmt.Errorf("failed rolling back transaction with error=%w", rollbackErr)
			inOtel.RecordError(rollbackErr, span)
			lg.Error().Err(rollbackErr).Msg(rollbackErr.Error())
		}
	}(logger)
	logger.Info().Msg("initialized transaction")

	qtx := s.queries.WithTx(tx)

	logger = logger.With().Str(log.KeyProcess, "transitioning session to paid").Logger()
	logger.Info().Msg("transitioning session to paid")
	paid, err := qtx.TransitionCheckoutSession(c, repository.TransitionCheckoutSessionParams{
		ProviderSessionID: session.ProviderSessionID,
		Status:            repository.CheckoutSessionStatusPaid,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Info().Msg("session already transitioned, replay is a no-op")
			return s.queries.FindCheckoutSessionByProviderId(c, session.ProviderSessionID)
		}
		err = fmt.Errorf("failed transitioning session with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return session, err
	}
	logger.Info().Msg("transitioned session to paid")

	logger = logger.With().Str(log.KeyProcess, "unmarshaling session metadata").Logger()
	logger.Info().Msg("unmarshaling session metadata")
	metadata := sessionMetadata{}
	if err := json.Unmarshal(paid.Metadata, &metadata); err != nil {
		err = fmt.Errorf("failed unmarshaling session metadata with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return session, err
	}
	logger.Info().Msg("unmarshaled session metadata")

	logger = logger.With().Str(log.KeyProcess, "decrementing stock").Logger()
	logger.Info().Msg("decrementing stock")
	for _, item := range metadata.Items {
		rows, err := qtx.DecrementProductStock(c, repository.DecrementProductStockParams{
			ID:       item.ProductID,
			Quantity: item.Quantity,
		})
		if err != nil {
			err = fmt.Errorf("failed decrementing stock with error=%w", err)
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return session, err
		}
		if rows == 0 {
			// Payment is collected but the goods ran out underneath the
			// session. Roll back, flag the session for manual handling and
			// leave the cart untouched.
			err = fmt.Errorf(
				"productId=%s quantity=%d with error=%w",
				item.ProductID.String(),
				item.Quantity,
				inErr.ErrInsufficientStock,
			)
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())

			if rollbackErr := tx.Rollback(c); rollbackErr != nil {
				inOtel.RecordError(rollbackErr, span)
				logger.Error().Err(rollbackErr).Msg(rollbackErr.Error())
			}
			if _, flagErr := s.queries.FlagCheckoutSessionForReview(c, session.ProviderSessionID); flagErr != nil {
				flagErr = fmt.Errorf("failed flagging session for review with error=%w", flagErr)
				inOtel.RecordError(flagErr, span)
				logger.Error().Err(flagErr).Msg(flagErr.Error())
			}
			flagged, findErr := s.queries.FindCheckoutSessionByProviderId(
				c,
				session.ProviderSessionID,
			)
			if findErr != nil {
				return session, err
			}
			return flagged, err
		}
	}
	logger.Info().Msg("decremented stock")

	logger = logger.With().Str(log.KeyProcess, "inserting order").Logger()
	logger.Info().Msg("inserting order")
	items, err := json.Marshal(metadata.Items)
	if err != nil {
		err = fmt.Errorf("failed marshaling order items with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return session, err
	}
	order, err := qtx.InsertOrder(c, repository.InsertOrderParams{
		Owner:             paid.Owner,
		ProviderSessionID: paid.ProviderSessionID,
		Items:             items,
		TotalAmount:       paid.Amount,
		PaymentStatus:     repository.PaymentStatusPaid,
	})
	if err != nil {
		err = fmt.Errorf("failed inserting order with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return session, err
	}
	logger = logger.With().Str(log.KeyOrderID, order.ID.String()).Logger()
	logger.Info().Msg("inserted order")

	logger = logger.With().Str(log.KeyProcess, "clearing cart").Logger()
	logger.Info().Msg("clearing cart")
	if _, err := qtx.DeleteCartItemsByOwner(c, paid.Owner); err != nil {
		err = fmt.Errorf("failed clearing cart with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return session, err
	}
	logger.Info().Msg("cleared cart")

	logger = logger.With().Str(log.KeyProcess, "committing transaction").Logger()
	logger.Info().Msg("committing transaction")
	if err := tx.Commit(c); err != nil {
		err = fmt.Errorf("failed committing transaction with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return session, err
	}
	logger.Info().Msg("committed transaction")

	cacheKey := fmt.Sprintf(cache.KeyCartByOwner, paid.Owner)
	logger = logger.With().
		Str(log.KeyProcess, "deleting cart from cache").
		Str(log.KeyCacheKey, cacheKey).
		Logger()
	logger.Info().Msg("deleting cart from cache")
	if err := s.cache.Del(c, cacheKey).Err(); err != nil {
		err = fmt.Errorf("failed deleting cart from cache with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
	} else {
		logger.Info().Msg("deleted cart from cache")
	}

	logger = logger.With().Str(log.KeyProcess, "publishing order paid event").Logger()
	logger.Info().Msg("publishing order paid event")
	payload, err := json.Marshal(orderPaidEvent{
		OrderID:           order.ID.String(),
		Owner:             order.Owner,
		ProviderSessionID: order.ProviderSessionID,
		TotalAmount:       repository.DecimalFromNumeric(order.TotalAmount).String(),
	})
	if err != nil {
		err = fmt.Errorf("failed marshaling order paid event with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
	} else if err := s.cache.Publish(c, constants.ChannelOrderPaid, payload).Err(); err != nil {
		err = fmt.Errorf("failed publishing order paid event with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
	} else {
		logger.Info().Msg("published order paid event")
	}

	return paid, nil
}

func (s CheckoutService) statusResponse(
	c context.Context,
	session repository.CheckoutSession,
) (response.CheckoutStatus, error) {
	status := response.CheckoutStatus{
		ProviderSessionID: session.ProviderSessionID,
		Status:            string(session.Status),
		NeedsReview:       session.NeedsReview,
	}
	if session.Status != repository.CheckoutSessionStatusPaid {
		return status, nil
	}
	order, err := s.queries.FindOrderByProviderSessionId(c, session.ProviderSessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return status, nil
		}
		return status, fmt.Errorf("failed finding order with error=%w", err)
	}
	status.OrderID = &order.ID
	return status, nil
}
