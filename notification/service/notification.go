package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/commercelab/storefront/internal/constants"
	"github.com/commercelab/storefront/internal/log"
	inOtel "github.com/commercelab/storefront/internal/otel"
)

type NotificationService struct {
	cache *redis.Client
}

func NewNotificationService(cache *redis.Client) NotificationService {
	return NotificationService{cache: cache}
}

type orderPaidEvent struct {
	OrderID           string `json:"orderId"`
	Owner             string `json:"owner"`
	ProviderSessionID string `json:"providerSessionId"`
	TotalAmount       string `json:"totalAmount"`
}

// ListenOrderPaid consumes paid-order events and dispatches order
// confirmations. It blocks until the context is canceled.
func (s NotificationService) ListenOrderPaid(c context.Context) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "NotificationService ListenOrderPaid").
		Str("channel", constants.ChannelOrderPaid).
		Logger()

	logger.Info().Msg("subscribing to channel")
	sub := s.cache.Subscribe(c, constants.ChannelOrderPaid)
	defer sub.Close()
	if _, err := sub.Receive(c); err != nil {
		err = fmt.Errorf("failed subscribing to channel with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("subscribed to channel")

	messages := sub.Channel()
	for {
		select {
		case <-c.Done():
			logger.Info().Msg("context canceled, stopping listener")
			return c.Err()
		case message, ok := <-messages:
			if !ok {
				logger.Info().Msg("subscription closed")
				return nil
			}
			s.handleMessage(c, message.Payload)
		}
	}
}

func (s NotificationService) handleMessage(c context.Context, payload string) {
	c, span := inOtel.Tracer.Start(c, "NotificationService handleMessage")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "NotificationService handleMessage").
		Str(log.KeyProcess, "decoding event").
		Logger()

	logger.Info().Msg("decoding event")
	event := orderPaidEvent{}
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		err = fmt.Errorf("failed decoding event with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	logger = logger.With().
		Str(log.KeyOrderID, event.OrderID).
		Str(log.KeyIdentity, event.Owner).
		Str(log.KeyProviderSessionID, event.ProviderSessionID).
		Str(log.KeyTotalAmount, event.TotalAmount).
		Logger()
	logger.Info().Msg("decoded event")

	// Delivery channel integration (email, push) plugs in here. For now the
	// confirmation is recorded in the log stream.
	logger = logger.With().Str(log.KeyProcess, "sending order confirmation").Logger()
	logger.Info().Msg("sending order confirmation")
	logger.Info().Msg("sent order confirmation")
}
