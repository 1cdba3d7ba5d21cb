package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	inErr "github.com/commercelab/storefront/internal/errors"
	"github.com/commercelab/storefront/internal/identity"
	"github.com/commercelab/storefront/internal/log"
	inOtel "github.com/commercelab/storefront/internal/otel"
	"github.com/commercelab/storefront/internal/repository"
	"github.com/commercelab/storefront/order/pkg/response"
)

type OrderService struct {
	queries *repository.Queries
	cache   *redis.Client
}

func NewOrderService(queries *repository.Queries, cache *redis.Client) OrderService {
	return OrderService{queries: queries, cache: cache}
}

func (s OrderService) FindOrders(
	c context.Context,
	id identity.Identity,
) ([]response.Order, error) {
	c, span := inOtel.Tracer.Start(c, "OrderService FindOrders")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderService FindOrders").
		Str(log.KeyIdentity, id.Owner()).
		Logger()

	if id.IsZero() {
		err := fmt.Errorf("failed resolving identity with error=%w", inErr.ErrUnauthorized)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	logger = logger.With().Str(log.KeyProcess, "finding orders").Logger()
	logger.Info().Msg("finding orders")
	orders, err := s.queries.FindOrdersByOwner(c, id.Owner())
	if err != nil {
		err = fmt.Errorf("failed finding orders with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger = logger.With().Int(log.KeyOrders, len(orders)).Logger()
	logger.Info().Msg("found orders")

	logger = logger.With().Str(log.KeyProcess, "mapping orders").Logger()
	logger.Info().Msg("mapping orders")
	mapped := make([]response.Order, len(orders))
	for i, order := range orders {
		mapped[i], err = order.Response()
		if err != nil {
			err = fmt.Errorf("failed mapping orderId=%s with error=%w", order.ID.String(), err)
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return nil, err
		}
	}
	logger.Info().Msg("mapped orders")

	return mapped, nil
}
