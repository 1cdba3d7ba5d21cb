package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/commercelab/storefront/cart/pkg/request"
	"github.com/commercelab/storefront/cart/pkg/response"
	"github.com/commercelab/storefront/internal/cache"
	inErr "github.com/commercelab/storefront/internal/errors"
	"github.com/commercelab/storefront/internal/identity"
	"github.com/commercelab/storefront/internal/log"
	inOtel "github.com/commercelab/storefront/internal/otel"
	"github.com/commercelab/storefront/internal/repository"
)

type CartService struct {
	pool    *pgxpool.Pool
	queries *repository.Queries
	cache   *redis.Client
}

func NewCartService(
	pool *pgxpool.Pool,
	queries *repository.Queries,
	cache *redis.Client,
) CartService {
	return CartService{pool: pool, queries: queries, cache: cache}
}

func (s CartService) AddItem(
	c context.Context,
	id identity.Identity,
	param request.AddCartItem,
) (response.Cart, error) {
	c, span := inOtel.Tracer.Start(c, "CartService AddItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService AddItem").
		Str(log.KeyIdentity, id.Owner()).
		Str(log.KeyProductID, param.ProductID.String()).
		Int32(log.KeyQuantity, param.Quantity).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding product").Logger()
	logger.Info().Msg("finding product")
	product, err := s.queries.FindProductById(c, param.ProductID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = fmt.Errorf(
				"productId=%s with error=%w",
				param.ProductID.String(),
				inErr.ErrNotFound,
			)
		} else {
			err = fmt.Errorf("failed finding product with error=%w", err)
		}
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("found product")

	logger = logger.With().Str(log.KeyProcess, "checking stock").Logger()
	logger.Info().Msg("checking stock")
	if product.Stock <= 0 {
		err = fmt.Errorf("productId=%s with error=%w", param.ProductID.String(), inErr.ErrOutOfStock)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("checked stock")

	logger = logger.With().Str(log.KeyProcess, "upserting cart").Logger()
	logger.Info().Msg("upserting cart")
	cart, err := s.queries.UpsertCart(c, id.Owner())
	if err != nil {
		err = fmt.Errorf("failed upserting cart with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger = logger.With().Str(log.KeyCart, cart.ID.String()).Logger()
	logger.Info().Msg("upserted cart")

	logger = logger.With().Str(log.KeyProcess, "checking merged quantity").Logger()
	logger.Info().Msg("checking merged quantity")
	items, err := s.queries.FindCartItems(c, cart.ID)
	if err != nil {
		err = fmt.Errorf("failed finding cart items with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	existing := int32(0)
	for _, item := range items {
		if item.ProductID == param.ProductID {
			existing = item.Quantity
			break
		}
	}
	if existing+param.Quantity > product.Stock {
		err = fmt.Errorf(
			"requested quantity=%d exceeds stock=%d with error=%w",
			existing+param.Quantity,
			product.Stock,
			inErr.ErrInsufficientStock,
		)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("checked merged quantity")

	logger = logger.With().Str(log.KeyProcess, "upserting cart item").Logger()
	logger.Info().Msg("upserting cart item")
	_, err = s.queries.UpsertCartItem(c, repository.UpsertCartItemParams{
		CartID:    cart.ID,
		ProductID: param.ProductID,
		Quantity:  param.Quantity,
		Price:     product.Price,
	})
	if err != nil {
		err = fmt.Errorf("failed upserting cart item with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("upserted cart item")

	s.invalidate(c, id, logger)

	c = logger.WithContext(c)
	return s.FindCart(c, id)
}

func (s CartService) UpdateItem(
	c context.Context,
	id identity.Identity,
	itemID uuid.UUID,
	param request.UpdateCartItem,
) (response.Cart, error) {
	c, span := inOtel.Tracer.Start(c, "CartService UpdateItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService UpdateItem").
		Str(log.KeyIdentity, id.Owner()).
		Str(log.KeyCartItemID, itemID.String()).
		Int32(log.KeyQuantity, param.Quantity).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart item").Logger()
	logger.Info().Msg("finding cart item")
	item, err := s.ownedItem(c, id, itemID)
	if err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("found cart item")

	// Updating to zero or below removes the line.
	if param.Quantity <= 0 {
		c = logger.WithContext(c)
		return s.RemoveItem(c, id, itemID)
	}

	logger = logger.With().Str(log.KeyProcess, "checking stock").Logger()
	logger.Info().Msg("checking stock")
	product, err := s.queries.FindProductById(c, item.ProductID)
	if err != nil {
		err = fmt.Errorf("failed finding product with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	if param.Quantity > product.Stock {
		err = fmt.Errorf(
			"requested quantity=%d exceeds stock=%d with error=%w",
			param.Quantity,
			product.Stock,
			inErr.ErrInsufficientStock,
		)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("checked stock")

	logger = logger.With().Str(log.KeyProcess, "updating cart item quantity").Logger()
	logger.Info().Msg("updating cart item quantity")
	rows, err := s.queries.UpdateCartItemQuantity(c, repository.UpdateCartItemQuantityParams{
		ID:       itemID,
		Quantity: param.Quantity,
	})
	if err != nil {
		err = fmt.Errorf("failed updating cart item quantity with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	if rows == 0 {
		err = fmt.Errorf("cartItemId=%s with error=%w", itemID.String(), inErr.ErrNotFound)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("updated cart item quantity")

	s.invalidate(c, id, logger)

	c = logger.WithContext(c)
	return s.FindCart(c, id)
}

func (s CartService) RemoveItem(
	c context.Context,
	id identity.Identity,
	itemID uuid.UUID,
) (response.Cart, error) {
	c, span := inOtel.Tracer.Start(c, "CartService RemoveItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService RemoveItem").
		Str(log.KeyIdentity, id.Owner()).
		Str(log.KeyCartItemID, itemID.String()).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart item").Logger()
	logger.Info().Msg("finding cart item")
	_, err := s.ownedItem(c, id, itemID)
	if err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("found cart item")

	logger = logger.With().Str(log.KeyProcess, "deleting cart item").Logger()
	logger.Info().Msg("deleting cart item")
	rows, err := s.queries.DeleteCartItem(c, itemID)
	if err != nil {
		err = fmt.Errorf("failed deleting cart item with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	if rows == 0 {
		err = fmt.Errorf("cartItemId=%s with error=%w", itemID.String(), inErr.ErrNotFound)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("deleted cart item")

	s.invalidate(c, id, logger)

	c = logger.WithContext(c)
	return s.FindCart(c, id)
}

func (s CartService) FindCart(
	c context.Context,
	id identity.Identity,
) (cart response.Cart, err error) {
	c, span := inOtel.Tracer.Start(c, "CartService FindCart")
	defer span.End()

	cacheKey := fmt.Sprintf(cache.KeyCartByOwner, id.Owner())

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService FindCart").
		Str(log.KeyIdentity, id.Owner()).
		Str(log.KeyCacheKey, cacheKey).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart in cache").Logger()
	logger.Info().Msg("finding cart in cache")
	jsonCache, err := s.cache.Get(c, cacheKey).Result()
	if err == nil {
		logger.Info().Msg("found cart in cache")
		if err = json.Unmarshal([]byte(jsonCache), &cart); err == nil {
			return cart, nil
		}
		err = fmt.Errorf("failed unmarshaling cached cart with error=%w", err)
		logger.Info().Err(err).Msg(err.Error())
	} else {
		logger.Info().Err(err).Msg("cart not in cache")
	}

	logger = logger.With().Str(log.KeyProcess, "finding cart in db").Logger()
	logger.Info().Msg("finding cart in db")
	dbCart, err := s.queries.FindCartByOwner(c, id.Owner())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return emptyCart(), nil
		}
		err = fmt.Errorf("failed finding cart in db with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	rows, err := s.queries.FindCartItems(c, dbCart.ID)
	if err != nil {
		err = fmt.Errorf("failed finding cart items with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	cart = cartFromRows(rows)
	logger.Info().
		Int32(log.KeyQuantity, cart.ItemsCount).
		Str(log.KeyTotalAmount, cart.TotalAmount.String()).
		Msg("found cart in db")

	logger = logger.With().Str(log.KeyProcess, "inserting cart to cache").Logger()
	logger.Info().Msg("inserting cart to cache")
	marshaled, err := json.Marshal(cart)
	if err != nil {
		err = fmt.Errorf("failed marshaling cart with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	if err = s.cache.Set(c, cacheKey, marshaled, time.Hour).Err(); err != nil {
		err = fmt.Errorf("failed inserting cart to cache with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("inserted cart to cache")

	return cart, nil
}

// ownedItem loads the item and rejects it when it does not belong to the
// caller's cart, so one owner can never touch another owner's lines.
func (s CartService) ownedItem(
	c context.Context,
	id identity.Identity,
	itemID uuid.UUID,
) (repository.CartItem, error) {
	item, err := s.queries.FindCartItemById(c, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.CartItem{}, fmt.Errorf(
				"cartItemId=%s with error=%w",
				itemID.String(),
				inErr.ErrNotFound,
			)
		}
		return repository.CartItem{}, fmt.Errorf("failed finding cart item with error=%w", err)
	}
	cart, err := s.queries.FindCartByOwner(c, id.Owner())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.CartItem{}, fmt.Errorf(
				"cartItemId=%s with error=%w",
				itemID.String(),
				inErr.ErrNotFound,
			)
		}
		return repository.CartItem{}, fmt.Errorf("failed finding cart with error=%w", err)
	}
	if item.CartID != cart.ID {
		return repository.CartItem{}, fmt.Errorf(
			"cartItemId=%s with error=%w",
			itemID.String(),
			inErr.ErrNotFound,
		)
	}
	return item, nil
}

func (s CartService) invalidate(c context.Context, id identity.Identity, logger zerolog.Logger) {
	cacheKey := fmt.Sprintf(cache.KeyCartByOwner, id.Owner())
	logger = logger.With().
		Str(log.KeyProcess, "deleting cart from cache").
		Str(log.KeyCacheKey, cacheKey).
		Logger()
	logger.Info().Msg("deleting cart from cache")
	if err := s.cache.Del(c, cacheKey).Err(); err != nil {
		err = fmt.Errorf("failed deleting cart from cache with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	logger.Info().Msg("deleted cart from cache")
}

func cartFromRows(rows []repository.FindCartItemsRow) response.Cart {
	cart := emptyCart()
	for _, row := range rows {
		item := row.Response()
		cart.Items = append(cart.Items, item)
		cart.ItemsCount += item.Quantity
		cart.TotalAmount = cart.TotalAmount.Add(item.Subtotal)
	}
	return cart
}

func emptyCart() response.Cart {
	return response.Cart{Items: []response.CartItem{}, TotalAmount: decimal.Zero}
}
