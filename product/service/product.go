package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/commercelab/storefront/internal/cache"
	inErr "github.com/commercelab/storefront/internal/errors"
	"github.com/commercelab/storefront/internal/log"
	inOtel "github.com/commercelab/storefront/internal/otel"
	"github.com/commercelab/storefront/internal/repository"
	"github.com/commercelab/storefront/product/pkg/request"
	"github.com/commercelab/storefront/product/pkg/response"
)

type ProductService struct {
	queries *repository.Queries
	cache   *redis.Client
}

func NewProductService(queries *repository.Queries, cache *redis.Client) ProductService {
	return ProductService{queries: queries, cache: cache}
}

func (s ProductService) FindProducts(
	c context.Context,
	param request.FindProducts,
) (products []response.Product, err error) {
	c, span := inOtel.Tracer.Start(c, "ProductService FindProducts")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ProductService FindProducts").
		Str("category", param.Category).
		Str("search", param.Search).
		Logger()

	// Only the unfiltered listing is cached, filtered results hit the
	// database every time.
	cacheable := param.Category == "" && param.Search == ""
	if cacheable {
		logger = logger.With().Str(log.KeyProcess, "finding products in cache").Logger()
		logger.Info().Msg("finding products in cache")
		jsonCache, err := s.cache.Get(c, cache.KeyProducts).Result()
		if err == nil {
			if err = json.Unmarshal([]byte(jsonCache), &products); err == nil {
				logger.Info().Msg("found products in cache")
				return products, nil
			}
			logger.Info().Err(err).Msg("failed unmarshaling cached products")
		} else {
			logger.Info().Err(err).Msg("products not in cache")
		}
	}

	logger = logger.With().Str(log.KeyProcess, "finding products in db").Logger()
	logger.Info().Msg("finding products in db")
	arg := repository.FindProductsParams{}
	if param.Category != "" {
		arg.Category = &param.Category
	}
	if param.Search != "" {
		arg.Search = &param.Search
	}
	rows, err := s.queries.FindProducts(c, arg)
	if err != nil {
		err = fmt.Errorf("failed finding products with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	products = make([]response.Product, len(rows))
	for i, row := range rows {
		products[i] = row.Response()
	}
	logger.Info().Msgf("found %d products in db", len(products))

	if cacheable {
		logger = logger.With().Str(log.KeyProcess, "inserting products to cache").Logger()
		logger.Info().Msg("inserting products to cache")
		marshaled, err := json.Marshal(products)
		if err != nil {
			err = fmt.Errorf("failed marshaling products with error=%w", err)
			logger.Error().Err(err).Msg(err.Error())
			return products, nil
		}
		if err := s.cache.Set(c, cache.KeyProducts, marshaled, 15*time.Minute).Err(); err != nil {
			err = fmt.Errorf("failed inserting products to cache with error=%w", err)
			logger.Error().Err(err).Msg(err.Error())
			return products, nil
		}
		logger.Info().Msg("inserted products to cache")
	}

	return products, nil
}

func (s ProductService) FindProductById(
	c context.Context,
	productID uuid.UUID,
) (product response.Product, err error) {
	c, span := inOtel.Tracer.Start(c, "ProductService FindProductById")
	defer span.End()

	cacheKey := fmt.Sprintf(cache.KeyProductByID, productID.String())

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ProductService FindProductById").
		Str(log.KeyProductID, productID.String()).
		Str(log.KeyCacheKey, cacheKey).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding product in cache").Logger()
	logger.Info().Msg("finding product in cache")
	jsonCache, err := s.cache.Get(c, cacheKey).Result()
	if err == nil {
		if err = json.Unmarshal([]byte(jsonCache), &product); err == nil {
			logger.Info().Msg("found product in cache")
			return product, nil
		}
		logger.Info().Err(err).Msg("failed unmarshaling cached product")
	} else {
		logger.Info().Err(err).Msg("product not in cache")
	}

	logger = logger.With().Str(log.KeyProcess, "finding product in db").Logger()
	logger.Info().Msg("finding product in db")
	row, err := s.queries.FindProductById(c, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = fmt.Errorf("productId=%s with error=%w", productID.String(), inErr.ErrNotFound)
		} else {
			err = fmt.Errorf("failed finding product with error=%w", err)
		}
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}
	product = row.Response()
	logger.Info().Msg("found product in db")

	logger = logger.With().Str(log.KeyProcess, "inserting product to cache").Logger()
	logger.Info().Msg("inserting product to cache")
	marshaled, err := json.Marshal(product)
	if err != nil {
		err = fmt.Errorf("failed marshaling product with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return product, nil
	}
	if err := s.cache.Set(c, cacheKey, marshaled, time.Hour).Err(); err != nil {
		err = fmt.Errorf("failed inserting product to cache with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return product, nil
	}
	logger.Info().Msg("inserted product to cache")

	return product, nil
}

func (s ProductService) FindCategories(c context.Context) ([]string, error) {
	c, span := inOtel.Tracer.Start(c, "ProductService FindCategories")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ProductService FindCategories").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding categories in cache").Logger()
	logger.Info().Msg("finding categories in cache")
	categories := []string{}
	jsonCache, err := s.cache.Get(c, cache.KeyCategories).Result()
	if err == nil {
		if err = json.Unmarshal([]byte(jsonCache), &categories); err == nil {
			logger.Info().Msg("found categories in cache")
			return categories, nil
		}
		logger.Info().Err(err).Msg("failed unmarshaling cached categories")
	} else {
		logger.Info().Err(err).Msg("categories not in cache")
	}

	logger = logger.With().Str(log.KeyProcess, "finding categories in db").Logger()
	logger.Info().Msg("finding categories in db")
	categories, err = s.queries.FindCategories(c)
	if err != nil {
		err = fmt.Errorf("failed finding categories with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Msgf("found %d categories in db", len(categories))

	logger = logger.With().Str(log.KeyProcess, "inserting categories to cache").Logger()
	logger.Info().Msg("inserting categories to cache")
	marshaled, err := json.Marshal(categories)
	if err != nil {
		err = fmt.Errorf("failed marshaling categories with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return categories, nil
	}
	if err := s.cache.Set(c, cache.KeyCategories, marshaled, time.Hour).Err(); err != nil {
		err = fmt.Errorf("failed inserting categories to cache with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return categories, nil
	}
	logger.Info().Msg("inserted categories to cache")

	return categories, nil
}

func (s ProductService) InsertProduct(
	c context.Context,
	param request.InsertProduct,
) (response.Product, error) {
	c, span := inOtel.Tracer.Start(c, "ProductService InsertProduct")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ProductService InsertProduct").
		Str(log.KeyProduct, param.Name).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "inserting product").Logger()
	logger.Info().Msg("inserting product")
	inserted, err := s.queries.InsertProduct(c, repository.InsertProductParams{
		Name:        param.Name,
		Description: param.Description,
		Price:       repository.NumericFromDecimal(param.Price),
		Category:    param.Category,
		ImageUrl:    param.ImageUrl,
		Stock:       param.Stock,
	})
	if err != nil {
		err = fmt.Errorf("failed inserting product with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}
	logger = logger.With().Str(log.KeyProductID, inserted.ID.String()).Logger()
	logger.Info().Msg("inserted product")

	logger = logger.With().Str(log.KeyProcess, "deleting product listings from cache").Logger()
	logger.Info().Msg("deleting product listings from cache")
	if err := s.cache.Del(c, cache.KeyProducts, cache.KeyCategories).Err(); err != nil {
		err = fmt.Errorf("failed deleting product listings from cache with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
	} else {
		logger.Info().Msg("deleted product listings from cache")
	}

	return inserted.Response(), nil
}
