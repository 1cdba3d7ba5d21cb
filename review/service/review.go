package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/commercelab/storefront/internal/cache"
	inErr "github.com/commercelab/storefront/internal/errors"
	"github.com/commercelab/storefront/internal/identity"
	"github.com/commercelab/storefront/internal/log"
	inOtel "github.com/commercelab/storefront/internal/otel"
	"github.com/commercelab/storefront/internal/repository"
	"github.com/commercelab/storefront/review/pkg/request"
	"github.com/commercelab/storefront/review/pkg/response"
)

type ReviewService struct {
	pool    *pgxpool.Pool
	queries *repository.Queries
	cache   *redis.Client
}

func NewReviewService(
	pool *pgxpool.Pool,
	queries *repository.Queries,
	cache *redis.Client,
) ReviewService {
	return ReviewService{pool: pool, queries: queries, cache: cache}
}

// InsertReview stores the review and refreshes the product's denormalized
// rating in the same transaction.
func (s ReviewService) InsertReview(
	c context.Context,
	id identity.Identity,
	productID uuid.UUID,
	param request.InsertReview,
) (response.Review, error) {
	c, span := inOtel.Tracer.Start(c, "ReviewService InsertReview")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ReviewService InsertReview").
		Str(log.KeyIdentity, id.Owner()).
		Str(log.KeyProductID, productID.String()).
		Int32("rating", param.Rating).
		Logger()

	if param.Rating < 1 || param.Rating > 5 {
		err := fmt.Errorf("rating=%d with error=%w", param.Rating, inErr.ErrInvalidRating)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Review{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "finding product").Logger()
	logger.Info().Msg("finding product")
	if _, err := s.queries.FindProductById(c, productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = fmt.Errorf("productId=%s with error=%w", productID.String(), inErr.ErrNotFound)
		} else {
			err = fmt.Errorf("failed finding product with error=%w", err)
		}
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Review{}, err
	}
	logger.Info().Msg("found product")

	logger = logger.With().Str(log.KeyProcess, "initializing transaction").Logger()
	logger.Info().Msg("initializing transaction")
	tx, err := s.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		err = fmt.Errorf("failed initializing transaction with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Review{}, err
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

	logger = logger.With().Str(log.KeyProcess, "inserting review").Logger()
	logger.Info().Msg("inserting review")
	review, err := qtx.InsertReview(c, repository.InsertReviewParams{
		ProductID: productID,
		Owner:     id.Owner(),
		Rating:    param.Rating,
		Comment:   param.Comment,
	})
	if err != nil {
		err = fmt.Errorf("failed inserting review with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Review{}, err
	}
	logger = logger.With().Str(log.KeyReview, review.ID.String()).Logger()
	logger.Info().Msg("inserted review")

	logger = logger.With().Str(log.KeyProcess, "aggregating product rating").Logger()
	logger.Info().Msg("aggregating product rating")
	agg, err := qtx.AggregateProductRating(c, productID)
	if err != nil {
		err = fmt.Errorf("failed aggregating product rating with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Review{}, err
	}
	if err := qtx.UpdateProductRating(c, repository.UpdateProductRatingParams{
		ID:           productID,
		Rating:       agg.Rating,
		ReviewsCount: int32(agg.ReviewsCount),
	}); err != nil {
		err = fmt.Errorf("failed updating product rating with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Review{}, err
	}
	logger.Info().Msg("aggregated product rating")

	logger = logger.With().Str(log.KeyProcess, "committing transaction").Logger()
	logger.Info().Msg("committing transaction")
	if err := tx.Commit(c); err != nil {
		err = fmt.Errorf("failed committing transaction with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Review{}, err
	}
	logger.Info().Msg("committed transaction")

	cacheKey := fmt.Sprintf(cache.KeyProductByID, productID.String())
	logger = logger.With().
		Str(log.KeyProcess, "deleting product from cache").
		Str(log.KeyCacheKey, cacheKey).
		Logger()
	logger.Info().Msg("deleting product from cache")
	if err := s.cache.Del(c, cacheKey, cache.KeyProducts).Err(); err != nil {
		err = fmt.Errorf("failed deleting product from cache with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
	} else {
		logger.Info().Msg("deleted product from cache")
	}

	return review.Response(), nil
}

func (s ReviewService) FindReviewsByProductId(
	c context.Context,
	productID uuid.UUID,
) ([]response.Review, error) {
	c, span := inOtel.Tracer.Start(c, "ReviewService FindReviewsByProductId")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ReviewService FindReviewsByProductId").
		Str(log.KeyProductID, productID.String()).
		Str(log.KeyProcess, "finding reviews").
		Logger()

	logger.Info().Msg("finding reviews")
	rows, err := s.queries.FindReviewsByProductId(c, productID)
	if err != nil {
		err = fmt.Errorf("failed finding reviews with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Msgf("found %d reviews", len(rows))

	reviews := make([]response.Review, len(rows))
	for i, row := range rows {
		reviews[i] = row.Response()
	}
	return reviews, nil
}
