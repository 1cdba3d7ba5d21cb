package controller

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	inErr "github.com/commercelab/storefront/internal/errors"
	inHttp "github.com/commercelab/storefront/internal/http"
	"github.com/commercelab/storefront/internal/identity"
	"github.com/commercelab/storefront/internal/log"
	inOtel "github.com/commercelab/storefront/internal/otel"
	"github.com/commercelab/storefront/review/service"
	"github.com/commercelab/storefront/review/pkg/request"
)

type ReviewController struct {
	service *service.ReviewService
}

func AttachReviewController(router *mux.Router, service *service.ReviewService) {
	controller := ReviewController{service: service}

	sub := router.PathPrefix("/products/{productId}/reviews").Subrouter()
	sub.HandleFunc("", controller.FindReviews).Methods(http.MethodGet)
	sub.HandleFunc("", controller.InsertReview).Methods(http.MethodPost)
}

func (t ReviewController) FindReviews(w http.ResponseWriter, r *http.Request) {
	c, span := inOtel.Tracer.Start(r.Context(), "ReviewController FindReviews")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ReviewController FindReviews").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "parsing path values").Logger()
	logger.Info().Msg("parsing path values")
	productID, err := uuid.Parse(mux.Vars(r)["productId"])
	if err != nil {
		err = fmt.Errorf("failed parsing productId with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger = logger.With().Str(log.KeyProductID, productID.String()).Logger()
	logger.Info().Msg("parsed path values")

	logger = logger.With().Str(log.KeyProcess, "finding reviews").Logger()
	logger.Info().Msg("finding reviews")
	c = logger.WithContext(c)
	reviews, err := t.service.FindReviewsByProductId(c, productID)
	if err != nil {
		err = fmt.Errorf("failed finding reviews with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": inHttp.ErrorStatusCode(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("found reviews")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "found reviews",
		"data":       reviews,
	})
}

func (t ReviewController) InsertReview(w http.ResponseWriter, r *http.Request) {
	c, span := inOtel.Tracer.Start(r.Context(), "ReviewController InsertReview")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ReviewController InsertReview").
		Logger()

	id := identity.FromContext(c)
	if id.IsZero() {
		err := fmt.Errorf("failed resolving identity with error=%w", inErr.ErrEmptyAuth)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusUnauthorized,
			"message":    err.Error(),
		})
		return
	}
	logger = logger.With().Str(log.KeyIdentity, id.Owner()).Logger()

	logger = logger.With().Str(log.KeyProcess, "parsing path values").Logger()
	logger.Info().Msg("parsing path values")
	productID, err := uuid.Parse(mux.Vars(r)["productId"])
	if err != nil {
		err = fmt.Errorf("failed parsing productId with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger = logger.With().Str(log.KeyProductID, productID.String()).Logger()
	logger.Info().Msg("parsed path values")

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.InsertReview{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating request body").Logger()
	logger.Info().Msg("validating request body")
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("validated request body")

	logger = logger.With().Str(log.KeyProcess, "inserting review").Logger()
	logger.Info().Msg("inserting review")
	c = logger.WithContext(c)
	review, err := t.service.InsertReview(c, id, productID, reqBody)
	if err != nil {
		err = fmt.Errorf("failed inserting review with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": inHttp.ErrorStatusCode(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("inserted review")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusCreated,
		"message":    "inserted review",
		"data":       review,
	})
}
