package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/commercelab/storefront/checkout/service"
	"github.com/commercelab/storefront/checkout/pkg/request"
	inErr "github.com/commercelab/storefront/internal/errors"
	inHttp "github.com/commercelab/storefront/internal/http"
	"github.com/commercelab/storefront/internal/identity"
	"github.com/commercelab/storefront/internal/log"
	inOtel "github.com/commercelab/storefront/internal/otel"
	"github.com/commercelab/storefront/internal/payment"
)

type CheckoutController struct {
	service *service.CheckoutService
}

func AttachCheckoutController(router *mux.Router, service *service.CheckoutService) {
	controller := CheckoutController{service: service}

	sub := router.PathPrefix("/checkout").Subrouter()
	sub.HandleFunc("/session", controller.CreateSession).Methods(http.MethodPost)
	sub.HandleFunc("/status/{providerSessionId}", controller.GetStatus).Methods(http.MethodGet)

	// Webhook path is provider-facing, no shopper identity on it.
	router.HandleFunc("/webhook/payment", controller.HandleProviderEvent).Methods(http.MethodPost)
}

func (t CheckoutController) CreateSession(w http.ResponseWriter, r *http.Request) {
	c, span := inOtel.Tracer.Start(r.Context(), "CheckoutController CreateSession")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutController CreateSession").
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

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.CreateSession{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil && !errors.Is(err, io.EOF) {
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

	logger = logger.With().Str(log.KeyProcess, "creating checkout session").Logger()
	logger.Info().Msg("creating checkout session")
	c = logger.WithContext(c)
	session, err := t.service.CreateSession(c, id, reqBody)
	if err != nil {
		err = fmt.Errorf("failed creating checkout session with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": inHttp.ErrorStatusCode(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("created checkout session")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusCreated,
		"message":    "created checkout session",
		"data":       session,
	})
}

func (t CheckoutController) GetStatus(w http.ResponseWriter, r *http.Request) {
	c, span := inOtel.Tracer.Start(r.Context(), "CheckoutController GetStatus")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutController GetStatus").
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

	providerSessionID := mux.Vars(r)["providerSessionId"]
	logger = logger.With().
		Str(log.KeyIdentity, id.Owner()).
		Str(log.KeyProviderSessionID, providerSessionID).
		Str(log.KeyProcess, "getting checkout status").
		Logger()

	logger.Info().Msg("getting checkout status")
	c = logger.WithContext(c)
	status, err := t.service.GetStatus(c, id, providerSessionID)
	if err != nil {
		err = fmt.Errorf("failed getting checkout status with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": inHttp.ErrorStatusCode(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("got checkout status")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "got checkout status",
		"data":       status,
	})
}

func (t CheckoutController) HandleProviderEvent(w http.ResponseWriter, r *http.Request) {
	c, span := inOtel.Tracer.Start(r.Context(), "CheckoutController HandleProviderEvent")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutController HandleProviderEvent").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "decoding event").Logger()
	logger.Info().Msg("decoding event")
	event := payment.Event{}
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		err = fmt.Errorf("failed decoding event with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	if event.SessionID == "" {
		err := errors.New("event is missing session_id")
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger = logger.With().
		Str(log.KeyProviderSessionID, event.SessionID).
		Str("eventType", event.EventType).
		Logger()
	logger.Info().Msg("decoded event")

	logger = logger.With().Str(log.KeyProcess, "applying event").Logger()
	logger.Info().Msg("applying event")
	c = logger.WithContext(c)
	status, err := t.service.HandleProviderEvent(c, event)
	if err != nil {
		err = fmt.Errorf("failed applying event with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": inHttp.ErrorStatusCode(err),
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("applied event")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "applied event",
		"data":       status,
	})
}
