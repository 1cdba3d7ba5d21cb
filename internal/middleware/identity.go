package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/commercelab/storefront/internal/config"
	inErrors "github.com/commercelab/storefront/internal/errors"
	inHttp "github.com/commercelab/storefront/internal/http"
	"github.com/commercelab/storefront/internal/identity"
	"github.com/commercelab/storefront/internal/log"
)

// Identity resolves the caller's identity and attaches it to the request
// context. A valid bearer token wins; otherwise the X-Session-Id header
// identifies a guest. Handlers that require an identity reject the request
// themselves when neither is present.
func Identity(cfg config.Application) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := r.Context()
			logger := zerolog.Ctx(c).With().Str(log.KeyTag, "middleware Identity").Logger()

			authorization := r.Header.Get("Authorization")
			if authorization != "" {
				token := strings.TrimPrefix(authorization, "Bearer ")
				token = strings.TrimPrefix(token, "bearer ")
				userID, err := identity.VerifyToken(c, cfg.SecretKey, token)
				if err != nil {
					logger.Error().Err(err).Msg(inErrors.ErrTokenInvalid.Error())
					inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
						"status":     "failed",
						"statusCode": http.StatusUnauthorized,
						"message":    inErrors.ErrTokenInvalid.Error(),
					})
					return
				}
				c = identity.AttachToContext(c, identity.FromUser(userID))
				logger = logger.With().Str(log.KeyUserID, userID.String()).Logger()
				logger.Trace().Msg("resolved user identity")
				next.ServeHTTP(w, r.WithContext(c))
				return
			}

			if sessionID := r.Header.Get(inHttp.HeaderSessionID); sessionID != "" {
				c = identity.AttachToContext(c, identity.FromSession(sessionID))
				logger = logger.With().Str(log.KeySessionID, sessionID).Logger()
				logger.Trace().Msg("resolved guest identity")
			}

			next.ServeHTTP(w, r.WithContext(c))
		})
	}
}
