package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	apiContext "keyauth/internal/api/context"
	"keyauth/internal/pkg/errors"
	"keyauth/internal/platform/auth"
	"keyauth/internal/platform/cache"
	"keyauth/internal/platform/models"
)

const msgInvalidAPIKey = "Invalid API key"

type ApplicationLookup interface {
	GetByAPIKeyHash(hash string) (*models.Application, error)
}

// ApplicationMiddleware resolves the calling application from its API key
// before any client route runs.
type ApplicationMiddleware struct {
	apps  ApplicationLookup
	cache *cache.ApplicationCache
}

func NewApplicationMiddleware(apps ApplicationLookup, c *cache.ApplicationCache) *ApplicationMiddleware {
	return &ApplicationMiddleware{apps: apps, cache: c}
}

func apiKeyFrom(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}

func (m *ApplicationMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := apiKeyFrom(r)
		if key == "" {
			errors.WriteClientError(w, http.StatusUnauthorized, "API key is required", nil)
			return
		}

		hash := auth.HashAPIKey(key)
		app, ok := m.cache.Get(hash)
		if !ok {
			var err error
			app, err = m.apps.GetByAPIKeyHash(hash)
			if err != nil {
				log.Error().Err(err).Msg("failed to resolve api key")
				errors.WriteClientError(w, http.StatusInternalServerError, "Internal server error", nil)
				return
			}
			if app == nil {
				errors.WriteClientError(w, http.StatusUnauthorized, msgInvalidAPIKey, nil)
				return
			}
			m.cache.Set(hash, app)
		}

		if !app.IsActive {
			errors.WriteClientError(w, http.StatusUnauthorized, "Application is disabled", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Application, app)
		next(w, r.WithContext(ctx))
	}
}

// ApplicationFrom returns the application set by ApplicationMiddleware.
func ApplicationFrom(r *http.Request) *models.Application {
	app, _ := r.Context().Value(apiContext.Application).(*models.Application)
	return app
}
