package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "keyauth/internal/api/context"
	"keyauth/internal/api/handlers"
	"keyauth/internal/api/middleware"
	"keyauth/internal/pkg/errors"
)

type Dependencies struct {
	ClientHandler         *handlers.ClientHandler
	AuthHandler           *handlers.AuthHandler
	ApplicationHandler    *handlers.ApplicationHandler
	LicenseHandler        *handlers.LicenseHandler
	UserHandler           *handlers.UserHandler
	BlacklistHandler      *handlers.BlacklistHandler
	WebhookHandler        *handlers.WebhookHandler
	ActivityHandler       *handlers.ActivityHandler
	HealthHandler         *handlers.HealthHandler
	MetricsHandler        http.Handler
	AuthMiddleware        *middleware.AuthMiddleware
	ApplicationMiddleware *middleware.ApplicationMiddleware
	RateLimitMiddleware   *middleware.RateLimitMiddleware
	ProxyTrust            *middleware.ProxyTrust
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
	})

	router.GET("/health", wrap(deps.HealthHandler.Check))
	if deps.MetricsHandler != nil {
		router.Handler(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// A nil ProxyTrust trusts no forwarding headers
	ipMid := deps.ProxyTrust.Handle

	// Client API, authenticated by application API key
	appMid := deps.ApplicationMiddleware.Handle
	clientLimit := deps.RateLimitMiddleware.Client
	client := deps.ClientHandler

	router.POST("/api/v1/login", chain(client.Login, ipMid, appMid, clientLimit))
	router.POST("/api/v1/register", chain(client.Register, ipMid, appMid, clientLimit))
	router.POST("/api/v1/verify", chain(client.Verify, ipMid, appMid, clientLimit))
	router.POST("/api/v1/session/track", chain(client.TrackSession, ipMid, appMid, clientLimit))

	// Owner accounts
	adminLimit := deps.RateLimitMiddleware.Admin
	router.POST("/api/v1/auth/signup", chain(deps.AuthHandler.Signup, ipMid, adminLimit))
	router.POST("/api/v1/auth/login", chain(deps.AuthHandler.Login, ipMid, adminLimit))
	router.POST("/api/v1/auth/refresh", chain(deps.AuthHandler.Refresh, ipMid, adminLimit))

	// Everything below requires an owner access token
	authMid := deps.AuthMiddleware.Handle
	admin := func(h http.HandlerFunc) httprouter.Handle {
		return chain(h, ipMid, authMid, adminLimit)
	}

	apps := deps.ApplicationHandler
	router.POST("/api/v1/admin/applications", admin(apps.Create))
	router.GET("/api/v1/admin/applications", admin(apps.List))
	router.GET("/api/v1/admin/applications/:app_id", admin(apps.Get))
	router.PATCH("/api/v1/admin/applications/:app_id", admin(apps.Update))
	router.DELETE("/api/v1/admin/applications/:app_id", admin(apps.Delete))
	router.POST("/api/v1/admin/applications/:app_id/rotate-key", admin(apps.RotateKey))

	router.POST("/api/v1/admin/applications/:app_id/licenses", admin(deps.LicenseHandler.Create))
	router.GET("/api/v1/admin/applications/:app_id/licenses", admin(deps.LicenseHandler.List))
	router.DELETE("/api/v1/admin/licenses/:license_id", admin(deps.LicenseHandler.Delete))
	router.GET("/api/v1/admin/licenses/:license_id/qr", admin(deps.LicenseHandler.QRCode))

	router.POST("/api/v1/admin/applications/:app_id/users", admin(deps.UserHandler.Create))
	router.GET("/api/v1/admin/applications/:app_id/users", admin(deps.UserHandler.List))
	router.PATCH("/api/v1/admin/users/:user_id", admin(deps.UserHandler.Update))
	router.POST("/api/v1/admin/users/:user_id/reset-hwid", admin(deps.UserHandler.ResetHWID))
	router.DELETE("/api/v1/admin/users/:user_id", admin(deps.UserHandler.Delete))

	router.GET("/api/v1/admin/applications/:app_id/activity", admin(deps.ActivityHandler.List))

	router.POST("/api/v1/admin/blacklist", admin(deps.BlacklistHandler.Create))
	router.GET("/api/v1/admin/blacklist", admin(deps.BlacklistHandler.List))
	router.DELETE("/api/v1/admin/blacklist/:entry_id", admin(deps.BlacklistHandler.Delete))

	router.POST("/api/v1/admin/webhooks", admin(deps.WebhookHandler.Create))
	router.GET("/api/v1/admin/webhooks", admin(deps.WebhookHandler.List))
	router.PATCH("/api/v1/admin/webhooks/:webhook_id", admin(deps.WebhookHandler.Update))
	router.DELETE("/api/v1/admin/webhooks/:webhook_id", admin(deps.WebhookHandler.Delete))

	return router
}

// chain applies middlewares so the first one listed runs first.
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// wrap exposes route params to handlers through the request context.
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
