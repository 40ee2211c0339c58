package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	apiContext "keyauth/internal/api/context"
	"keyauth/internal/api/middleware"
	"keyauth/internal/pkg/errors"
	"keyauth/internal/platform/models"
	"keyauth/internal/platform/repositories"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return false
	}
	return true
}

func param(r *http.Request, name string) string {
	ps, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return ps.ByName(name)
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

// owner resolves applications on behalf of the authenticated account. An
// application of another account is reported as missing.
type owner struct {
	apps *repositories.ApplicationRepository
}

func (o owner) application(w http.ResponseWriter, r *http.Request, appID string) (*models.Application, bool) {
	app, err := o.apps.GetByID(appID)
	if err != nil {
		errors.WriteInternal(w, err, "failed to load application")
		return nil, false
	}
	claims := middleware.ClaimsFrom(r)
	if app == nil || claims == nil || app.OwnerID != claims.AccountID {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Application not found", nil)
		return nil, false
	}
	return app, true
}
