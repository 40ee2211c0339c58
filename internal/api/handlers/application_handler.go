package handlers

import (
	"net/http"
	"strings"

	"keyauth/internal/api/middleware"
	"keyauth/internal/pkg/errors"
	"keyauth/internal/platform/auth"
	"keyauth/internal/platform/cache"
	"keyauth/internal/platform/models"
	"keyauth/internal/platform/repositories"
)

const defaultAppVersion = "1.0.0"

type ApplicationHandler struct {
	owner
	cache *cache.ApplicationCache
}

func NewApplicationHandler(apps *repositories.ApplicationRepository, c *cache.ApplicationCache) *ApplicationHandler {
	return &ApplicationHandler{owner: owner{apps: apps}, cache: c}
}

// ApplicationWithKey carries the raw API key, which is only ever returned
// at creation and rotation.
type ApplicationWithKey struct {
	*models.Application
	APIKey string `json:"api_key"`
}

func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFrom(r)

	var req struct {
		Name            string                  `json:"name"`
		Description     string                  `json:"description"`
		Version         string                  `json:"version"`
		HWIDLockEnabled bool                    `json:"hwid_lock_enabled"`
		Messages        models.MessageTemplates `json:"messages"`
	}
	if !decode(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "name is required", nil)
		return
	}
	if req.Version == "" {
		req.Version = defaultAppVersion
	}

	key, err := auth.GenerateAPIKey()
	if err != nil {
		errors.WriteInternal(w, err, "failed to generate api key")
		return
	}

	app := &models.Application{
		OwnerID:         claims.AccountID,
		Name:            req.Name,
		Description:     req.Description,
		APIKeyHash:      key.Hash,
		APIKeyPrefix:    key.Prefix,
		Version:         req.Version,
		HWIDLockEnabled: req.HWIDLockEnabled,
		IsActive:        true,
		Messages:        req.Messages,
	}
	if err := h.apps.Create(app); err != nil {
		errors.WriteInternal(w, err, "failed to create application")
		return
	}

	writeJSON(w, http.StatusCreated, ApplicationWithKey{Application: app, APIKey: key.Raw})
}

func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	apps, err := h.apps.ListByOwner(middleware.ClaimsFrom(r).AccountID)
	if err != nil {
		errors.WriteInternal(w, err, "failed to list applications")
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	app, ok := h.application(w, r, param(r, "app_id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, app)
}

type messagesPatch struct {
	LoginSuccess    *string `json:"login_success_message"`
	LoginFailed     *string `json:"login_failed_message"`
	AccountDisabled *string `json:"account_disabled_message"`
	AccountExpired  *string `json:"account_expired_message"`
	VersionMismatch *string `json:"version_mismatch_message"`
	HWIDMismatch    *string `json:"hwid_mismatch_message"`
}

func (p *messagesPatch) apply(m *models.MessageTemplates) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&m.LoginSuccess, p.LoginSuccess)
	set(&m.LoginFailed, p.LoginFailed)
	set(&m.AccountDisabled, p.AccountDisabled)
	set(&m.AccountExpired, p.AccountExpired)
	set(&m.VersionMismatch, p.VersionMismatch)
	set(&m.HWIDMismatch, p.HWIDMismatch)
}

func (h *ApplicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	app, ok := h.application(w, r, param(r, "app_id"))
	if !ok {
		return
	}

	var req struct {
		Name            *string        `json:"name"`
		Description     *string        `json:"description"`
		Version         *string        `json:"version"`
		HWIDLockEnabled *bool          `json:"hwid_lock_enabled"`
		IsActive        *bool          `json:"is_active"`
		Messages        *messagesPatch `json:"messages"`
	}
	if !decode(w, r, &req) {
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "name cannot be empty", nil)
			return
		}
		app.Name = name
	}
	if req.Description != nil {
		app.Description = *req.Description
	}
	if req.Version != nil {
		if *req.Version == "" {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "version cannot be empty", nil)
			return
		}
		app.Version = *req.Version
	}
	if req.HWIDLockEnabled != nil {
		app.HWIDLockEnabled = *req.HWIDLockEnabled
	}
	if req.IsActive != nil {
		app.IsActive = *req.IsActive
	}
	if req.Messages != nil {
		req.Messages.apply(&app.Messages)
	}

	if err := h.apps.Update(app); err != nil {
		errors.WriteInternal(w, err, "failed to update application")
		return
	}
	h.cache.Invalidate(app.ID)

	writeJSON(w, http.StatusOK, app)
}

func (h *ApplicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	app, ok := h.application(w, r, param(r, "app_id"))
	if !ok {
		return
	}

	if err := h.apps.Delete(app.ID); err != nil {
		errors.WriteInternal(w, err, "failed to delete application")
		return
	}
	h.cache.Invalidate(app.ID)

	w.WriteHeader(http.StatusNoContent)
}

func (h *ApplicationHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	app, ok := h.application(w, r, param(r, "app_id"))
	if !ok {
		return
	}

	key, err := auth.GenerateAPIKey()
	if err != nil {
		errors.WriteInternal(w, err, "failed to generate api key")
		return
	}
	if err := h.apps.UpdateAPIKey(app.ID, key.Hash, key.Prefix); err != nil {
		errors.WriteInternal(w, err, "failed to rotate api key")
		return
	}
	h.cache.Invalidate(app.ID)

	app.APIKeyHash = key.Hash
	app.APIKeyPrefix = key.Prefix
	writeJSON(w, http.StatusOK, ApplicationWithKey{Application: app, APIKey: key.Raw})
}
