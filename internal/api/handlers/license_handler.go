package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"keyauth/internal/engine/licenses"
	"keyauth/internal/pkg/errors"
	"keyauth/internal/platform/models"
	"keyauth/internal/platform/repositories"
)

type LicenseHandler struct {
	owner
	registry *licenses.Registry
}

func NewLicenseHandler(apps *repositories.ApplicationRepository, registry *licenses.Registry) *LicenseHandler {
	return &LicenseHandler{owner: owner{apps: apps}, registry: registry}
}

type createLicenseRequest struct {
	LicenseKey   string `json:"license_key"`
	MaxUsers     int    `json:"max_users"`
	ValidityDays int    `json:"validity_days"`
	ExpiresAt    *int64 `json:"expires_at"`
	Description  string `json:"description"`
}

func (h *LicenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	app, ok := h.application(w, r, param(r, "app_id"))
	if !ok {
		return
	}

	var req createLicenseRequest
	if !decode(w, r, &req) {
		return
	}

	params := licenses.CreateParams{
		LicenseKey:   req.LicenseKey,
		MaxUsers:     req.MaxUsers,
		ValidityDays: req.ValidityDays,
		Description:  req.Description,
	}
	if req.ExpiresAt != nil {
		at := time.Unix(*req.ExpiresAt, 0)
		params.ExpiresAt = &at
	}

	license, err := h.registry.Create(app.ID, params)
	if err != nil {
		var verr *licenses.ValidationError
		switch {
		case stderrors.As(err, &verr):
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, verr.Msg, nil)
		case stderrors.Is(err, licenses.ErrKeyTaken), stderrors.Is(err, repositories.ErrDuplicate):
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "License key already exists", nil)
		default:
			errors.WriteInternal(w, err, "failed to create license key")
		}
		return
	}

	writeJSON(w, http.StatusCreated, license)
}

func (h *LicenseHandler) List(w http.ResponseWriter, r *http.Request) {
	app, ok := h.application(w, r, param(r, "app_id"))
	if !ok {
		return
	}

	keys, err := h.registry.List(app.ID)
	if err != nil {
		errors.WriteInternal(w, err, "failed to list license keys")
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// license loads a key and checks that its application belongs to the caller.
func (h *LicenseHandler) license(w http.ResponseWriter, r *http.Request) (*models.LicenseKey, bool) {
	license, err := h.registry.Get(param(r, "license_id"))
	if err != nil {
		errors.WriteInternal(w, err, "failed to load license key")
		return nil, false
	}
	if license == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "License key not found", nil)
		return nil, false
	}
	if _, ok := h.application(w, r, license.ApplicationID); !ok {
		return nil, false
	}
	return license, true
}

func (h *LicenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	license, ok := h.license(w, r)
	if !ok {
		return
	}

	if err := h.registry.Delete(license.ID); err != nil {
		errors.WriteInternal(w, err, "failed to delete license key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LicenseHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	license, ok := h.license(w, r)
	if !ok {
		return
	}

	size := 0
	if raw := r.URL.Query().Get("size"); raw != "" {
		var err error
		if size, err = strconv.Atoi(raw); err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "size must be a number", nil)
			return
		}
	}

	png, err := licenses.GenerateQRCode(license.LicenseKey, size)
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(png)
}
