package handlers

import (
	"net/http"
	"strings"

	"keyauth/internal/api/middleware"
	"keyauth/internal/engine/blacklist"
	"keyauth/internal/pkg/errors"
	"keyauth/internal/platform/models"
	"keyauth/internal/platform/repositories"
)

type BlacklistHandler struct {
	owner
	entries *repositories.BlacklistRepository
}

func NewBlacklistHandler(apps *repositories.ApplicationRepository, entries *repositories.BlacklistRepository) *BlacklistHandler {
	return &BlacklistHandler{owner: owner{apps: apps}, entries: entries}
}

// Create adds an entry. Without application_id it applies to every
// application of the account.
func (h *BlacklistHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFrom(r)

	var req struct {
		ApplicationID string `json:"application_id"`
		Type          string `json:"type"`
		Value         string `json:"value"`
		Reason        string `json:"reason"`
	}
	if !decode(w, r, &req) {
		return
	}
	req.Value = strings.TrimSpace(req.Value)

	if !blacklist.ValidType(req.Type) {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "type must be one of ip, hwid, username, email", nil)
		return
	}
	if req.Value == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "value is required", nil)
		return
	}

	entry := &models.BlacklistEntry{
		OwnerID:  claims.AccountID,
		Type:     req.Type,
		Value:    req.Value,
		Reason:   req.Reason,
		IsActive: true,
	}
	if req.ApplicationID != "" {
		app, ok := h.application(w, r, req.ApplicationID)
		if !ok {
			return
		}
		entry.ApplicationID = &app.ID
	}

	if err := h.entries.Create(entry); err != nil {
		errors.WriteInternal(w, err, "failed to create blacklist entry")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *BlacklistHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.entries.ListByOwner(middleware.ClaimsFrom(r).AccountID)
	if err != nil {
		errors.WriteInternal(w, err, "failed to list blacklist entries")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *BlacklistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	entry, err := h.entries.GetByID(param(r, "entry_id"))
	if err != nil {
		errors.WriteInternal(w, err, "failed to load blacklist entry")
		return
	}
	if entry == nil || entry.OwnerID != middleware.ClaimsFrom(r).AccountID {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Blacklist entry not found", nil)
		return
	}

	if err := h.entries.Delete(entry.ID); err != nil {
		errors.WriteInternal(w, err, "failed to delete blacklist entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
