package handlers

import (
	"net/http"

	"keyauth/internal/pkg/errors"
	"keyauth/internal/platform/repositories"
)

type ActivityHandler struct {
	owner
	logs *repositories.ActivityLogRepository
}

func NewActivityHandler(apps *repositories.ApplicationRepository, logs *repositories.ActivityLogRepository) *ActivityHandler {
	return &ActivityHandler{owner: owner{apps: apps}, logs: logs}
}

// List returns an application's activity, newest first.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	app, ok := h.application(w, r, param(r, "app_id"))
	if !ok {
		return
	}

	limit, offset := pagination(r)
	entries, err := h.logs.ListByApplication(app.ID, limit, offset)
	if err != nil {
		errors.WriteInternal(w, err, "failed to list activity")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
