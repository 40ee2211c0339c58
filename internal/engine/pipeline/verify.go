package pipeline

import (
	"fmt"
	"net/http"

	"keyauth/internal/platform/metrics"
	"keyauth/internal/platform/models"
)

// Verify re-checks that a user may still use the application: active, not
// paused, not expired. It reads only and fires no notifications, so repeated
// calls give the same answer until the user changes.
func (p *Pipeline) Verify(app *models.Application, userID string) (*Outcome, error) {
	const flow = metrics.FlowVerify

	if userID == "" {
		return p.reject(flow, "missing_fields", http.StatusBadRequest, "user_id is required", nil), nil
	}

	user, err := p.users.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil || user.ApplicationID != app.ID {
		return p.reject(flow, "user_not_found", http.StatusNotFound, msgUserNotFound, nil), nil
	}

	deny := func(event, message string) (*Outcome, error) {
		out := p.reject(flow, event, http.StatusUnauthorized, message, nil)
		out.Event = event
		return out, nil
	}

	switch {
	case !user.IsActive:
		return deny(models.EventAccountDisabled, accountDisabledMessage(app))
	case user.IsPaused:
		return deny(models.EventAccountDisabled, msgAccountPaused)
	case user.ExpiresAt != nil && p.now().Unix() > *user.ExpiresAt:
		return deny(models.EventAccountExpired, accountExpiredMessage(app))
	}

	p.metrics.ObserveOutcome(flow, "valid")
	return &Outcome{Status: http.StatusOK, Success: true, Message: msgUserValid, User: user}, nil
}
