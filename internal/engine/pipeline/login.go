package pipeline

import (
	"fmt"
	"net/http"

	"keyauth/internal/platform/metrics"
	"keyauth/internal/platform/models"
)

type LoginRequest struct {
	Username string
	Password string
	Version  string
	HWID     string
}

// Authorize runs a login attempt through the ordered checks and stops at the
// first that fails. Each terminal outcome, except the missing-HWID client
// error, is logged and notified once. The returned error is reserved for
// store failures.
func (p *Pipeline) Authorize(app *models.Application, req LoginRequest, rc RequestContext) (*Outcome, error) {
	const flow = metrics.FlowLogin

	if req.Username == "" || req.Password == "" {
		return p.reject(flow, "missing_fields", http.StatusBadRequest, msgMissingLogin, nil), nil
	}

	base := terminal{flow: flow, username: req.Username, hwid: req.HWID}
	blocked := func(event, message string, entry *models.BlacklistEntry) *Outcome {
		t := base
		t.event, t.status, t.message = event, http.StatusForbidden, message
		t.metadata = map[string]interface{}{"blacklist_type": entry.Type, "blacklist_id": entry.ID}
		if entry.Reason != "" {
			t.metadata["reason"] = entry.Reason
		}
		return p.finish(app, rc, t)
	}

	// Blacklist: IP, then username, then HWID when supplied.
	checks := []struct {
		entryType string
		value     string
		event     string
		message   string
	}{
		{models.BlacklistIP, rc.IP, models.EventLoginBlockedIP, msgBlockedIP},
		{models.BlacklistUsername, req.Username, models.EventLoginBlockedUsername, msgBlockedUsername},
		{models.BlacklistHWID, req.HWID, models.EventLoginBlockedHWID, msgBlockedHWID},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		entry, err := p.blacklist.Check(app, c.entryType, c.value)
		if err != nil {
			return nil, fmt.Errorf("check %s blacklist: %w", c.entryType, err)
		}
		if entry != nil {
			return blocked(c.event, c.message, entry), nil
		}
	}

	if req.Version != "" && req.Version != app.Version {
		t := base
		t.event, t.status, t.message = models.EventVersionMismatch, http.StatusBadRequest, versionMismatchMessage(app)
		t.metadata = map[string]interface{}{"required_version": app.Version, "current_version": req.Version}
		t.details = map[string]interface{}{"required_version": app.Version, "current_version": req.Version}
		return p.finish(app, rc, t), nil
	}

	user, err := p.users.GetByUsername(app.ID, req.Username)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		// Same message as a wrong password.
		t := base
		t.event, t.status, t.message = models.EventLoginFailed, http.StatusUnauthorized, loginFailedMessage(app)
		t.metadata = map[string]interface{}{"reason": "user_not_found"}
		return p.finish(app, rc, t), nil
	}
	base.user = user

	if !user.IsActive {
		t := base
		t.event, t.status, t.message = models.EventAccountDisabled, http.StatusUnauthorized, accountDisabledMessage(app)
		t.metadata = map[string]interface{}{"reason": "disabled"}
		return p.finish(app, rc, t), nil
	}

	if user.IsPaused {
		t := base
		t.event, t.status, t.message = models.EventAccountDisabled, http.StatusUnauthorized, msgAccountPaused
		t.metadata = map[string]interface{}{"reason": "paused"}
		return p.finish(app, rc, t), nil
	}

	now := p.now().Unix()
	if user.ExpiresAt != nil && now > *user.ExpiresAt {
		t := base
		t.event, t.status, t.message = models.EventAccountExpired, http.StatusUnauthorized, accountExpiredMessage(app)
		t.metadata = map[string]interface{}{"expires_at": isoTime(*user.ExpiresAt)}
		return p.finish(app, rc, t), nil
	}

	if !p.creds.Verify(req.Password, user.PasswordHash) {
		if err := p.users.RecordFailedAttempt(user.ID, now); err != nil {
			return nil, fmt.Errorf("record failed attempt: %w", err)
		}
		user.LoginAttempts++
		user.LastLoginAttempt = &now

		t := base
		t.event, t.status, t.message = models.EventLoginFailed, http.StatusUnauthorized, loginFailedMessage(app)
		t.metadata = map[string]interface{}{"reason": "invalid_password", "login_attempts": user.LoginAttempts}
		return p.finish(app, rc, t), nil
	}

	var bound bool
	if app.HWIDLockEnabled {
		if req.HWID == "" {
			return p.reject(flow, "hwid_required", http.StatusBadRequest, msgHWIDRequired, nil), nil
		}

		if user.HWIDValue() == "" {
			bound, err = p.users.BindHWID(user.ID, req.HWID, now)
			if err != nil {
				return nil, fmt.Errorf("bind hwid: %w", err)
			}
			if bound {
				hwid := req.HWID
				user.HWID = &hwid
			} else {
				// Another request bound first; compare against what it stored.
				reloaded, err := p.users.GetByUsername(app.ID, req.Username)
				if err != nil {
					return nil, fmt.Errorf("reload user after hwid bind: %w", err)
				}
				if reloaded == nil {
					return nil, fmt.Errorf("user %s vanished during hwid bind", user.ID)
				}
				user = reloaded
				base.user = user
			}
		}

		if user.HWIDValue() != req.HWID {
			t := base
			t.event, t.status, t.message = models.EventHWIDMismatch, http.StatusUnauthorized, hwidMismatchMessage(app)
			t.metadata = map[string]interface{}{"stored_hwid": user.HWIDValue(), "provided_hwid": req.HWID}
			return p.finish(app, rc, t), nil
		}
	}

	if err := p.users.RecordSuccessfulLogin(user.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	user.LoginAttempts = 0
	user.LastLogin = &now
	user.LastLoginAttempt = &now

	t := base
	t.event, t.status, t.success, t.message = models.EventUserLogin, http.StatusOK, true, loginSuccessMessage(app)
	if bound {
		t.metadata = map[string]interface{}{"hwid_bound": true}
	}
	out := p.finish(app, rc, t)
	out.HWIDLocked = app.HWIDLockEnabled
	return out, nil
}
