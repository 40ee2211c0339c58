package pipeline

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"keyauth/internal/engine/licenses"
	"keyauth/internal/pkg/validator"
	"keyauth/internal/platform/metrics"
	"keyauth/internal/platform/models"
	"keyauth/internal/platform/repositories"
)

type RegisterRequest struct {
	Username   string
	Password   string
	Email      string
	LicenseKey string
	Version    string
	HWID       string
}

// Register creates a user against a license key. Failures are returned to
// the caller without logging or notification. The user insert and the slot
// consumption commit together, and consumption only succeeds while the key
// still has room, so concurrent registrations cannot overrun max_users.
func (p *Pipeline) Register(app *models.Application, req RegisterRequest, rc RequestContext) (*Outcome, error) {
	const flow = metrics.FlowRegister

	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Password == "" || req.LicenseKey == "" {
		return p.reject(flow, "missing_fields", http.StatusBadRequest, msgMissingRegister, nil), nil
	}
	if req.Email != "" && validator.Email(req.Email) != nil {
		return p.reject(flow, "invalid_email", http.StatusBadRequest, msgInvalidEmail, nil), nil
	}
	if req.Version != "" && req.Version != app.Version {
		return p.reject(flow, models.EventVersionMismatch, http.StatusBadRequest, versionMismatchMessage(app),
			map[string]interface{}{"required_version": app.Version, "current_version": req.Version}), nil
	}

	license, err := p.licenses.Inspect(req.LicenseKey, app.ID)
	if err != nil {
		if licenses.IsRejection(err) {
			return p.reject(flow, "license_rejected", http.StatusBadRequest, licenses.Message(err), nil), nil
		}
		return nil, fmt.Errorf("inspect license: %w", err)
	}

	existing, err := p.users.GetByUsername(app.ID, req.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing != nil {
		return p.reject(flow, "username_taken", http.StatusBadRequest, msgUsernameTaken, nil), nil
	}
	if req.Email != "" {
		existing, err = p.users.GetByEmail(app.ID, req.Email)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if existing != nil {
			return p.reject(flow, "email_taken", http.StatusBadRequest, msgEmailTaken, nil), nil
		}
	}

	hash, err := p.creds.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := p.now().Unix()
	licenseID := license.ID
	expiresAt := license.ExpiresAt
	user := &models.AppUser{
		ApplicationID: app.ID,
		LicenseKeyID:  &licenseID,
		Username:      req.Username,
		PasswordHash:  hash,
		IsActive:      true,
		ExpiresAt:     &expiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Email != "" {
		email := req.Email
		user.Email = &email
	}
	if app.HWIDLockEnabled && req.HWID != "" {
		hwid := req.HWID
		user.HWID = &hwid
	}

	out, err := p.createWithLicense(user, req.LicenseKey, licenseID)
	if err != nil || out != nil {
		return out, err
	}

	result := p.finish(app, rc, terminal{
		flow:     flow,
		event:    models.EventUserRegister,
		status:   http.StatusCreated,
		success:  true,
		message:  msgRegistered,
		user:     user,
		username: user.Username,
		hwid:     req.HWID,
		metadata: map[string]interface{}{"license_key_id": licenseID},
	})
	return result, nil
}

// createWithLicense inserts user and consumes one slot of licenseID in a
// single transaction. A non-nil outcome means the registration was refused.
func (p *Pipeline) createWithLicense(user *models.AppUser, key, licenseID string) (*Outcome, error) {
	const flow = metrics.FlowRegister

	tx, err := p.users.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}

	ok, err := p.licenses.ConsumeTx(tx, licenseID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("consume license: %w", err)
	}
	if !ok {
		tx.Rollback()
		// The key filled up or lapsed after Inspect; report the current reason.
		reason := licenses.ErrExhausted
		if _, err := p.licenses.Inspect(key, user.ApplicationID); licenses.IsRejection(err) {
			reason = err
		}
		return p.reject(flow, "license_rejected", http.StatusBadRequest, licenses.Message(reason), nil), nil
	}

	if err := p.users.CreateTx(tx, user); err != nil {
		tx.Rollback()
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("create user: %w", err)
		}
		if taken, _ := p.users.GetByUsername(user.ApplicationID, user.Username); taken != nil {
			return p.reject(flow, "username_taken", http.StatusBadRequest, msgUsernameTaken, nil), nil
		}
		return p.reject(flow, "email_taken", http.StatusBadRequest, msgEmailTaken, nil), nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit registration: %w", err)
	}
	return nil, nil
}
