package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"

	"keyauth/internal/engine/credentials"
	"keyauth/internal/engine/licenses"
	"keyauth/internal/pkg/errors"
	"keyauth/internal/pkg/validator"
	"keyauth/internal/platform/models"
	"keyauth/internal/platform/repositories"
)

// UserHandler manages the end users of an application from the dashboard.
type UserHandler struct {
	owner
	users    *repositories.AppUserRepository
	registry *licenses.Registry
	hasher   *credentials.Hasher
}

func NewUserHandler(apps *repositories.ApplicationRepository, users *repositories.AppUserRepository, registry *licenses.Registry, hasher *credentials.Hasher) *UserHandler {
	return &UserHandler{owner: owner{apps: apps}, users: users, registry: registry, hasher: hasher}
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	app, ok := h.application(w, r, param(r, "app_id"))
	if !ok {
		return
	}

	var req struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		Email     string `json:"email"`
		ExpiresAt *int64 `json:"expires_at"`
		HWID      string `json:"hwid"`
	}
	if !decode(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if req.Username == "" || req.Password == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "username and password are required", nil)
		return
	}
	if req.Email != "" {
		if err := validator.Email(req.Email); err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
			return
		}
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		errors.WriteInternal(w, err, "failed to hash password")
		return
	}

	user := &models.AppUser{
		ApplicationID: app.ID,
		Username:      req.Username,
		PasswordHash:  hash,
		IsActive:      true,
		ExpiresAt:     req.ExpiresAt,
	}
	if req.Email != "" {
		user.Email = &req.Email
	}
	if req.HWID != "" {
		user.HWID = &req.HWID
	}

	if err := h.users.Create(user); err != nil {
		if stderrors.Is(err, repositories.ErrDuplicate) {
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Username or email already exists", nil)
			return
		}
		errors.WriteInternal(w, err, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	app, ok := h.application(w, r, param(r, "app_id"))
	if !ok {
		return
	}

	limit, offset := pagination(r)
	users, err := h.users.ListByApplication(app.ID, limit, offset)
	if err != nil {
		errors.WriteInternal(w, err, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) user(w http.ResponseWriter, r *http.Request) (*models.AppUser, bool) {
	user, err := h.users.GetByID(param(r, "user_id"))
	if err != nil {
		errors.WriteInternal(w, err, "failed to load user")
		return nil, false
	}
	if user == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "User not found", nil)
		return nil, false
	}
	if _, ok := h.application(w, r, user.ApplicationID); !ok {
		return nil, false
	}
	return user, true
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	var req struct {
		IsActive  *bool   `json:"is_active"`
		IsPaused  *bool   `json:"is_paused"`
		ExpiresAt *int64  `json:"expires_at"`
		Password  *string `json:"password"`
		Email     *string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}

	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.IsPaused != nil {
		user.IsPaused = *req.IsPaused
	}
	if req.ExpiresAt != nil {
		// 0 removes the expiry.
		if *req.ExpiresAt == 0 {
			user.ExpiresAt = nil
		} else {
			user.ExpiresAt = req.ExpiresAt
		}
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email == "" {
			user.Email = nil
		} else if err := validator.Email(email); err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
			return
		} else {
			user.Email = &email
		}
	}
	if req.Password != nil {
		if *req.Password == "" {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "password cannot be empty", nil)
			return
		}
		hash, err := h.hasher.Hash(*req.Password)
		if err != nil {
			errors.WriteInternal(w, err, "failed to hash password")
			return
		}
		user.PasswordHash = hash
	}

	if err := h.users.Update(user); err != nil {
		if stderrors.Is(err, repositories.ErrDuplicate) {
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Email already exists", nil)
			return
		}
		errors.WriteInternal(w, err, "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ResetHWID(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	if err := h.users.ResetHWID(user.ID); err != nil {
		errors.WriteInternal(w, err, "failed to reset hwid")
		return
	}
	user.HWID = nil
	writeJSON(w, http.StatusOK, user)
}

// Delete removes the user and gives its license slot back in one
// transaction.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	tx, err := h.users.BeginTx()
	if err != nil {
		errors.WriteInternal(w, err, "failed to begin user delete")
		return
	}
	defer tx.Rollback()

	if user.LicenseKeyID != nil {
		if _, err := h.registry.ReleaseTx(tx, *user.LicenseKeyID); err != nil {
			errors.WriteInternal(w, err, "failed to release license slot")
			return
		}
	}
	if err := h.users.DeleteTx(tx, user.ID); err != nil {
		errors.WriteInternal(w, err, "failed to delete user")
		return
	}
	if err := tx.Commit(); err != nil {
		errors.WriteInternal(w, err, "failed to commit user delete")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
