package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"keyauth/internal/engine/credentials"
	"keyauth/internal/pkg/errors"
	"keyauth/internal/pkg/validator"
	"keyauth/internal/platform/auth"
	"keyauth/internal/platform/models"
	"keyauth/internal/platform/repositories"
)

const minPasswordLength = 8

type AuthHandler struct {
	accounts *repositories.AccountRepository
	hasher   *credentials.Hasher
	tokenSvc *auth.TokenService
}

func NewAuthHandler(accounts *repositories.AccountRepository, hasher *credentials.Hasher, tokenSvc *auth.TokenService) *AuthHandler {
	return &AuthHandler{accounts: accounts, hasher: hasher, tokenSvc: tokenSvc}
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type TokenResponse struct {
	Account      *models.Account `json:"account"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
}

func (h *AuthHandler) issue(w http.ResponseWriter, status int, account *models.Account) {
	accessToken, err := h.tokenSvc.GenerateAccessToken(account.ID, account.Email, account.IsOwner)
	if err != nil {
		errors.WriteInternal(w, err, "failed to sign access token")
		return
	}
	refreshToken, err := h.tokenSvc.GenerateRefreshToken(account.ID)
	if err != nil {
		errors.WriteInternal(w, err, "failed to sign refresh token")
		return
	}

	writeJSON(w, status, TokenResponse{
		Account:      account,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decode(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := validator.Email(req.Email); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	if len(req.Password) < minPasswordLength {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Password must be at least 8 characters", nil)
		return
	}

	existing, err := h.accounts.GetByEmail(req.Email)
	if err != nil {
		errors.WriteInternal(w, err, "failed to look up account")
		return
	}
	if existing != nil {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Account already exists", nil)
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		errors.WriteInternal(w, err, "failed to hash password")
		return
	}

	account := &models.Account{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		IsOwner:      true,
	}
	if err := h.accounts.Create(account); err != nil {
		if stderrors.Is(err, repositories.ErrDuplicate) {
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Account already exists", nil)
			return
		}
		errors.WriteInternal(w, err, "failed to create account")
		return
	}

	h.issue(w, http.StatusCreated, account)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	account, err := h.accounts.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		errors.WriteInternal(w, err, "failed to look up account")
		return
	}
	if account == nil || !h.hasher.Verify(req.Password, account.PasswordHash) {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid credentials", nil)
		return
	}

	now := time.Now().Unix()
	if err := h.accounts.UpdateLastLogin(account.ID, now); err != nil {
		errors.WriteInternal(w, err, "failed to record account login")
		return
	}
	account.LastLoginAt = &now

	h.issue(w, http.StatusOK, account)
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	accountID, err := h.tokenSvc.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid refresh token", nil)
		return
	}

	account, err := h.accounts.GetByID(accountID)
	if err != nil {
		errors.WriteInternal(w, err, "failed to load account")
		return
	}
	if account == nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Account not found", nil)
		return
	}

	accessToken, err := h.tokenSvc.GenerateAccessToken(account.ID, account.Email, account.IsOwner)
	if err != nil {
		errors.WriteInternal(w, err, "failed to sign access token")
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{AccessToken: accessToken})
}
