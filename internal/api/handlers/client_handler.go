package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"keyauth/internal/api/middleware"
	"keyauth/internal/engine/pipeline"
	"keyauth/internal/engine/sessions"
	"keyauth/internal/pkg/errors"
	"keyauth/internal/platform/models"
)

// ClientHandler serves the API-key authenticated endpoints called by
// customer applications.
type ClientHandler struct {
	pipeline *pipeline.Pipeline
	sessions *sessions.Tracker
}

func NewClientHandler(p *pipeline.Pipeline, s *sessions.Tracker) *ClientHandler {
	return &ClientHandler{pipeline: p, sessions: s}
}

func requestContext(r *http.Request) pipeline.RequestContext {
	return pipeline.RequestContext{IP: middleware.ClientIP(r), UserAgent: r.UserAgent()}
}

func decodeClient(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		errors.WriteClientError(w, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}
	return true
}

func clientInternal(w http.ResponseWriter, app *models.Application, err error, msg string) {
	log.Error().Err(err).Str("application_id", app.ID).Msg(msg)
	errors.WriteClientError(w, http.StatusInternalServerError, "Internal server error", nil)
}

func isoOrNil(unix *int64) interface{} {
	if unix == nil {
		return nil
	}
	return time.Unix(*unix, 0).UTC().Format(time.RFC3339)
}

func userBody(out *pipeline.Outcome) map[string]interface{} {
	u := out.User
	var email interface{}
	if u.Email != nil {
		email = *u.Email
	}
	return map[string]interface{}{
		"success":    true,
		"message":    out.Message,
		"user_id":    u.ID,
		"username":   u.Username,
		"email":      email,
		"expires_at": isoOrNil(u.ExpiresAt),
	}
}

func writeOutcome(w http.ResponseWriter, out *pipeline.Outcome, body map[string]interface{}) {
	if !out.Success {
		errors.WriteClientError(w, out.Status, out.Message, out.Details)
		return
	}
	writeJSON(w, out.Status, body)
}

type clientLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Version  string `json:"version"`
	HWID     string `json:"hwid"`
}

func (h *ClientHandler) Login(w http.ResponseWriter, r *http.Request) {
	app := middleware.ApplicationFrom(r)

	var req clientLoginRequest
	if !decodeClient(w, r, &req) {
		return
	}

	out, err := h.pipeline.Authorize(app, pipeline.LoginRequest{
		Username: req.Username,
		Password: req.Password,
		Version:  req.Version,
		HWID:     req.HWID,
	}, requestContext(r))
	if err != nil {
		clientInternal(w, app, err, "login failed")
		return
	}

	var body map[string]interface{}
	if out.Success {
		body = userBody(out)
		body["hwid_locked"] = out.HWIDLocked
	}
	writeOutcome(w, out, body)
}

type clientRegisterRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Email      string `json:"email"`
	LicenseKey string `json:"license_key"`
	Version    string `json:"version"`
	HWID       string `json:"hwid"`
}

func (h *ClientHandler) Register(w http.ResponseWriter, r *http.Request) {
	app := middleware.ApplicationFrom(r)

	var req clientRegisterRequest
	if !decodeClient(w, r, &req) {
		return
	}

	out, err := h.pipeline.Register(app, pipeline.RegisterRequest{
		Username:   req.Username,
		Password:   req.Password,
		Email:      req.Email,
		LicenseKey: req.LicenseKey,
		Version:    req.Version,
		HWID:       req.HWID,
	}, requestContext(r))
	if err != nil {
		clientInternal(w, app, err, "registration failed")
		return
	}

	var body map[string]interface{}
	if out.Success {
		body = userBody(out)
	}
	writeOutcome(w, out, body)
}

func (h *ClientHandler) Verify(w http.ResponseWriter, r *http.Request) {
	app := middleware.ApplicationFrom(r)

	var req struct {
		UserID string `json:"user_id"`
	}
	if !decodeClient(w, r, &req) {
		return
	}

	out, err := h.pipeline.Verify(app, req.UserID)
	if err != nil {
		clientInternal(w, app, err, "verify failed")
		return
	}

	var body map[string]interface{}
	if out.Success {
		body = userBody(out)
	}
	writeOutcome(w, out, body)
}

func (h *ClientHandler) TrackSession(w http.ResponseWriter, r *http.Request) {
	app := middleware.ApplicationFrom(r)

	var req struct {
		UserID       string `json:"user_id"`
		SessionToken string `json:"session_token"`
		Action       string `json:"action"`
	}
	if !decodeClient(w, r, &req) {
		return
	}

	res, err := h.sessions.Track(app, sessions.TrackRequest{
		UserID:       req.UserID,
		SessionToken: req.SessionToken,
		Action:       req.Action,
	}, sessions.Caller{IP: middleware.ClientIP(r), UserAgent: r.UserAgent()})
	if err != nil {
		clientInternal(w, app, err, "session tracking failed")
		return
	}
	if !res.Success {
		errors.WriteClientError(w, res.Status, res.Message, nil)
		return
	}

	body := map[string]interface{}{"success": true, "message": res.Message}
	if res.Session != nil {
		body["session_id"] = res.Session.ID
		body["expires_at"] = isoOrNil(res.Session.ExpiresAt)
	}
	writeJSON(w, res.Status, body)
}
