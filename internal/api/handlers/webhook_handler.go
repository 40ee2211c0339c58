package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"keyauth/internal/api/middleware"
	"keyauth/internal/engine/webhooks"
	"keyauth/internal/pkg/errors"
	"keyauth/internal/pkg/validator"
	"keyauth/internal/platform/models"
	"keyauth/internal/platform/repositories"
)

type WebhookHandler struct {
	webhooks *repositories.WebhookRepository
	prober   *webhooks.Prober
}

func NewWebhookHandler(repo *repositories.WebhookRepository, prober *webhooks.Prober) *WebhookHandler {
	return &WebhookHandler{webhooks: repo, prober: prober}
}

// WebhookResponse carries the probe warning for targets that were slow to
// answer the test request.
type WebhookResponse struct {
	*models.Webhook
	Warning string `json:"warning,omitempty"`
}

// normalizeEvents folds aliases and drops duplicates. It returns the first
// unknown name when there is one.
func normalizeEvents(events []string) ([]string, string) {
	seen := make(map[string]bool, len(events))
	out := make([]string, 0, len(events))
	for _, e := range events {
		name, ok := models.NormalizeEvent(strings.TrimSpace(e))
		if !ok {
			return nil, e
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, ""
}

// probe writes the rejection itself and reports whether the target may be
// saved.
func (h *WebhookHandler) probe(w http.ResponseWriter, r *http.Request, url, secret string) (string, bool) {
	warning, err := h.prober.Probe(r.Context(), url, secret)
	if err != nil {
		var perr *webhooks.ProbeError
		if stderrors.As(err, &perr) {
			log.Info().Str("url", url).Str("kind", perr.Kind).Msg("webhook target rejected")
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, perr.Msg, map[string]string{"reason": perr.Kind})
			return "", false
		}
		errors.WriteInternal(w, err, "failed to probe webhook target")
		return "", false
	}
	return warning, true
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFrom(r)

	var req struct {
		URL    string   `json:"url"`
		Events []string `json:"events"`
		Secret string   `json:"secret"`
	}
	if !decode(w, r, &req) {
		return
	}
	req.URL = strings.TrimSpace(req.URL)

	if err := validator.WebhookURL(req.URL); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	if len(req.Events) == 0 {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "at least one event is required", nil)
		return
	}
	events, unknown := normalizeEvents(req.Events)
	if unknown != "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "unknown event: "+unknown, nil)
		return
	}

	warning, ok := h.probe(w, r, req.URL, req.Secret)
	if !ok {
		return
	}

	webhook := &models.Webhook{
		OwnerID:  claims.AccountID,
		URL:      req.URL,
		Events:   events,
		Secret:   req.Secret,
		IsActive: true,
	}
	if err := h.webhooks.Create(webhook); err != nil {
		errors.WriteInternal(w, err, "failed to create webhook")
		return
	}

	writeJSON(w, http.StatusCreated, WebhookResponse{Webhook: webhook, Warning: warning})
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.webhooks.ListByOwner(middleware.ClaimsFrom(r).AccountID)
	if err != nil {
		errors.WriteInternal(w, err, "failed to list webhooks")
		return
	}
	writeJSON(w, http.StatusOK, hooks)
}

func (h *WebhookHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Webhook, bool) {
	webhook, err := h.webhooks.GetByID(param(r, "webhook_id"))
	if err != nil {
		errors.WriteInternal(w, err, "failed to load webhook")
		return nil, false
	}
	if webhook == nil || webhook.OwnerID != middleware.ClaimsFrom(r).AccountID {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Webhook not found", nil)
		return nil, false
	}
	return webhook, true
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	webhook, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req struct {
		URL      *string  `json:"url"`
		Events   []string `json:"events"`
		Secret   *string  `json:"secret"`
		IsActive *bool    `json:"is_active"`
	}
	if !decode(w, r, &req) {
		return
	}

	if req.Secret != nil {
		webhook.Secret = *req.Secret
	}
	if req.IsActive != nil {
		webhook.IsActive = *req.IsActive
	}
	if req.Events != nil {
		events, unknown := normalizeEvents(req.Events)
		if unknown != "" {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "unknown event: "+unknown, nil)
			return
		}
		if len(events) == 0 {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "at least one event is required", nil)
			return
		}
		webhook.Events = events
	}

	var warning string
	if req.URL != nil && strings.TrimSpace(*req.URL) != webhook.URL {
		url := strings.TrimSpace(*req.URL)
		if err := validator.WebhookURL(url); err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
			return
		}
		if warning, ok = h.probe(w, r, url, webhook.Secret); !ok {
			return
		}
		webhook.URL = url
	}

	if err := h.webhooks.Update(webhook); err != nil {
		errors.WriteInternal(w, err, "failed to update webhook")
		return
	}
	writeJSON(w, http.StatusOK, WebhookResponse{Webhook: webhook, Warning: warning})
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	webhook, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.webhooks.Delete(webhook.ID); err != nil {
		errors.WriteInternal(w, err, "failed to delete webhook")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
