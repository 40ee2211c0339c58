package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"keyauth/internal/platform/models"
)

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

const webhookColumns = `id, owner_id, url, events, secret, is_active, failure_count, last_triggered_at, last_error, created_at, updated_at`

func scanWebhook(s scanner) (*models.Webhook, error) {
	var w models.Webhook
	var eventsStr string
	var lastTriggeredAt sql.NullInt64
	var lastError sql.NullString

	err := s.Scan(&w.ID, &w.OwnerID, &w.URL, &eventsStr, &w.Secret, &w.IsActive, &w.FailureCount, &lastTriggeredAt, &lastError, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if lastTriggeredAt.Valid {
		w.LastTriggeredAt = lastTriggeredAt.Int64
	}
	if lastError.Valid {
		w.LastError = lastError.String
	}
	json.Unmarshal([]byte(eventsStr), &w.Events)

	return &w, nil
}

func (r *WebhookRepository) Create(webhook *models.Webhook) error {
	if webhook.ID == "" {
		webhook.ID = newID("wh_")
	}
	stamp(&webhook.CreatedAt, &webhook.UpdatedAt)

	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO webhooks (id, owner_id, url, events, secret, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, webhook.ID, webhook.OwnerID, webhook.URL, string(eventsJSON), webhook.Secret, webhook.IsActive, webhook.CreatedAt, webhook.UpdatedAt)
	return err
}

func (r *WebhookRepository) GetByID(id string) (*models.Webhook, error) {
	return scanWebhook(r.db.QueryRow(`SELECT `+webhookColumns+` FROM webhooks WHERE id = ?`, id))
}

func (r *WebhookRepository) list(query string, args ...interface{}) ([]*models.Webhook, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	webhooks := []*models.Webhook{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func (r *WebhookRepository) ListByOwner(ownerID string) ([]*models.Webhook, error) {
	return r.list(`SELECT `+webhookColumns+` FROM webhooks WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
}

// ListActiveByOwner returns the owner's active webhooks in creation order.
// Subscription filtering happens in the caller.
func (r *WebhookRepository) ListActiveByOwner(ownerID string) ([]*models.Webhook, error) {
	return r.list(`SELECT `+webhookColumns+` FROM webhooks WHERE owner_id = ? AND is_active = 1 ORDER BY created_at ASC, rowid ASC`, ownerID)
}

func (r *WebhookRepository) Update(webhook *models.Webhook) error {
	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}
	webhook.UpdatedAt = time.Now().Unix()

	_, err = r.db.Exec(`
		UPDATE webhooks
		SET url = ?, events = ?, secret = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, webhook.URL, string(eventsJSON), webhook.Secret, webhook.IsActive, webhook.UpdatedAt, webhook.ID)
	return err
}

func (r *WebhookRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM webhooks WHERE id = ?`, id)
	return err
}

// RecordSuccess stamps the delivery time and clears the failure streak.
func (r *WebhookRepository) RecordSuccess(id string, timestamp int64) error {
	_, err := r.db.Exec(`UPDATE webhooks SET last_triggered_at = ?, failure_count = 0, last_error = NULL WHERE id = ?`, timestamp, id)
	return err
}

func (r *WebhookRepository) RecordFailure(id string, timestamp int64, lastError string) error {
	_, err := r.db.Exec(`UPDATE webhooks SET last_triggered_at = ?, failure_count = failure_count + 1, last_error = ? WHERE id = ?`,
		timestamp, lastError, id)
	return err
}
