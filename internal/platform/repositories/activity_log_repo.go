package repositories

import (
	"database/sql"
	"encoding/json"

	"keyauth/internal/platform/models"
)

// ActivityLogRepository is append-only: there is no update or delete.
type ActivityLogRepository struct {
	db *sql.DB
}

func NewActivityLogRepository(db *sql.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

func (r *ActivityLogRepository) Create(entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = newID("act_")
	}
	stamp(&entry.CreatedAt, nil)

	var metadata sql.NullString
	if len(entry.Metadata) > 0 {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT INTO activity_logs (id, application_id, app_user_id, event, ip_address, hwid, user_agent, metadata, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ApplicationID, entry.AppUserID, entry.Event, entry.IPAddress, entry.HWID, entry.UserAgent, metadata,
		entry.Success, entry.ErrorMessage, entry.CreatedAt)
	return err
}

func (r *ActivityLogRepository) ListByApplication(appID string, limit, offset int) ([]*models.ActivityLog, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.db.Query(`
		SELECT id, application_id, app_user_id, event, ip_address, hwid, user_agent, metadata, success, error_message, created_at
		FROM activity_logs WHERE application_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?
	`, appID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*models.ActivityLog{}
	for rows.Next() {
		var l models.ActivityLog
		var metadata sql.NullString
		if err := rows.Scan(&l.ID, &l.ApplicationID, &l.AppUserID, &l.Event, &l.IPAddress, &l.HWID, &l.UserAgent, &metadata,
			&l.Success, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, err
		}
		if metadata.Valid {
			json.Unmarshal([]byte(metadata.String), &l.Metadata)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
