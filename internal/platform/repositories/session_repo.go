package repositories

import (
	"database/sql"

	"keyauth/internal/platform/models"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, application_id, app_user_id, session_token, ip_address, user_agent, last_activity, is_active, expires_at, created_at`

func scanSession(s scanner) (*models.ActiveSession, error) {
	a := &models.ActiveSession{}
	err := s.Scan(&a.ID, &a.ApplicationID, &a.AppUserID, &a.SessionToken, &a.IPAddress, &a.UserAgent, &a.LastActivity, &a.IsActive, &a.ExpiresAt, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (r *SessionRepository) Create(s *models.ActiveSession) error {
	if s.ID == "" {
		s.ID = newID("ses_")
	}
	stamp(&s.CreatedAt, nil)

	_, err := r.db.Exec(`INSERT INTO active_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ApplicationID, s.AppUserID, s.SessionToken, s.IPAddress, s.UserAgent, s.LastActivity, s.IsActive, s.ExpiresAt, s.CreatedAt)
	return mapConstraint(err)
}

func (r *SessionRepository) GetByToken(appID, token string) (*models.ActiveSession, error) {
	return scanSession(r.db.QueryRow(`SELECT `+sessionColumns+` FROM active_sessions WHERE application_id = ? AND session_token = ?`, appID, token))
}

// Reactivate reuses an existing token row for a new start.
func (r *SessionRepository) Reactivate(s *models.ActiveSession) error {
	_, err := r.db.Exec(`
		UPDATE active_sessions
		SET app_user_id = ?, ip_address = ?, user_agent = ?, last_activity = ?, is_active = 1, expires_at = ?
		WHERE id = ?
	`, s.AppUserID, s.IPAddress, s.UserAgent, s.LastActivity, s.ExpiresAt, s.ID)
	return err
}

// Touch records a heartbeat on an active session and reports whether one matched.
func (r *SessionRepository) Touch(appID, token string, at int64, expiresAt *int64) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE active_sessions SET last_activity = ?, expires_at = ?
		WHERE application_id = ? AND session_token = ? AND is_active = 1
	`, at, expiresAt, appID, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *SessionRepository) End(appID, token string, at int64) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE active_sessions SET last_activity = ?, is_active = 0
		WHERE application_id = ? AND session_token = ? AND is_active = 1
	`, at, appID, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ReapExpired deactivates sessions whose expiry has passed.
func (r *SessionRepository) ReapExpired(now int64) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE active_sessions SET is_active = 0
		WHERE is_active = 1 AND expires_at IS NOT NULL AND expires_at <= ?
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SessionRepository) CountActive(appID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM active_sessions WHERE application_id = ? AND is_active = 1`, appID).Scan(&n)
	return n, err
}
