package repositories

import (
	"database/sql"
	"time"

	"keyauth/internal/platform/models"
)

type ApplicationRepository struct {
	db *sql.DB
}

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationColumns = `id, owner_id, name, description, api_key_hash, api_key_prefix, version, hwid_lock_enabled, is_active,
	login_success_message, login_failed_message, account_disabled_message, account_expired_message,
	version_mismatch_message, hwid_mismatch_message, created_at, updated_at`

func scanApplication(s scanner) (*models.Application, error) {
	a := &models.Application{}
	m := &a.Messages
	err := s.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Description, &a.APIKeyHash, &a.APIKeyPrefix, &a.Version, &a.HWIDLockEnabled, &a.IsActive,
		&m.LoginSuccess, &m.LoginFailed, &m.AccountDisabled, &m.AccountExpired, &m.VersionMismatch, &m.HWIDMismatch,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (r *ApplicationRepository) Create(app *models.Application) error {
	if app.ID == "" {
		app.ID = newID("app_")
	}
	stamp(&app.CreatedAt, &app.UpdatedAt)
	m := app.Messages

	_, err := r.db.Exec(`
		INSERT INTO applications (`+applicationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, app.ID, app.OwnerID, app.Name, app.Description, app.APIKeyHash, app.APIKeyPrefix, app.Version, app.HWIDLockEnabled, app.IsActive,
		m.LoginSuccess, m.LoginFailed, m.AccountDisabled, m.AccountExpired, m.VersionMismatch, m.HWIDMismatch,
		app.CreatedAt, app.UpdatedAt)
	return mapConstraint(err)
}

func (r *ApplicationRepository) GetByID(id string) (*models.Application, error) {
	return scanApplication(r.db.QueryRow(`SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id))
}

// GetByAPIKeyHash resolves the application owning an API key digest.
func (r *ApplicationRepository) GetByAPIKeyHash(hash string) (*models.Application, error) {
	return scanApplication(r.db.QueryRow(`SELECT `+applicationColumns+` FROM applications WHERE api_key_hash = ?`, hash))
}

func (r *ApplicationRepository) ListByOwner(ownerID string) ([]*models.Application, error) {
	rows, err := r.db.Query(`SELECT `+applicationColumns+` FROM applications WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := []*models.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (r *ApplicationRepository) Update(app *models.Application) error {
	app.UpdatedAt = time.Now().Unix()
	m := app.Messages

	_, err := r.db.Exec(`
		UPDATE applications
		SET name = ?, description = ?, version = ?, hwid_lock_enabled = ?, is_active = ?,
			login_success_message = ?, login_failed_message = ?, account_disabled_message = ?,
			account_expired_message = ?, version_mismatch_message = ?, hwid_mismatch_message = ?, updated_at = ?
		WHERE id = ?
	`, app.Name, app.Description, app.Version, app.HWIDLockEnabled, app.IsActive,
		m.LoginSuccess, m.LoginFailed, m.AccountDisabled, m.AccountExpired, m.VersionMismatch, m.HWIDMismatch,
		app.UpdatedAt, app.ID)
	return err
}

func (r *ApplicationRepository) UpdateAPIKey(id, hash, prefix string) error {
	_, err := r.db.Exec(`UPDATE applications SET api_key_hash = ?, api_key_prefix = ?, updated_at = ? WHERE id = ?`,
		hash, prefix, time.Now().Unix(), id)
	return mapConstraint(err)
}

// Delete removes the application; users, keys, blacklist entries, sessions
// and logs go with it through foreign key cascades.
func (r *ApplicationRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM applications WHERE id = ?`, id)
	return err
}
