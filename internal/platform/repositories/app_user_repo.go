package repositories

import (
	"database/sql"
	"time"

	"keyauth/internal/platform/models"
)

type AppUserRepository struct {
	db *sql.DB
}

func NewAppUserRepository(db *sql.DB) *AppUserRepository {
	return &AppUserRepository{db: db}
}

func (r *AppUserRepository) BeginTx() (*sql.Tx, error) {
	return r.db.Begin()
}

const appUserColumns = `id, application_id, license_key_id, username, password_hash, email, is_active, is_paused, hwid,
	expires_at, login_attempts, last_login, last_login_attempt, created_at, updated_at`

const insertAppUser = `
	INSERT INTO app_users (` + appUserColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func scanAppUser(s scanner) (*models.AppUser, error) {
	u := &models.AppUser{}
	err := s.Scan(&u.ID, &u.ApplicationID, &u.LicenseKeyID, &u.Username, &u.PasswordHash, &u.Email, &u.IsActive, &u.IsPaused, &u.HWID,
		&u.ExpiresAt, &u.LoginAttempts, &u.LastLogin, &u.LastLoginAttempt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func prepareAppUser(u *models.AppUser) []interface{} {
	if u.ID == "" {
		u.ID = newID("usr_")
	}
	stamp(&u.CreatedAt, &u.UpdatedAt)
	return []interface{}{u.ID, u.ApplicationID, u.LicenseKeyID, u.Username, u.PasswordHash, u.Email, u.IsActive, u.IsPaused, u.HWID,
		u.ExpiresAt, u.LoginAttempts, u.LastLogin, u.LastLoginAttempt, u.CreatedAt, u.UpdatedAt}
}

// Create inserts a user directly (admin path, no license).
func (r *AppUserRepository) Create(u *models.AppUser) error {
	_, err := r.db.Exec(insertAppUser, prepareAppUser(u)...)
	return mapConstraint(err)
}

func (r *AppUserRepository) CreateTx(tx *sql.Tx, u *models.AppUser) error {
	_, err := tx.Exec(insertAppUser, prepareAppUser(u)...)
	return mapConstraint(err)
}

func (r *AppUserRepository) GetByID(id string) (*models.AppUser, error) {
	return scanAppUser(r.db.QueryRow(`SELECT `+appUserColumns+` FROM app_users WHERE id = ?`, id))
}

func (r *AppUserRepository) GetByUsername(appID, username string) (*models.AppUser, error) {
	return scanAppUser(r.db.QueryRow(`SELECT `+appUserColumns+` FROM app_users WHERE application_id = ? AND username = ?`, appID, username))
}

func (r *AppUserRepository) GetByEmail(appID, email string) (*models.AppUser, error) {
	return scanAppUser(r.db.QueryRow(`SELECT `+appUserColumns+` FROM app_users WHERE application_id = ? AND email = ?`, appID, email))
}

func (r *AppUserRepository) ListByApplication(appID string, limit, offset int) ([]*models.AppUser, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.db.Query(`SELECT `+appUserColumns+` FROM app_users WHERE application_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		appID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*models.AppUser{}
	for rows.Next() {
		u, err := scanAppUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update persists the admin-editable fields.
func (r *AppUserRepository) Update(u *models.AppUser) error {
	u.UpdatedAt = time.Now().Unix()
	_, err := r.db.Exec(`
		UPDATE app_users SET password_hash = ?, email = ?, is_active = ?, is_paused = ?, expires_at = ?, updated_at = ?
		WHERE id = ?
	`, u.PasswordHash, u.Email, u.IsActive, u.IsPaused, u.ExpiresAt, u.UpdatedAt, u.ID)
	return mapConstraint(err)
}

// RecordFailedAttempt bumps the attempt counter in place.
func (r *AppUserRepository) RecordFailedAttempt(id string, at int64) error {
	_, err := r.db.Exec(`
		UPDATE app_users SET login_attempts = login_attempts + 1, last_login_attempt = ?, updated_at = ?
		WHERE id = ?
	`, at, at, id)
	return err
}

func (r *AppUserRepository) RecordSuccessfulLogin(id string, at int64) error {
	_, err := r.db.Exec(`
		UPDATE app_users SET login_attempts = 0, last_login = ?, last_login_attempt = ?, updated_at = ?
		WHERE id = ?
	`, at, at, at, id)
	return err
}

// BindHWID stores hwid only if the user has none yet. It reports whether this
// call performed the binding.
func (r *AppUserRepository) BindHWID(id, hwid string, at int64) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE app_users SET hwid = ?, updated_at = ?
		WHERE id = ? AND (hwid IS NULL OR hwid = '')
	`, hwid, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *AppUserRepository) ResetHWID(id string) error {
	_, err := r.db.Exec(`UPDATE app_users SET hwid = NULL, updated_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}

func (r *AppUserRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM app_users WHERE id = ?`, id)
	return err
}

func (r *AppUserRepository) DeleteTx(tx *sql.Tx, id string) error {
	_, err := tx.Exec(`DELETE FROM app_users WHERE id = ?`, id)
	return err
}
