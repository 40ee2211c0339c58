package repositories

import (
	"database/sql"

	"keyauth/internal/platform/models"
)

type LicenseKeyRepository struct {
	db *sql.DB
}

func NewLicenseKeyRepository(db *sql.DB) *LicenseKeyRepository {
	return &LicenseKeyRepository{db: db}
}

func (r *LicenseKeyRepository) BeginTx() (*sql.Tx, error) {
	return r.db.Begin()
}

const licenseColumns = `id, application_id, license_key, max_users, current_users, expires_at, is_active, description, created_at, updated_at`

func scanLicense(s scanner) (*models.LicenseKey, error) {
	l := &models.LicenseKey{}
	err := s.Scan(&l.ID, &l.ApplicationID, &l.LicenseKey, &l.MaxUsers, &l.CurrentUsers, &l.ExpiresAt, &l.IsActive, &l.Description, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

func (r *LicenseKeyRepository) Create(l *models.LicenseKey) error {
	if l.ID == "" {
		l.ID = newID("lic_")
	}
	stamp(&l.CreatedAt, &l.UpdatedAt)

	_, err := r.db.Exec(`
		INSERT INTO license_keys (`+licenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.ApplicationID, l.LicenseKey, l.MaxUsers, l.CurrentUsers, l.ExpiresAt, l.IsActive, l.Description, l.CreatedAt, l.UpdatedAt)
	return mapConstraint(err)
}

func (r *LicenseKeyRepository) GetByID(id string) (*models.LicenseKey, error) {
	return scanLicense(r.db.QueryRow(`SELECT `+licenseColumns+` FROM license_keys WHERE id = ?`, id))
}

func (r *LicenseKeyRepository) GetByKey(key string) (*models.LicenseKey, error) {
	return scanLicense(r.db.QueryRow(`SELECT `+licenseColumns+` FROM license_keys WHERE license_key = ?`, key))
}

func (r *LicenseKeyRepository) ExistsByKey(key string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM license_keys WHERE license_key = ?)`, key).Scan(&exists)
	return exists, err
}

func (r *LicenseKeyRepository) ListByApplication(appID string) ([]*models.LicenseKey, error) {
	rows, err := r.db.Query(`SELECT `+licenseColumns+` FROM license_keys WHERE application_id = ? ORDER BY created_at DESC`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []*models.LicenseKey{}
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, l)
	}
	return keys, rows.Err()
}

func (r *LicenseKeyRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM license_keys WHERE id = ?`, id)
	return err
}

const consumeQuery = `
	UPDATE license_keys
	SET current_users = current_users + 1, updated_at = ?
	WHERE id = ? AND is_active = 1 AND expires_at > ? AND current_users < max_users
`

// ConsumeTx takes one slot inside tx. It reports false when the key stopped
// being valid between the caller's check and this update.
func (r *LicenseKeyRepository) ConsumeTx(tx *sql.Tx, id string, now int64) (bool, error) {
	res, err := tx.Exec(consumeQuery, now, id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *LicenseKeyRepository) Consume(id string, now int64) (bool, error) {
	res, err := r.db.Exec(consumeQuery, now, id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

const releaseQuery = `
	UPDATE license_keys SET current_users = current_users - 1, updated_at = ?
	WHERE id = ? AND current_users > 0
`

// Release gives one slot back. The counter never drops below zero.
func (r *LicenseKeyRepository) Release(id string, now int64) (bool, error) {
	res, err := r.db.Exec(releaseQuery, now, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *LicenseKeyRepository) ReleaseTx(tx *sql.Tx, id string, now int64) (bool, error) {
	res, err := tx.Exec(releaseQuery, now, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeactivateExpired flips is_active off for keys past their expiry.
func (r *LicenseKeyRepository) DeactivateExpired(now int64) (int64, error) {
	res, err := r.db.Exec(`UPDATE license_keys SET is_active = 0, updated_at = ? WHERE is_active = 1 AND expires_at <= ?`, now, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
