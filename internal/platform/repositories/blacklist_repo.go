package repositories

import (
	"database/sql"

	"keyauth/internal/platform/models"
)

type BlacklistRepository struct {
	db *sql.DB
}

func NewBlacklistRepository(db *sql.DB) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

const blacklistColumns = `id, owner_id, application_id, type, value, reason, is_active, created_at`

func scanBlacklist(s scanner) (*models.BlacklistEntry, error) {
	e := &models.BlacklistEntry{}
	err := s.Scan(&e.ID, &e.OwnerID, &e.ApplicationID, &e.Type, &e.Value, &e.Reason, &e.IsActive, &e.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (r *BlacklistRepository) Create(e *models.BlacklistEntry) error {
	if e.ID == "" {
		e.ID = newID("bl_")
	}
	stamp(&e.CreatedAt, nil)

	_, err := r.db.Exec(`INSERT INTO blacklist_entries (`+blacklistColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.ApplicationID, e.Type, e.Value, e.Reason, e.IsActive, e.CreatedAt)
	return mapConstraint(err)
}

func (r *BlacklistRepository) GetByID(id string) (*models.BlacklistEntry, error) {
	return scanBlacklist(r.db.QueryRow(`SELECT `+blacklistColumns+` FROM blacklist_entries WHERE id = ?`, id))
}

func (r *BlacklistRepository) ListByOwner(ownerID string) ([]*models.BlacklistEntry, error) {
	rows, err := r.db.Query(`SELECT `+blacklistColumns+` FROM blacklist_entries WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*models.BlacklistEntry{}
	for rows.Next() {
		e, err := scanBlacklist(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Find returns the first active entry matching (type, value) that applies to
// appID, either scoped to it or global for the owner. A global entry never
// reaches another account's applications. Matching is exact.
func (r *BlacklistRepository) Find(ownerID, appID, entryType, value string) (*models.BlacklistEntry, error) {
	return scanBlacklist(r.db.QueryRow(`
		SELECT `+blacklistColumns+` FROM blacklist_entries
		WHERE owner_id = ? AND (application_id = ? OR application_id IS NULL)
			AND type = ? AND value = ? AND is_active = 1
		ORDER BY application_id IS NULL
		LIMIT 1
	`, ownerID, appID, entryType, value))
}

func (r *BlacklistRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM blacklist_entries WHERE id = ?`, id)
	return err
}
