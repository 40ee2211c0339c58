package repositories

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"keyauth/internal/platform/models"
)

// ErrDuplicate is returned when an insert or update hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func mapConstraint(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return ErrDuplicate
		}
	}
	return err
}

func newID(prefix string) string {
	return prefix + uuid.New().String()
}

func stamp(created, updated *int64) {
	now := time.Now().Unix()
	if *created == 0 {
		*created = now
	}
	if updated != nil && *updated == 0 {
		*updated = *created
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(account *models.Account) error {
	if account.ID == "" {
		account.ID = newID("acc_")
	}
	stamp(&account.CreatedAt, &account.UpdatedAt)

	_, err := r.db.Exec(`
		INSERT INTO accounts (id, email, password_hash, full_name, is_owner, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, account.ID, account.Email, account.PasswordHash, account.FullName, account.IsOwner, account.CreatedAt, account.UpdatedAt)
	return mapConstraint(err)
}

const accountColumns = `id, email, password_hash, full_name, is_owner, last_login_at, created_at, updated_at`

func scanAccount(s scanner) (*models.Account, error) {
	a := &models.Account{}
	err := s.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.FullName, &a.IsOwner, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (r *AccountRepository) GetByID(id string) (*models.Account, error) {
	return scanAccount(r.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

func (r *AccountRepository) GetByEmail(email string) (*models.Account, error) {
	return scanAccount(r.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email))
}

func (r *AccountRepository) UpdateLastLogin(id string, timestamp int64) error {
	_, err := r.db.Exec(`UPDATE accounts SET last_login_at = ?, updated_at = ? WHERE id = ?`, timestamp, timestamp, id)
	return err
}
