// Package licenses issues license keys and tracks their consumption by
// registrations.
package licenses

import (
	"database/sql"
	"errors"
	"time"

	"keyauth/internal/platform/models"
)

var (
	ErrNotFound  = errors.New("license key not found")
	ErrInactive  = errors.New("license key inactive")
	ErrExpired   = errors.New("license key expired")
	ErrExhausted = errors.New("license key exhausted")
)

// Message is the client-facing text for a rejection reason.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInactive):
		return "License key is inactive"
	case errors.Is(err, ErrExpired):
		return "License key has expired"
	case errors.Is(err, ErrExhausted):
		return "License key has reached maximum user limit"
	default:
		return "Invalid license key"
	}
}

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

type Store interface {
	KeyAvailabilityChecker
	Create(l *models.LicenseKey) error
	GetByID(id string) (*models.LicenseKey, error)
	GetByKey(key string) (*models.LicenseKey, error)
	ListByApplication(appID string) ([]*models.LicenseKey, error)
	Delete(id string) error
	Consume(id string, now int64) (bool, error)
	ConsumeTx(tx *sql.Tx, id string, now int64) (bool, error)
	Release(id string, now int64) (bool, error)
	ReleaseTx(tx *sql.Tx, id string, now int64) (bool, error)
}

type CreateParams struct {
	LicenseKey   string
	MaxUsers     int
	ValidityDays int
	ExpiresAt    *time.Time
	Description  string
}

type Registry struct {
	store Store
	now   func() time.Time
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store, now: time.Now}
}

// Create issues a key for appID. ExpiresAt wins over ValidityDays; one of
// them is required.
func (r *Registry) Create(appID string, p CreateParams) (*models.LicenseKey, error) {
	if p.MaxUsers == 0 {
		p.MaxUsers = 1
	}
	if p.MaxUsers < 1 {
		return nil, &ValidationError{Msg: "max_users must be at least 1"}
	}

	now := r.now()
	var expiresAt time.Time
	switch {
	case p.ExpiresAt != nil:
		expiresAt = *p.ExpiresAt
	case p.ValidityDays > 0:
		expiresAt = now.Add(time.Duration(p.ValidityDays) * 24 * time.Hour)
	default:
		return nil, &ValidationError{Msg: "either expires_at or validity_days is required"}
	}
	if !expiresAt.After(now) {
		return nil, &ValidationError{Msg: "expires_at must be in the future"}
	}

	key, err := GenerateKey(p.LicenseKey, r.store)
	if err != nil {
		return nil, err
	}

	l := &models.LicenseKey{
		ApplicationID: appID,
		LicenseKey:    key,
		MaxUsers:      p.MaxUsers,
		ExpiresAt:     expiresAt.Unix(),
		IsActive:      true,
		Description:   p.Description,
		CreatedAt:     now.Unix(),
		UpdatedAt:     now.Unix(),
	}
	if err := r.store.Create(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Inspect looks up key for appID and explains why it can't be used. A key of
// another application is reported as not found.
func (r *Registry) Inspect(key, appID string) (*models.LicenseKey, error) {
	l, err := r.store.GetByKey(key)
	if err != nil {
		return nil, err
	}
	if l == nil || l.ApplicationID != appID {
		return nil, ErrNotFound
	}

	now := r.now().Unix()
	switch {
	case !l.IsActive:
		return l, ErrInactive
	case now >= l.ExpiresAt:
		return l, ErrExpired
	case l.CurrentUsers >= l.MaxUsers:
		return l, ErrExhausted
	}
	return l, nil
}

// Validate returns the key when it can admit a registration and nil
// otherwise. Only store failures are returned as errors.
func (r *Registry) Validate(key, appID string) (*models.LicenseKey, error) {
	l, err := r.Inspect(key, appID)
	if err != nil {
		if IsRejection(err) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

// IsRejection reports whether err is one of the key-state reasons rather than
// a store failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInactive) || errors.Is(err, ErrExpired) || errors.Is(err, ErrExhausted)
}

// Consume takes a slot. False means the key filled up or lapsed since it was
// validated.
func (r *Registry) Consume(id string) (bool, error) {
	return r.store.Consume(id, r.now().Unix())
}

func (r *Registry) ConsumeTx(tx *sql.Tx, id string) (bool, error) {
	return r.store.ConsumeTx(tx, id, r.now().Unix())
}

func (r *Registry) Release(id string) (bool, error) {
	return r.store.Release(id, r.now().Unix())
}

func (r *Registry) ReleaseTx(tx *sql.Tx, id string) (bool, error) {
	return r.store.ReleaseTx(tx, id, r.now().Unix())
}

func (r *Registry) Get(id string) (*models.LicenseKey, error) {
	return r.store.GetByID(id)
}

func (r *Registry) List(appID string) ([]*models.LicenseKey, error) {
	return r.store.ListByApplication(appID)
}

func (r *Registry) Delete(id string) error {
	return r.store.Delete(id)
}
