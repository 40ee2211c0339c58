package models

// Account is an owner of applications (the admin side).
type Account struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	FullName     string `json:"full_name"`
	IsOwner      bool   `json:"is_owner"`
	LastLoginAt  *int64 `json:"last_login_at,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// MessageTemplates are the tenant-customisable texts returned by the login
// pipeline. Empty values fall back to the built-in defaults.
type MessageTemplates struct {
	LoginSuccess    string `json:"login_success_message"`
	LoginFailed     string `json:"login_failed_message"`
	AccountDisabled string `json:"account_disabled_message"`
	AccountExpired  string `json:"account_expired_message"`
	VersionMismatch string `json:"version_mismatch_message"`
	HWIDMismatch    string `json:"hwid_mismatch_message"`
}

type Application struct {
	ID              string           `json:"id"`
	OwnerID         string           `json:"owner_id"`
	Name            string           `json:"name"`
	Description     string           `json:"description,omitempty"`
	APIKeyHash      string           `json:"-"`
	APIKeyPrefix    string           `json:"api_key_prefix"`
	Version         string           `json:"version"`
	HWIDLockEnabled bool             `json:"hwid_lock_enabled"`
	IsActive        bool             `json:"is_active"`
	Messages        MessageTemplates `json:"messages"`
	CreatedAt       int64            `json:"created_at"`
	UpdatedAt       int64            `json:"updated_at"`
}

type LicenseKey struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	LicenseKey    string `json:"license_key"`
	MaxUsers      int    `json:"max_users"`
	CurrentUsers  int    `json:"current_users"`
	ExpiresAt     int64  `json:"expires_at"`
	IsActive      bool   `json:"is_active"`
	Description   string `json:"description,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// IsValidAt reports whether the key can still admit a registration.
func (l *LicenseKey) IsValidAt(now int64) bool {
	return l.IsActive && now < l.ExpiresAt && l.CurrentUsers < l.MaxUsers
}

type AppUser struct {
	ID               string  `json:"id"`
	ApplicationID    string  `json:"application_id"`
	LicenseKeyID     *string `json:"license_key_id,omitempty"`
	Username         string  `json:"username"`
	PasswordHash     string  `json:"-"`
	Email            *string `json:"email,omitempty"`
	IsActive         bool    `json:"is_active"`
	IsPaused         bool    `json:"is_paused"`
	HWID             *string `json:"hwid,omitempty"`
	ExpiresAt        *int64  `json:"expires_at,omitempty"`
	LoginAttempts    int     `json:"login_attempts"`
	LastLogin        *int64  `json:"last_login,omitempty"`
	LastLoginAttempt *int64  `json:"last_login_attempt,omitempty"`
	CreatedAt        int64   `json:"created_at"`
	UpdatedAt        int64   `json:"updated_at"`
}

// EmailValue returns the email or "" when unset.
func (u *AppUser) EmailValue() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

func (u *AppUser) HWIDValue() string {
	if u.HWID == nil {
		return ""
	}
	return *u.HWID
}

const (
	BlacklistIP       = "ip"
	BlacklistUsername = "username"
	BlacklistHWID     = "hwid"
	BlacklistEmail    = "email"
)

type BlacklistEntry struct {
	ID            string  `json:"id"`
	OwnerID       string  `json:"owner_id"`
	ApplicationID *string `json:"application_id,omitempty"` // nil = global for the owner
	Type          string  `json:"type"`
	Value         string  `json:"value"`
	Reason        string  `json:"reason,omitempty"`
	IsActive      bool    `json:"is_active"`
	CreatedAt     int64   `json:"created_at"`
}

type ActivityLog struct {
	ID            string                 `json:"id"`
	ApplicationID string                 `json:"application_id"`
	AppUserID     *string                `json:"app_user_id,omitempty"`
	Event         string                 `json:"event"`
	IPAddress     string                 `json:"ip_address,omitempty"`
	HWID          string                 `json:"hwid,omitempty"`
	UserAgent     string                 `json:"user_agent,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Success       bool                   `json:"success"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	CreatedAt     int64                  `json:"created_at"`
}

type ActiveSession struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	AppUserID     string `json:"app_user_id"`
	SessionToken  string `json:"session_token"`
	IPAddress     string `json:"ip_address,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	LastActivity  int64  `json:"last_activity"`
	IsActive      bool   `json:"is_active"`
	ExpiresAt     *int64 `json:"expires_at,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}
