// Package pipeline runs the ordered checks behind client login, registration
// and verification.
package pipeline

import (
	"database/sql"
	"time"

	"keyauth/internal/engine/notify"
	"keyauth/internal/platform/metrics"
	"keyauth/internal/platform/models"
)

type UserStore interface {
	GetByID(id string) (*models.AppUser, error)
	GetByUsername(appID, username string) (*models.AppUser, error)
	GetByEmail(appID, email string) (*models.AppUser, error)
	RecordFailedAttempt(id string, at int64) error
	RecordSuccessfulLogin(id string, at int64) error
	BindHWID(id, hwid string, at int64) (bool, error)
	BeginTx() (*sql.Tx, error)
	CreateTx(tx *sql.Tx, u *models.AppUser) error
}

type BlacklistChecker interface {
	Check(app *models.Application, entryType, value string) (*models.BlacklistEntry, error)
}

type Credentials interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type LicenseRegistry interface {
	Inspect(key, appID string) (*models.LicenseKey, error)
	ConsumeTx(tx *sql.Tx, id string) (bool, error)
}

type Notifier interface {
	LogAndNotify(note notify.Notification)
}

type Deps struct {
	Users       UserStore
	Blacklist   BlacklistChecker
	Credentials Credentials
	Licenses    LicenseRegistry
	Notifier    Notifier
	Metrics     *metrics.Metrics
}

type Pipeline struct {
	users     UserStore
	blacklist BlacklistChecker
	creds     Credentials
	licenses  LicenseRegistry
	notifier  Notifier
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(d Deps) *Pipeline {
	return &Pipeline{
		users:     d.Users,
		blacklist: d.Blacklist,
		creds:     d.Credentials,
		licenses:  d.Licenses,
		notifier:  d.Notifier,
		metrics:   d.Metrics,
		now:       time.Now,
	}
}

// RequestContext is what the transport knows about the caller.
type RequestContext struct {
	IP        string
	UserAgent string
}

// Outcome is the single terminal result of a flow. Event is empty for
// outcomes that are not logged or notified.
type Outcome struct {
	Status     int
	Success    bool
	Event      string
	Message    string
	User       *models.AppUser
	HWIDLocked bool
	Details    map[string]interface{}
}

// terminal describes a notified outcome.
type terminal struct {
	flow     string
	event    string
	status   int
	success  bool
	message  string
	user     *models.AppUser
	username string
	hwid     string
	metadata map[string]interface{}
	details  map[string]interface{}
}

// finish fires exactly one notification for t and builds the outcome.
func (p *Pipeline) finish(app *models.Application, rc RequestContext, t terminal) *Outcome {
	note := notify.Notification{
		OwnerID:       app.OwnerID,
		ApplicationID: app.ID,
		Event:         t.event,
		User:          t.user,
		Username:      t.username,
		Success:       t.success,
		Metadata:      t.metadata,
		IP:            rc.IP,
		HWID:          t.hwid,
		UserAgent:     rc.UserAgent,
	}
	if !t.success {
		note.ErrorMessage = t.message
	}
	p.notifier.LogAndNotify(note)
	p.metrics.ObserveOutcome(t.flow, t.event)

	return &Outcome{
		Status:  t.status,
		Success: t.success,
		Event:   t.event,
		Message: t.message,
		User:    t.user,
		Details: t.details,
	}
}

// reject builds an outcome that is neither logged nor notified.
func (p *Pipeline) reject(flow, reason string, status int, message string, details map[string]interface{}) *Outcome {
	p.metrics.ObserveOutcome(flow, reason)
	return &Outcome{Status: status, Message: message, Details: details}
}

func isoTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}
