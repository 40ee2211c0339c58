// Package sessions tracks client-reported application sessions.
package sessions

import (
	"fmt"
	"net/http"
	"time"

	"keyauth/internal/engine/notify"
	"keyauth/internal/platform/metrics"
	"keyauth/internal/platform/models"
)

const (
	ActionStart     = "start"
	ActionHeartbeat = "heartbeat"
	ActionEnd       = "end"
)

type Store interface {
	Create(s *models.ActiveSession) error
	GetByToken(appID, token string) (*models.ActiveSession, error)
	Reactivate(s *models.ActiveSession) error
	Touch(appID, token string, at int64, expiresAt *int64) (bool, error)
	End(appID, token string, at int64) (bool, error)
	ReapExpired(now int64) (int64, error)
}

type UserStore interface {
	GetByID(id string) (*models.AppUser, error)
}

type Notifier interface {
	LogAndNotify(note notify.Notification)
}

type TrackRequest struct {
	UserID       string
	SessionToken string
	Action       string
}

type Caller struct {
	IP        string
	UserAgent string
}

type Result struct {
	Status  int
	Success bool
	Message string
	Session *models.ActiveSession
}

type Tracker struct {
	store       Store
	users       UserStore
	notifier    Notifier
	metrics     *metrics.Metrics
	idleTimeout time.Duration
	now         func() time.Time
}

// NewTracker returns a tracker whose sessions expire idleTimeout after the
// last start or heartbeat. A zero idleTimeout leaves sessions open until
// they are ended.
func NewTracker(store Store, users UserStore, notifier Notifier, m *metrics.Metrics, idleTimeout time.Duration) *Tracker {
	return &Tracker{
		store:       store,
		users:       users,
		notifier:    notifier,
		metrics:     m,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

func (t *Tracker) expiry(now time.Time) *int64 {
	if t.idleTimeout <= 0 {
		return nil
	}
	at := now.Add(t.idleTimeout).Unix()
	return &at
}

func fail(status int, message string) *Result {
	return &Result{Status: status, Message: message}
}

// Track applies one start, heartbeat or end action for app.
func (t *Tracker) Track(app *models.Application, req TrackRequest, c Caller) (*Result, error) {
	if req.SessionToken == "" {
		return fail(http.StatusBadRequest, "session_token is required"), nil
	}

	var (
		res *Result
		err error
	)
	switch req.Action {
	case ActionStart:
		res, err = t.start(app, req, c)
	case ActionHeartbeat:
		res, err = t.heartbeat(app, req)
	case ActionEnd:
		res, err = t.end(app, req, c)
	default:
		return fail(http.StatusBadRequest, "action must be start, heartbeat or end"), nil
	}
	if err == nil && res.Success {
		t.metrics.ObserveOutcome(metrics.FlowSession, req.Action)
	}
	return res, err
}

func (t *Tracker) start(app *models.Application, req TrackRequest, c Caller) (*Result, error) {
	if req.UserID == "" {
		return fail(http.StatusBadRequest, "user_id is required to start a session"), nil
	}

	user, err := t.users.GetByID(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil || user.ApplicationID != app.ID {
		return fail(http.StatusNotFound, "User not found"), nil
	}

	now := t.now()
	existing, err := t.store.GetByToken(app.ID, req.SessionToken)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	session := existing
	if session == nil {
		session = &models.ActiveSession{ApplicationID: app.ID, SessionToken: req.SessionToken}
	}
	session.AppUserID = user.ID
	session.IPAddress = c.IP
	session.UserAgent = c.UserAgent
	session.LastActivity = now.Unix()
	session.IsActive = true
	session.ExpiresAt = t.expiry(now)

	if existing == nil {
		err = t.store.Create(session)
	} else {
		err = t.store.Reactivate(session)
	}
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	t.notifier.LogAndNotify(notify.Notification{
		OwnerID:       app.OwnerID,
		ApplicationID: app.ID,
		Event:         models.EventSessionStart,
		User:          user,
		Username:      user.Username,
		Success:       true,
		Metadata:      map[string]interface{}{"session_id": session.ID},
		IP:            c.IP,
		UserAgent:     c.UserAgent,
	})
	return &Result{Status: http.StatusOK, Success: true, Message: "Session started", Session: session}, nil
}

func (t *Tracker) heartbeat(app *models.Application, req TrackRequest) (*Result, error) {
	now := t.now()
	ok, err := t.store.Touch(app.ID, req.SessionToken, now.Unix(), t.expiry(now))
	if err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	if !ok {
		return fail(http.StatusNotFound, "Session not found"), nil
	}
	return &Result{Status: http.StatusOK, Success: true, Message: "Session updated"}, nil
}

func (t *Tracker) end(app *models.Application, req TrackRequest, c Caller) (*Result, error) {
	session, err := t.store.GetByToken(app.ID, req.SessionToken)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil || !session.IsActive {
		return fail(http.StatusNotFound, "Session not found"), nil
	}

	now := t.now().Unix()
	ok, err := t.store.End(app.ID, req.SessionToken, now)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	if !ok {
		// Ended concurrently; only one caller reports it.
		return fail(http.StatusNotFound, "Session not found"), nil
	}
	session.IsActive = false
	session.LastActivity = now

	user, err := t.users.GetByID(session.AppUserID)
	if err != nil {
		return nil, fmt.Errorf("load session user: %w", err)
	}
	note := notify.Notification{
		OwnerID:       app.OwnerID,
		ApplicationID: app.ID,
		Event:         models.EventSessionEnd,
		User:          user,
		Success:       true,
		Metadata:      map[string]interface{}{"session_id": session.ID},
		IP:            c.IP,
		UserAgent:     c.UserAgent,
	}
	if user != nil {
		note.Username = user.Username
	}
	t.notifier.LogAndNotify(note)

	return &Result{Status: http.StatusOK, Success: true, Message: "Session ended", Session: session}, nil
}

// Reap deactivates sessions whose idle expiry has passed by now.
func (t *Tracker) Reap(now time.Time) (int64, error) {
	return t.store.ReapExpired(now.Unix())
}
