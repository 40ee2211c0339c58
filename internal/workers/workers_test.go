package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"keyauth/internal/engine/notify"
	"keyauth/internal/engine/sessions"
	"keyauth/internal/platform/database/dbtest"
	"keyauth/internal/platform/models"
	"keyauth/internal/platform/repositories"
)

type nopNotifier struct{}

func (nopNotifier) LogAndNotify(notify.Notification) {}

type fakeSweeper struct {
	got int64
	err error
}

func (f *fakeSweeper) DeactivateExpired(now int64) (int64, error) {
	f.got = now
	return 2, f.err
}

func TestExpireLicenses(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := &fakeSweeper{}
	if err := ExpireLicenses(s, now); err != nil {
		t.Fatalf("ExpireLicenses() error = %v", err)
	}
	if s.got != now.Unix() {
		t.Errorf("swept at %d, want %d", s.got, now.Unix())
	}

	s.err = errors.New("db down")
	if err := ExpireLicenses(s, now); err == nil {
		t.Error("expected store error to surface")
	}
}

func TestReapSessions(t *testing.T) {
	db := dbtest.New(t)
	repo := repositories.NewSessionRepository(db)
	users := repositories.NewAppUserRepository(db)
	owner := &models.Account{Email: "owner@example.com", PasswordHash: "x"}
	if err := repositories.NewAccountRepository(db).Create(owner); err != nil {
		t.Fatalf("create account: %v", err)
	}
	app := &models.Application{OwnerID: owner.ID, Name: "Loader", APIKeyHash: "h", Version: "1.0", IsActive: true}
	if err := repositories.NewApplicationRepository(db).Create(app); err != nil {
		t.Fatalf("create app: %v", err)
	}
	user := &models.AppUser{ApplicationID: app.ID, Username: "alice", PasswordHash: "x", IsActive: true}
	if err := users.Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	tracker := sessions.NewTracker(repo, users, nopNotifier{}, nil, time.Minute)
	res, err := tracker.Track(app, sessions.TrackRequest{UserID: user.ID, SessionToken: "tok", Action: sessions.ActionStart}, sessions.Caller{})
	if err != nil || !res.Success {
		t.Fatalf("start = %+v, %v", res, err)
	}

	if err := ReapSessions(tracker, time.Now()); err != nil {
		t.Fatalf("ReapSessions() error = %v", err)
	}
	if s, _ := repo.GetByToken(app.ID, "tok"); s == nil || !s.IsActive {
		t.Fatal("fresh session was reaped")
	}

	if err := ReapSessions(tracker, time.Now().Add(2*time.Minute)); err != nil {
		t.Fatalf("ReapSessions() error = %v", err)
	}
	if s, _ := repo.GetByToken(app.ID, "tok"); s == nil || s.IsActive {
		t.Error("idle session is still active")
	}
}

func TestEvery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan struct{})

	go func() {
		Every(ctx, "test", 5*time.Millisecond, func(time.Time) error {
			if runs.Add(1) == 1 {
				return errors.New("first run fails")
			}
			return nil
		})
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
