package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"keyauth/internal/engine/webhooks"
	"keyauth/internal/platform/config"
	"keyauth/internal/platform/models"
)

type recorderFunc func(*models.ActivityLog) error

func (f recorderFunc) Record(e *models.ActivityLog) error { return f(e) }

type dispatcherFunc func(ctx context.Context, ownerID string, p *models.WebhookPayload) webhooks.Result

func (f dispatcherFunc) Dispatch(ctx context.Context, ownerID string, p *models.WebhookPayload) webhooks.Result {
	return f(ctx, ownerID, p)
}

func TestNotifier_LogFailureDoesNotBlockWebhooks(t *testing.T) {
	var dispatched bool
	n := NewNotifier(
		recorderFunc(func(*models.ActivityLog) error { return errors.New("database is locked") }),
		dispatcherFunc(func(_ context.Context, ownerID string, p *models.WebhookPayload) webhooks.Result {
			dispatched = ownerID == "acc_1" && p.Event == models.EventLoginFailed
			return webhooks.Result{Delivered: 1}
		}),
	)

	n.LogAndNotify(Notification{OwnerID: "acc_1", ApplicationID: "app_1", Event: models.EventLoginFailed, Username: "ghost"})
	n.Wait()

	if !dispatched {
		t.Error("webhooks not dispatched after activity log failure")
	}
}

func TestNotifier_PayloadFromUser(t *testing.T) {
	email := "alice@example.com"
	hwid := "STORED"
	user := &models.AppUser{ID: "usr_1", Username: "alice", Email: &email, HWID: &hwid}

	var entry *models.ActivityLog
	var payload *models.WebhookPayload
	n := NewNotifier(
		recorderFunc(func(e *models.ActivityLog) error { entry = e; return nil }),
		dispatcherFunc(func(_ context.Context, _ string, p *models.WebhookPayload) webhooks.Result {
			payload = p
			return webhooks.Result{}
		}),
	)
	n.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	n.Send(context.Background(), Notification{
		OwnerID:       "acc_1",
		ApplicationID: "app_1",
		Event:         models.EventUserLogin,
		User:          user,
		Success:       true,
		IP:            "10.0.0.1",
		UserAgent:     "loader/1.0",
	})

	if entry == nil || entry.AppUserID == nil || *entry.AppUserID != "usr_1" || !entry.Success {
		t.Fatalf("activity entry = %+v", entry)
	}
	if payload.Timestamp != "2024-05-01T10:00:00Z" {
		t.Errorf("timestamp = %q", payload.Timestamp)
	}
	u := payload.UserData
	if u == nil || u.ID != "usr_1" || u.Email != email || u.HWID != "STORED" || u.IPAddress != "10.0.0.1" {
		t.Errorf("user data = %+v", u)
	}
}

func TestNotifier_PayloadWithoutUser(t *testing.T) {
	var payload *models.WebhookPayload
	n := NewNotifier(
		recorderFunc(func(*models.ActivityLog) error { return nil }),
		dispatcherFunc(func(_ context.Context, _ string, p *models.WebhookPayload) webhooks.Result {
			payload = p
			return webhooks.Result{}
		}),
	)

	n.Send(context.Background(), Notification{Event: models.EventLoginBlockedIP, Username: "mallory", HWID: "H1"})

	if payload.UserData == nil || payload.UserData.Username != "mallory" || payload.UserData.ID != "" || payload.UserData.HWID != "H1" {
		t.Errorf("user data = %+v", payload.UserData)
	}
}

func TestNotifier_ReturnsBeforeSlowWebhook(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	store := &singleHook{hook: &models.Webhook{ID: "wh_1", OwnerID: "acc_1", URL: srv.URL, Events: []string{models.EventUserLogin}, IsActive: true}}
	d := webhooks.NewDispatcher(store, config.WebhooksConfig{MaxAttempts: 1, BaseTimeout: 5 * time.Second}, nil)
	n := NewNotifier(recorderFunc(func(*models.ActivityLog) error { return nil }), d)

	start := time.Now()
	n.LogAndNotify(Notification{OwnerID: "acc_1", ApplicationID: "app_1", Event: models.EventUserLogin, Success: true})
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("LogAndNotify blocked for %v", elapsed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start = time.Now()
	if err := n.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() = %v while delivery is in flight", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Shutdown() waited %v for a cancelled delivery", elapsed)
	}

	// Workers have stopped; the cancelled delivery left no bookkeeping.
	if store.successes() != 0 || store.failureCount() != 0 {
		t.Errorf("bookkeeping after shutdown: %d successes, %d failures", store.successes(), store.failureCount())
	}
}

func TestNotifier_QueueFullRecordsInline(t *testing.T) {
	started := make(chan struct{}, 1)
	unblock := make(chan struct{})

	var mu sync.Mutex
	var recorded []string
	n := NewNotifier(
		recorderFunc(func(e *models.ActivityLog) error {
			mu.Lock()
			recorded = append(recorded, e.Event)
			mu.Unlock()
			return nil
		}),
		dispatcherFunc(func(ctx context.Context, _ string, p *models.WebhookPayload) webhooks.Result {
			select {
			case started <- struct{}{}:
			default:
			}
			<-unblock
			return webhooks.Result{}
		}),
		WithWorkers(1),
		WithQueueSize(1),
	)

	n.LogAndNotify(Notification{Event: models.EventUserLogin})
	<-started
	n.LogAndNotify(Notification{Event: models.EventLoginFailed})
	n.LogAndNotify(Notification{Event: models.EventHWIDMismatch})

	mu.Lock()
	inline := append([]string(nil), recorded...)
	mu.Unlock()
	if len(inline) != 2 || inline[1] != models.EventHWIDMismatch {
		t.Errorf("recorded before the worker freed up = %v, want the overflow event written inline", inline)
	}

	close(unblock)
	n.Wait()
	mu.Lock()
	defer mu.Unlock()
	if len(recorded) != 3 {
		t.Errorf("recorded = %v, want all three events", recorded)
	}
}

func TestNotifier_DropsAfterShutdown(t *testing.T) {
	var calls int
	n := NewNotifier(
		recorderFunc(func(*models.ActivityLog) error { calls++; return nil }),
		dispatcherFunc(func(context.Context, string, *models.WebhookPayload) webhooks.Result {
			calls++
			return webhooks.Result{}
		}),
	)
	if err := n.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := n.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}

	n.LogAndNotify(Notification{Event: models.EventUserLogin})
	n.Wait()
	if calls != 0 {
		t.Errorf("stores called %d times after shutdown", calls)
	}
}

func TestNotifier_SignatureEndToEnd(t *testing.T) {
	type capture struct {
		body []byte
		sig  string
	}
	got := make(chan capture, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got <- capture{body: b, sig: r.Header.Get(webhooks.SignatureHeader)}
	}))
	defer srv.Close()

	store := &singleHook{hook: &models.Webhook{ID: "wh_1", OwnerID: "acc_1", URL: srv.URL, Secret: "S", Events: []string{models.EventUserLogin}, IsActive: true}}
	n := NewNotifier(recorderFunc(func(*models.ActivityLog) error { return nil }),
		webhooks.NewDispatcher(store, config.WebhooksConfig{MaxAttempts: 1}, nil))

	n.LogAndNotify(Notification{OwnerID: "acc_1", ApplicationID: "app_1", Event: models.EventUserLogin, Username: "alice", Success: true})
	n.Wait()

	c := <-got
	if c.sig != webhooks.SignatureValue("S", c.body) {
		t.Errorf("signature %q does not match hmac of body %s", c.sig, c.body)
	}
}

type singleHook struct {
	mu     sync.Mutex
	hook   *models.Webhook
	ok     int
	failed int
}

func (s *singleHook) ListActiveByOwner(string) ([]*models.Webhook, error) {
	return []*models.Webhook{s.hook}, nil
}

func (s *singleHook) RecordSuccess(string, int64) error {
	s.mu.Lock()
	s.ok++
	s.mu.Unlock()
	return nil
}

func (s *singleHook) RecordFailure(string, int64, string) error {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
	return nil
}

func (s *singleHook) failureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func (s *singleHook) successes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ok
}
