package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"keyauth/internal/platform/config"
	"keyauth/internal/platform/metrics"
	"keyauth/internal/platform/models"
)

type memStore struct {
	mu       sync.Mutex
	hooks    []*models.Webhook
	success  map[string]int
	failures map[string]string
}

func newMemStore(hooks ...*models.Webhook) *memStore {
	return &memStore{hooks: hooks, success: map[string]int{}, failures: map[string]string{}}
}

func (s *memStore) ListActiveByOwner(ownerID string) ([]*models.Webhook, error) {
	var out []*models.Webhook
	for _, h := range s.hooks {
		if h.OwnerID == ownerID && h.IsActive {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *memStore) RecordSuccess(id string, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.success[id]++
	return nil
}

func (s *memStore) RecordFailure(id string, _ int64, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id] = lastError
	return nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func newTestDispatcher(store Store) (*Dispatcher, *sleepRecorder) {
	d := NewDispatcher(store, config.WebhooksConfig{
		MaxAttempts:        5,
		BaseDelay:          10 * time.Millisecond,
		MaxDelay:           80 * time.Millisecond,
		BaseTimeout:        2 * time.Second,
		TimeoutStep:        time.Second,
		InterDeliveryDelay: 5 * time.Millisecond,
	}, metrics.New())
	rec := &sleepRecorder{}
	d.sleep = rec.sleep
	return d, rec
}

func hook(id, url, secret string, events ...string) *models.Webhook {
	return &models.Webhook{ID: id, OwnerID: "acc_1", URL: url, Secret: secret, Events: events, IsActive: true}
}

func loginPayload() *models.WebhookPayload {
	return &models.WebhookPayload{
		Event:         models.EventUserLogin,
		Timestamp:     "2024-05-01T10:00:00Z",
		ApplicationID: "app_1",
		UserData:      &models.WebhookUserData{ID: "usr_1", Username: "alice"},
		Success:       true,
	}
}

func TestDispatcher_SignsExactBody(t *testing.T) {
	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newMemStore(hook("wh_1", srv.URL, "topsecret", models.EventUserLogin))
	d, _ := newTestDispatcher(store)

	res := d.Dispatch(context.Background(), "acc_1", loginPayload())
	if res.Delivered != 1 || res.Failed != 0 {
		t.Fatalf("Dispatch() = %+v", res)
	}
	if gotSig != "sha256="+Sign("topsecret", gotBody) {
		t.Errorf("signature %q does not match body", gotSig)
	}
	if !Verify("topsecret", gotBody, gotSig) {
		t.Error("Verify() rejected the delivered signature")
	}
	if store.success["wh_1"] != 1 {
		t.Error("success not recorded")
	}
}

func TestDispatcher_NoSignatureWithoutSecret(t *testing.T) {
	var hasSig atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Header[SignatureHeader]
		hasSig.Store(ok)
	}))
	defer srv.Close()

	d, _ := newTestDispatcher(newMemStore(hook("wh_1", srv.URL, "", models.EventUserLogin)))
	d.Dispatch(context.Background(), "acc_1", loginPayload())

	if hasSig.Load() {
		t.Error("signature header sent without a secret")
	}
}

func TestDispatcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newMemStore(hook("wh_1", srv.URL, "", models.EventUserLogin))
	d, rec := newTestDispatcher(store)

	res := d.Dispatch(context.Background(), "acc_1", loginPayload())
	if res.Delivered != 1 {
		t.Fatalf("Dispatch() = %+v", res)
	}
	if calls.Load() != 3 {
		t.Errorf("attempts = %d, want 3", calls.Load())
	}
	if len(rec.delays) != 2 || rec.delays[1] < rec.delays[0] {
		t.Errorf("backoff delays = %v", rec.delays)
	}
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := newMemStore(hook("wh_1", srv.URL, "", models.EventUserLogin))
	d, _ := newTestDispatcher(store)

	res := d.Dispatch(context.Background(), "acc_1", loginPayload())
	if res.Failed != 1 || calls.Load() != 5 {
		t.Fatalf("Dispatch() = %+v after %d calls", res, calls.Load())
	}
	if store.failures["wh_1"] == "" {
		t.Error("failure not recorded")
	}
}

func TestDispatcher_CancelledDeliveryIsNotRecorded(t *testing.T) {
	arrived := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case arrived <- struct{}{}:
		default:
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	store := newMemStore(hook("wh_1", srv.URL, "", models.EventUserLogin))
	d, _ := newTestDispatcher(store)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-arrived
		cancel()
	}()

	_, err := d.Deliver(ctx, store.hooks[0], loginPayload())
	if err == nil {
		t.Fatal("Deliver() succeeded after cancellation")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.failures) != 0 || len(store.success) != 0 {
		t.Errorf("bookkeeping after cancellation: failures=%v success=%v", store.failures, store.success)
	}
}

func TestDispatcher_ClientErrorIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d, _ := newTestDispatcher(newMemStore(hook("wh_1", srv.URL, "", models.EventUserLogin)))
	res := d.Dispatch(context.Background(), "acc_1", loginPayload())

	if res.Failed != 1 || calls.Load() != 1 {
		t.Errorf("Dispatch() = %+v after %d calls, want one attempt", res, calls.Load())
	}
}

func TestDispatcher_RetriesRefusedConnections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	store := newMemStore(hook("wh_1", url, "", models.EventUserLogin))
	d, rec := newTestDispatcher(store)

	res := d.Dispatch(context.Background(), "acc_1", loginPayload())
	if res.Failed != 1 {
		t.Fatalf("Dispatch() = %+v", res)
	}
	if len(rec.delays) != 4 {
		t.Errorf("slept %d times, want 4 (five attempts)", len(rec.delays))
	}
}

func TestDispatcher_OnlySubscribedSequential(t *testing.T) {
	var mu sync.Mutex
	var order []string
	var inFlight, maxInFlight atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		order = append(order, r.URL.Path)
		mu.Unlock()
		inFlight.Add(-1)
	}))
	defer srv.Close()

	store := newMemStore(
		hook("wh_a", srv.URL+"/a", "", models.EventUserLogin),
		hook("wh_b", srv.URL+"/b", "", models.EventLoginFailed),
		hook("wh_c", srv.URL+"/c", "", models.EventUserLogin, models.EventLoginFailed),
	)
	d, rec := newTestDispatcher(store)

	res := d.Dispatch(context.Background(), "acc_1", loginPayload())
	if res.Delivered != 2 {
		t.Fatalf("Dispatch() = %+v", res)
	}
	if len(order) != 2 || order[0] != "/a" || order[1] != "/c" {
		t.Errorf("delivery order = %v", order)
	}
	if maxInFlight.Load() != 1 {
		t.Errorf("max concurrent deliveries = %d, want 1", maxInFlight.Load())
	}
	if len(rec.delays) != 1 || rec.delays[0] != 5*time.Millisecond {
		t.Errorf("inter-delivery delays = %v", rec.delays)
	}
}

func TestDispatcher_DiscordRateLimitGrowsDelay(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"message":"You are being rate limited.","retry_after":2.5,"global":false}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := newMemStore(
		hook("wh_1", srv.URL+"/one", "", models.EventUserLogin),
		hook("wh_2", srv.URL+"/two", "", models.EventUserLogin),
	)
	d, rec := newTestDispatcher(store)
	d.formatterFor = func(string) Formatter { return DiscordFormatter{} }

	res := d.Dispatch(context.Background(), "acc_1", loginPayload())
	if res.Delivered != 2 {
		t.Fatalf("Dispatch() = %+v", res)
	}

	// retry wait inside the first delivery, then the stretched gap before the second
	if len(rec.delays) != 2 {
		t.Fatalf("delays = %v", rec.delays)
	}
	if rec.delays[0] != 2500*time.Millisecond || rec.delays[1] != 2500*time.Millisecond {
		t.Errorf("delays = %v, want both 2.5s", rec.delays)
	}
}
