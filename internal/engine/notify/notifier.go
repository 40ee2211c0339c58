// Package notify records pipeline outcomes in the activity log and fans them
// out to webhooks without holding up the caller.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"keyauth/internal/engine/webhooks"
	"keyauth/internal/platform/models"
)

// Notification is one pipeline outcome. User is set when the attempt resolved
// to a stored user; otherwise only Username is known.
type Notification struct {
	OwnerID       string
	ApplicationID string
	Event         string
	User          *models.AppUser
	Username      string
	Success       bool
	ErrorMessage  string
	Metadata      map[string]interface{}
	IP            string
	HWID          string
	UserAgent     string
}

type ActivityRecorder interface {
	Record(entry *models.ActivityLog) error
}

type WebhookDispatcher interface {
	Dispatch(ctx context.Context, ownerID string, payload *models.WebhookPayload) webhooks.Result
}

const (
	defaultWorkers   = 8
	defaultQueueSize = 1024
)

type Notifier struct {
	recorder   ActivityRecorder
	dispatcher WebhookDispatcher
	now        func() time.Time

	queue   chan Notification
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
	workers sync.WaitGroup
}

type Option func(*options)

type options struct {
	workers   int
	queueSize int
}

// WithWorkers sets how many notifications are handled concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize bounds how many notifications may wait for a worker.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

func NewNotifier(recorder ActivityRecorder, dispatcher WebhookDispatcher, opts ...Option) *Notifier {
	o := options{workers: defaultWorkers, queueSize: defaultQueueSize}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		recorder:   recorder,
		dispatcher: dispatcher,
		now:        time.Now,
		queue:      make(chan Notification, o.queueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := 0; i < o.workers; i++ {
		n.workers.Add(1)
		go n.work()
	}
	return n
}

func (n *Notifier) work() {
	defer n.workers.Done()
	for note := range n.queue {
		n.Send(n.ctx, note)
		n.pending.Done()
	}
}

// LogAndNotify queues n and returns immediately. When the queue is full the
// activity log entry is written inline and webhooks are skipped. After
// Shutdown notifications are dropped.
func (n *Notifier) LogAndNotify(note Notification) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		log.Warn().Str("application_id", note.ApplicationID).Str("event", note.Event).Msg("notifier stopped, notification dropped")
		return
	}

	n.pending.Add(1)
	select {
	case n.queue <- note:
	default:
		n.pending.Done()
		log.Warn().Str("application_id", note.ApplicationID).Str("event", note.Event).Msg("notification queue full, webhooks skipped")
		n.record(note, n.now())
	}
}

// Send writes the activity log entry and then delivers webhooks. A failed log
// write does not stop delivery.
func (n *Notifier) Send(ctx context.Context, note Notification) webhooks.Result {
	at := n.now()
	n.record(note, at)
	if ctx.Err() != nil {
		return webhooks.Result{}
	}

	res := n.dispatcher.Dispatch(ctx, note.OwnerID, buildPayload(note, at))
	if res.Delivered+res.Failed > 0 {
		log.Info().
			Str("application_id", note.ApplicationID).
			Str("event", note.Event).
			Int("delivered", res.Delivered).
			Int("failed", res.Failed).
			Msg("webhooks dispatched")
	}
	return res
}

func (n *Notifier) record(note Notification, at time.Time) {
	entry := &models.ActivityLog{
		ApplicationID: note.ApplicationID,
		Event:         note.Event,
		IPAddress:     note.IP,
		HWID:          note.HWID,
		UserAgent:     note.UserAgent,
		Metadata:      note.Metadata,
		Success:       note.Success,
		ErrorMessage:  note.ErrorMessage,
		CreatedAt:     at.Unix(),
	}
	if note.User != nil {
		id := note.User.ID
		entry.AppUserID = &id
	}
	// Record logs its own failures.
	_ = n.recorder.Record(entry)
}

// Wait blocks until every notification queued so far has finished.
func (n *Notifier) Wait() {
	n.pending.Wait()
}

// Shutdown stops accepting notifications and waits for queued ones to
// finish. If ctx ends first, in-flight deliveries are cancelled and Shutdown
// returns ctx.Err() once the workers have stopped, so nothing touches the
// stores afterwards.
func (n *Notifier) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.cancel()
		return nil
	case <-ctx.Done():
		n.cancel()
		<-done
		return ctx.Err()
	}
}

func buildPayload(note Notification, at time.Time) *models.WebhookPayload {
	user := &models.WebhookUserData{
		Username:  note.Username,
		HWID:      note.HWID,
		IPAddress: note.IP,
		UserAgent: note.UserAgent,
	}
	if u := note.User; u != nil {
		user.ID = u.ID
		user.Username = u.Username
		user.Email = u.EmailValue()
		if user.HWID == "" {
			user.HWID = u.HWIDValue()
		}
	}
	if user.Username == "" && user.ID == "" {
		user = nil
	}

	return &models.WebhookPayload{
		Event:         note.Event,
		Timestamp:     at.UTC().Format(time.RFC3339),
		ApplicationID: note.ApplicationID,
		UserData:      user,
		Metadata:      note.Metadata,
		Success:       note.Success,
		ErrorMessage:  note.ErrorMessage,
	}
}
