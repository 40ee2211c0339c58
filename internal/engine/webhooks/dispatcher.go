// Package webhooks delivers signed event payloads to owner-configured URLs.
package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"keyauth/internal/platform/config"
	"keyauth/internal/platform/metrics"
	"keyauth/internal/platform/models"
)

const (
	userAgent       = "KeyAuth-Webhook/1.0"
	maxResponseBody = 64 << 10
)

type Store interface {
	ListActiveByOwner(ownerID string) ([]*models.Webhook, error)
	RecordSuccess(id string, timestamp int64) error
	RecordFailure(id string, timestamp int64, lastError string) error
}

type Dispatcher struct {
	store      Store
	client     *http.Client
	policy     Policy
	interDelay time.Duration
	metrics    *metrics.Metrics

	formatterFor func(url string) Formatter
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

func NewDispatcher(store Store, cfg config.WebhooksConfig, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		store:        store,
		client:       &http.Client{},
		policy:       PolicyFromConfig(cfg),
		interDelay:   cfg.InterDeliveryDelay,
		metrics:      m,
		formatterFor: SelectFormatter,
		sleep:        sleepCtx,
		now:          time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Result summarizes one Dispatch call.
type Result struct {
	Delivered int
	Failed    int
}

// Dispatch sends payload to every active webhook of the owner subscribed to
// its event. Deliveries run one after another with a pause in between; a
// provider rate limit stretches that pause for the rest of the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, ownerID string, payload *models.WebhookPayload) Result {
	var res Result

	hooks, err := d.store.ListActiveByOwner(ownerID)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("failed to load webhooks")
		return res
	}

	gap := d.interDelay
	sent := 0
	for _, hook := range hooks {
		if !hook.Subscribed(payload.Event) {
			continue
		}
		if sent > 0 {
			if err := d.sleep(ctx, gap); err != nil {
				return res
			}
		}
		sent++

		hint, err := d.Deliver(ctx, hook, payload)
		if hint > gap {
			gap = hint
		}
		if err != nil {
			res.Failed++
		} else {
			res.Delivered++
		}
	}
	return res
}

// Deliver runs the retry loop for one webhook. The returned duration is the
// largest rate-limit wait the provider asked for, zero if none.
func (d *Dispatcher) Deliver(ctx context.Context, hook *models.Webhook, payload *models.WebhookPayload) (time.Duration, error) {
	formatter := d.formatterFor(hook.URL)
	body, err := formatter.Format(payload)
	if err != nil {
		d.fail(hook, err)
		return 0, err
	}

	var (
		lastErr   error
		rateLimit time.Duration
	)
	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		d.metrics.ObserveAttempt(formatter.Name())

		status, wait, err := d.attempt(ctx, hook, formatter, body, payload.Event, attempt)
		if err == nil {
			if rerr := d.store.RecordSuccess(hook.ID, d.now().Unix()); rerr != nil {
				log.Error().Err(rerr).Str("webhook_id", hook.ID).Msg("failed to record webhook success")
			}
			d.metrics.ObserveDelivery(true)
			return rateLimit, nil
		}
		lastErr = err

		retryable := RetryableStatus(status)
		if status == 0 {
			retryable = RetryableError(err)
		}

		log.Warn().Err(err).
			Str("webhook_id", hook.ID).
			Str("event", payload.Event).
			Int("attempt", attempt).
			Int("status", status).
			Bool("retryable", retryable).
			Msg("webhook attempt failed")

		if !retryable || attempt == d.policy.MaxAttempts {
			break
		}

		delay := d.policy.Delay(attempt)
		if wait > 0 {
			if wait > rateLimit {
				rateLimit = wait
			}
			if wait > delay {
				delay = wait
			}
		}
		if err := d.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	// A cancelled delivery says nothing about the target's health.
	if ctx.Err() != nil {
		log.Warn().Err(ctx.Err()).Str("webhook_id", hook.ID).Str("event", payload.Event).Msg("webhook delivery cancelled")
		return rateLimit, ctx.Err()
	}
	d.fail(hook, lastErr)
	return rateLimit, lastErr
}

func (d *Dispatcher) fail(hook *models.Webhook, err error) {
	log.Error().Err(err).Str("webhook_id", hook.ID).Str("url", hook.URL).Msg("webhook delivery failed")
	if rerr := d.store.RecordFailure(hook.ID, d.now().Unix(), err.Error()); rerr != nil {
		log.Error().Err(rerr).Str("webhook_id", hook.ID).Msg("failed to record webhook failure")
	}
	d.metrics.ObserveDelivery(false)
}

// attempt makes one POST. It returns the status (0 when no response came
// back) and any provider-requested wait.
func (d *Dispatcher) attempt(ctx context.Context, hook *models.Webhook, f Formatter, body []byte, event string, n int) (int, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, d.policy.Timeout(n))
	defer cancel()

	req, err := newRequest(ctx, hook.URL, hook.Secret, event, body)
	if err != nil {
		return 0, 0, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if f.Succeeded(resp.StatusCode) {
		return resp.StatusCode, 0, nil
	}

	var wait time.Duration
	if rl, ok := f.(RateLimitAware); ok {
		wait, _ = rl.RetryAfter(resp, respBody)
	}
	return resp.StatusCode, wait, fmt.Errorf("webhook responded with status %d", resp.StatusCode)
}

func newRequest(ctx context.Context, url, secret, event string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if event != "" {
		req.Header.Set("X-Webhook-Event", event)
	}
	if secret != "" {
		req.Header.Set(SignatureHeader, SignatureValue(secret, body))
	}
	return req, nil
}
