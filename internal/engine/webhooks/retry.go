package webhooks

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"syscall"
	"time"

	"keyauth/internal/platform/config"
)

// Policy bounds the attempts made for a single delivery.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	BaseTimeout time.Duration
	TimeoutStep time.Duration
}

func PolicyFromConfig(cfg config.WebhooksConfig) Policy {
	p := Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		BaseTimeout: cfg.BaseTimeout,
		TimeoutStep: cfg.TimeoutStep,
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = 30 * time.Second
	}
	if p.BaseTimeout <= 0 {
		p.BaseTimeout = 10 * time.Second
	}
	return p
}

// Delay is the wait before retry number attempt (1-based): the base delay
// doubled per attempt, capped, plus up to half a base delay of jitter.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if half := int64(p.BaseDelay / 2); half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

// Timeout grows with each attempt so slow endpoints get more room.
func (p Policy) Timeout(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseTimeout + time.Duration(attempt-1)*p.TimeoutStep
}

// RetryableStatus covers 5xx, 408, 429 and 0 (no response).
func RetryableStatus(code int) bool {
	switch {
	case code == 0, code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}

// RetryableError reports network-level failures worth another attempt:
// timeouts, DNS failures, resets, refusals and truncated responses.
func RetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// IsTimeout reports whether err is a client-side timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
