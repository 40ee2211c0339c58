package webhooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"keyauth/internal/platform/config"
)

func TestPolicy_Delay(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	tests := []struct {
		attempt int
		min     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.attempt), func(t *testing.T) {
			got := p.Delay(tt.attempt)
			if got < tt.min || got >= tt.min+p.BaseDelay/2 {
				t.Errorf("Delay(%d) = %v, want [%v, %v)", tt.attempt, got, tt.min, tt.min+p.BaseDelay/2)
			}
		})
	}
}

func TestPolicy_Timeout(t *testing.T) {
	p := Policy{BaseTimeout: 10 * time.Second, TimeoutStep: 5 * time.Second}
	if got := p.Timeout(1); got != 10*time.Second {
		t.Errorf("Timeout(1) = %v", got)
	}
	if got := p.Timeout(3); got != 20*time.Second {
		t.Errorf("Timeout(3) = %v", got)
	}
}

func TestPolicyFromConfig_Defaults(t *testing.T) {
	p := PolicyFromConfig(config.WebhooksConfig{})
	if p.MaxAttempts != 5 || p.BaseDelay != time.Second || p.MaxDelay != 30*time.Second || p.BaseTimeout != 10*time.Second {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestRetryableStatus(t *testing.T) {
	retry := []int{0, 408, 429, 500, 502, 503, 504}
	noRetry := []int{200, 400, 401, 403, 404, 410, 422}

	for _, code := range retry {
		if !RetryableStatus(code) {
			t.Errorf("RetryableStatus(%d) = false", code)
		}
	}
	for _, code := range noRetry {
		if RetryableStatus(code) {
			t.Errorf("RetryableStatus(%d) = true", code)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"dns", &net.DNSError{Err: "no such host", Name: "nope.invalid"}, true},
		{"net timeout", &net.OpError{Op: "dial", Err: timeoutErr{}}, true},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"eof", io.ErrUnexpectedEOF, true},
		{"other", errors.New("unsupported protocol scheme"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RetryableError(tt.err); got != tt.want {
				t.Errorf("RetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
