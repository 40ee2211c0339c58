package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"keyauth/internal/platform/models"
)

const (
	ProbeHTML    = "html_response"
	ProbeNetwork = "network_error"
	ProbeStatus  = "bad_status"
)

// ProbeError explains why a target was rejected at creation time.
type ProbeError struct {
	Kind string
	Msg  string
}

func (e *ProbeError) Error() string { return e.Msg }

type Prober struct {
	client       *http.Client
	formatterFor func(url string) Formatter
	now          func() time.Time
}

func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{
		client:       &http.Client{Timeout: timeout},
		formatterFor: SelectFormatter,
		now:          time.Now,
	}
}

// Probe posts a test event to url. A timeout is tolerated and returned as a
// warning; HTML responses, network failures and unacceptable statuses are
// returned as *ProbeError.
func (p *Prober) Probe(ctx context.Context, url, secret string) (warning string, err error) {
	f := p.formatterFor(url)
	body, err := f.Format(&models.WebhookPayload{
		Event:     "webhook_test",
		Timestamp: p.now().UTC().Format(time.RFC3339),
		Metadata:  map[string]interface{}{"message": "Webhook test from KeyAuth"},
		Success:   true,
	})
	if err != nil {
		return "", err
	}

	req, err := newRequest(ctx, url, secret, "webhook_test", body)
	if err != nil {
		return "", &ProbeError{Kind: ProbeNetwork, Msg: fmt.Sprintf("Invalid webhook URL: %v", err)}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if IsTimeout(err) {
			return "Webhook endpoint did not answer the test request in time; it was saved but deliveries may be slow", nil
		}
		return "", &ProbeError{Kind: ProbeNetwork, Msg: fmt.Sprintf("Could not reach webhook URL: %v", err)}
	}
	defer resp.Body.Close()
	head, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if looksLikeHTML(resp.Header.Get("Content-Type"), head) {
		return "", &ProbeError{Kind: ProbeHTML, Msg: "Webhook URL returned an HTML page instead of accepting the request; check that it is a webhook endpoint"}
	}
	if !f.Succeeded(resp.StatusCode) {
		return "", &ProbeError{Kind: ProbeStatus, Msg: fmt.Sprintf("Webhook URL responded with status %d", resp.StatusCode)}
	}
	return "", nil
}

func looksLikeHTML(contentType string, head []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	trimmed := strings.ToLower(string(bytes.TrimSpace(head)))
	return strings.HasPrefix(trimmed, "<!doctype html") || strings.HasPrefix(trimmed, "<html")
}
