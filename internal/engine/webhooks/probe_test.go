package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProber_Probe(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantKind    string
		wantWarning bool
	}{
		{
			name:    "accepts 2xx",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) },
		},
		{
			name: "rejects html",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				io.WriteString(w, "<!DOCTYPE html><html><body>Welcome</body></html>")
			},
			wantKind: ProbeHTML,
		},
		{
			name: "rejects html without content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusNotFound)
				io.WriteString(w, "  <html><body>404</body></html>")
			},
			wantKind: ProbeHTML,
		},
		{
			name:     "rejects bad status",
			handler:  func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) },
			wantKind: ProbeStatus,
		},
		{
			name: "timeout is a warning",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(500 * time.Millisecond):
				case <-r.Context().Done():
				}
			},
			wantWarning: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := NewProber(100 * time.Millisecond)
			warning, err := p.Probe(context.Background(), srv.URL, "secret")

			if tt.wantKind == "" && err != nil {
				t.Fatalf("Probe() error = %v", err)
			}
			if tt.wantKind != "" {
				var perr *ProbeError
				if !errors.As(err, &perr) || perr.Kind != tt.wantKind {
					t.Fatalf("Probe() error = %v, want kind %s", err, tt.wantKind)
				}
			}
			if (warning != "") != tt.wantWarning {
				t.Errorf("Probe() warning = %q, wantWarning %v", warning, tt.wantWarning)
			}
		})
	}
}

func TestProber_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewProber(time.Second).Probe(context.Background(), url, "")
	var perr *ProbeError
	if !errors.As(err, &perr) || perr.Kind != ProbeNetwork {
		t.Errorf("Probe() error = %v, want network error", err)
	}
}
