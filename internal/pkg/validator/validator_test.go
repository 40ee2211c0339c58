package validator

import "testing"

func TestEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"player@example.com", false},
		{"", true},
		{"not-an-email", true},
		{"Name <player@example.com>", true},
		{"player@localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := Email(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("Email(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestWebhookURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://hooks.example.com/in", false},
		{"http://127.0.0.1:9000/hook", false},
		{"ftp://example.com", true},
		{"https://", true},
		{"", true},
		{"://bad", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := WebhookURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("WebhookURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
