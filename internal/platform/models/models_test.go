package models

import "testing"

func TestLicenseKey_IsValidAt(t *testing.T) {
	now := int64(1_700_000_000)
	tests := []struct {
		name string
		key  LicenseKey
		want bool
	}{
		{"valid", LicenseKey{IsActive: true, ExpiresAt: now + 10, MaxUsers: 2, CurrentUsers: 1}, true},
		{"inactive", LicenseKey{IsActive: false, ExpiresAt: now + 10, MaxUsers: 2}, false},
		{"expired at boundary", LicenseKey{IsActive: true, ExpiresAt: now, MaxUsers: 2}, false},
		{"full", LicenseKey{IsActive: true, ExpiresAt: now + 10, MaxUsers: 1, CurrentUsers: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.IsValidAt(now); got != tt.want {
				t.Errorf("IsValidAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeEvent(t *testing.T) {
	if ev, ok := NormalizeEvent("user_registration"); !ok || ev != EventUserRegister {
		t.Errorf("alias not folded: %q %v", ev, ok)
	}
	if _, ok := NormalizeEvent("link_clicked"); ok {
		t.Error("unknown event accepted")
	}
	if ev, ok := NormalizeEvent(EventHWIDMismatch); !ok || ev != EventHWIDMismatch {
		t.Errorf("known event rejected: %q", ev)
	}
}

func TestWebhook_Subscribed(t *testing.T) {
	w := &Webhook{Events: []string{EventUserLogin, EventLoginFailed}}
	if !w.Subscribed(EventLoginFailed) {
		t.Error("expected subscription to login_failed")
	}
	if w.Subscribed(EventSessionEnd) {
		t.Error("unexpected subscription to session_end")
	}
}

func TestWebhook_SubscribedAlias(t *testing.T) {
	legacy := &Webhook{Events: []string{EventUserRegistration}}
	if !legacy.Subscribed(EventUserRegister) {
		t.Error("user_registration subscription should receive user_register")
	}

	w := &Webhook{Events: []string{EventUserRegister}}
	if !w.Subscribed(EventUserRegistration) {
		t.Error("user_register subscription should match the alias")
	}
}
