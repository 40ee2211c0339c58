package auth

import (
	"testing"
	"time"

	"keyauth/internal/platform/config"
)

func newService(ttl time.Duration) *TokenService {
	return NewTokenService(config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  ttl,
		RefreshTokenTTL: time.Hour,
	})
}

func TestTokenService_AccessRoundTrip(t *testing.T) {
	s := newService(time.Minute)

	token, err := s.GenerateAccessToken("acc_1", "owner@example.com", true)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.AccountID != "acc_1" || claims.Email != "owner@example.com" || !claims.IsOwner {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestTokenService_RejectsExpiredAndForeign(t *testing.T) {
	expired, _ := newService(-time.Minute).GenerateAccessToken("acc_1", "a@b.co", true)
	if _, err := newService(time.Minute).ValidateToken(expired); err == nil {
		t.Error("expired token accepted")
	}

	other := NewTokenService(config.JWTConfig{Secret: "other", AccessTokenTTL: time.Minute})
	foreign, _ := other.GenerateAccessToken("acc_1", "a@b.co", true)
	if _, err := newService(time.Minute).ValidateToken(foreign); err == nil {
		t.Error("token signed with another secret accepted")
	}
}

func TestTokenService_RefreshIsNotAccess(t *testing.T) {
	s := newService(time.Minute)

	refresh, err := s.GenerateRefreshToken("acc_9")
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	if _, err := s.ValidateToken(refresh); err == nil {
		t.Error("refresh token accepted as access token")
	}

	id, err := s.ValidateRefreshToken(refresh)
	if err != nil || id != "acc_9" {
		t.Errorf("ValidateRefreshToken() = %q, %v", id, err)
	}

	access, _ := s.GenerateAccessToken("acc_9", "a@b.co", true)
	if _, err := s.ValidateRefreshToken(access); err == nil {
		t.Error("access token accepted as refresh token")
	}
}
