package webhooks

import (
	"testing"
)

func TestSign(t *testing.T) {
	secret := "secret"
	payload := []byte("payload")

	// Calculated using: echo -n "payload" | openssl dgst -sha256 -hmac "secret"
	expected := "b82fcb791acec57859b989b430a826488ce2e479fdf92326bd0a2e8375a42ba4"

	got := Sign(secret, payload)

	if got != expected {
		t.Errorf("Sign() = %v, want %v", got, expected)
	}
}

func TestVerify(t *testing.T) {
	body := []byte(`{"event":"user_login","success":true}`)
	header := SignatureValue("s3cret", body)

	if !Verify("s3cret", body, header) {
		t.Error("Verify() rejected its own signature")
	}
	if Verify("other", body, header) {
		t.Error("Verify() accepted a different secret")
	}
	if Verify("s3cret", append(body, ' '), header) {
		t.Error("Verify() accepted a modified body")
	}
	if Verify("s3cret", body, Sign("s3cret", body)) {
		t.Error("Verify() accepted a header without the sha256= prefix")
	}
}
