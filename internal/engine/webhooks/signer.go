package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	signaturePrefix = "sha256="
)

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SignatureValue is the header value receivers check: "sha256=<hex>".
func SignatureValue(secret string, payload []byte) string {
	return signaturePrefix + Sign(secret, payload)
}

// Verify checks a received header value against the exact body bytes.
func Verify(secret string, payload []byte, header string) bool {
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	return hmac.Equal([]byte(strings.TrimPrefix(header, signaturePrefix)), []byte(Sign(secret, payload)))
}
