package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	apiKeyPrefix  = "ka_"
	apiKeyBytes   = 32
	displayPrefix = 10
)

// APIKey is a freshly minted application key. Raw is shown to the owner
// once; only Hash and Prefix are stored.
type APIKey struct {
	Raw    string
	Hash   string
	Prefix string
}

func GenerateAPIKey() (*APIKey, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	raw := apiKeyPrefix + base64.RawURLEncoding.EncodeToString(buf)
	return &APIKey{
		Raw:    raw,
		Hash:   HashAPIKey(raw),
		Prefix: raw[:displayPrefix] + "...",
	}, nil
}

// HashAPIKey is the lookup digest for a raw key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
