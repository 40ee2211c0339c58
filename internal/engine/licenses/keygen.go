package licenses

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	// No 0/O or 1/I so keys survive being read aloud or retyped.
	keyAlphabet  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	keyGroups    = 4
	keyGroupSize = 5
	maxRetries   = 5
)

var ErrKeyTaken = errors.New("license key already exists")

type KeyAvailabilityChecker interface {
	ExistsByKey(key string) (bool, error)
}

// GenerateKey returns customKey if it is well formed and unused, otherwise a
// fresh random XXXXX-XXXXX-XXXXX-XXXXX key.
func GenerateKey(customKey string, checker KeyAvailabilityChecker) (string, error) {
	if customKey != "" {
		if !isValidKey(customKey) {
			return "", &ValidationError{Msg: "license key must be 4-64 characters of letters, digits, '-' or '_'"}
		}

		exists, err := checker.ExistsByKey(customKey)
		if err != nil {
			return "", err
		}
		if exists {
			return "", ErrKeyTaken
		}
		return customKey, nil
	}

	for i := 0; i < maxRetries; i++ {
		key, err := randomKey()
		if err != nil {
			return "", err
		}

		exists, err := checker.ExistsByKey(key)
		if err != nil {
			return "", err
		}
		if !exists {
			return key, nil
		}
	}

	return "", errors.New("failed to generate unique license key")
}

func randomKey() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(keyAlphabet)))

	for g := 0; g < keyGroups; g++ {
		if g > 0 {
			b.WriteByte('-')
		}
		for i := 0; i < keyGroupSize; i++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			b.WriteByte(keyAlphabet[n.Int64()])
		}
	}
	return b.String(), nil
}

func isValidKey(key string) bool {
	if len(key) < 4 || len(key) > 64 {
		return false
	}
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
