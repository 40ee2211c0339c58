package licenses

import (
	"errors"
	"regexp"
	"testing"
)

type mapChecker map[string]bool

func (m mapChecker) ExistsByKey(key string) (bool, error) { return m[key], nil }

type errChecker struct{}

func (errChecker) ExistsByKey(string) (bool, error) { return false, errors.New("db down") }

var keyPattern = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{5}(-[A-HJ-NP-Z2-9]{5}){3}$`)

func TestGenerateKey_Random(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		key, err := GenerateKey("", mapChecker{})
		if err != nil {
			t.Fatalf("GenerateKey() error = %v", err)
		}
		if !keyPattern.MatchString(key) {
			t.Fatalf("key %q does not match format", key)
		}
		if seen[key] {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = true
	}
}

func TestGenerateKey_Custom(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		taken   bool
		wantErr bool
	}{
		{"valid", "BETA_TESTERS-01", false, false},
		{"too short", "ABC", false, true},
		{"bad chars", "KEY WITH SPACE", false, true},
		{"taken", "TAKEN", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateKey(tt.key, mapChecker{tt.key: tt.taken})
			if (err != nil) != tt.wantErr {
				t.Fatalf("GenerateKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.key {
				t.Errorf("GenerateKey() = %q, want %q", got, tt.key)
			}
		})
	}
}

func TestGenerateKey_CheckerError(t *testing.T) {
	if _, err := GenerateKey("", errChecker{}); err == nil {
		t.Error("expected checker error to propagate")
	}
}

func TestGenerateQRCode(t *testing.T) {
	png, err := GenerateQRCode("ABCDE-FGHJK-LMNPQ-RSTUV", 0)
	if err != nil {
		t.Fatalf("GenerateQRCode() error = %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Error("output is not a PNG")
	}

	if _, err := GenerateQRCode("x", 64); err == nil {
		t.Error("expected error for undersized QR")
	}
}
