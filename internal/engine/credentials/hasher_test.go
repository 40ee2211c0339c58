package credentials

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash equals plaintext")
	}
	if !h.Verify("s3cret", hash) {
		t.Error("Verify() rejected the right password")
	}
	if h.Verify("wrong", hash) {
		t.Error("Verify() accepted a wrong password")
	}
}

func TestHasher_MalformedHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	if h.Verify("anything", "not-a-bcrypt-hash") {
		t.Error("Verify() accepted a malformed hash")
	}
	if h.Verify("anything", "") {
		t.Error("Verify() accepted an empty hash")
	}
}

func TestNewHasher_Cost(t *testing.T) {
	if got := NewHasher(0).cost; got != DefaultCost {
		t.Errorf("cost for 0 = %d, want %d", got, DefaultCost)
	}
	if got := NewHasher(99).cost; got != bcrypt.MaxCost {
		t.Errorf("cost for 99 = %d, want %d", got, bcrypt.MaxCost)
	}

	hash, _ := NewHasher(DefaultCost).Hash("pw")
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost != DefaultCost {
		t.Errorf("bcrypt.Cost() = %d, %v", cost, err)
	}
}
