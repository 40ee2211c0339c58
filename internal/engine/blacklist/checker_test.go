package blacklist

import (
	"errors"
	"testing"

	"keyauth/internal/platform/models"
)

type call struct{ owner, app, typ, value string }

type fakeStore struct {
	calls []call
	hit   *models.BlacklistEntry
	err   error
}

func (f *fakeStore) Find(ownerID, appID, entryType, value string) (*models.BlacklistEntry, error) {
	f.calls = append(f.calls, call{ownerID, appID, entryType, value})
	return f.hit, f.err
}

func TestChecker_Check(t *testing.T) {
	app := &models.Application{ID: "app_1", OwnerID: "acc_1"}

	store := &fakeStore{hit: &models.BlacklistEntry{ID: "bl_1", Type: models.BlacklistIP, Value: "1.2.3.4"}}
	c := NewChecker(store)

	got, err := c.Check(app, models.BlacklistIP, "1.2.3.4")
	if err != nil || got == nil || got.ID != "bl_1" {
		t.Fatalf("Check() = %v, %v", got, err)
	}
	if want := (call{"acc_1", "app_1", "ip", "1.2.3.4"}); store.calls[0] != want {
		t.Errorf("store called with %+v, want %+v", store.calls[0], want)
	}
}

func TestChecker_EmptyValueSkipsLookup(t *testing.T) {
	store := &fakeStore{}
	c := NewChecker(store)

	got, err := c.Check(&models.Application{ID: "app_1"}, models.BlacklistHWID, "")
	if err != nil || got != nil {
		t.Fatalf("Check() = %v, %v", got, err)
	}
	if len(store.calls) != 0 {
		t.Error("store queried for an empty value")
	}
}

func TestChecker_StoreError(t *testing.T) {
	boom := errors.New("boom")
	c := NewChecker(&fakeStore{err: boom})

	if _, err := c.Check(&models.Application{}, models.BlacklistUsername, "eve"); !errors.Is(err, boom) {
		t.Errorf("Check() error = %v", err)
	}
}

func TestValidType(t *testing.T) {
	for _, typ := range []string{"ip", "username", "hwid", "email"} {
		if !ValidType(typ) {
			t.Errorf("ValidType(%q) = false", typ)
		}
	}
	if ValidType("cidr") {
		t.Error("ValidType(cidr) = true")
	}
}
