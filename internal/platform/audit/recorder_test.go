package audit

import (
	"errors"
	"testing"

	"keyauth/internal/platform/models"
)

type stubStore struct {
	entries []*models.ActivityLog
	err     error
}

func (s *stubStore) Create(entry *models.ActivityLog) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func TestRecorder_StampsTime(t *testing.T) {
	store := &stubStore{}
	r := NewRecorder(store)

	if err := r.Record(&models.ActivityLog{ApplicationID: "app_1", Event: models.EventUserLogin, Success: true}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(store.entries) != 1 || store.entries[0].CreatedAt == 0 {
		t.Errorf("entry not stored with timestamp: %+v", store.entries)
	}
}

func TestRecorder_ReturnsStoreError(t *testing.T) {
	boom := errors.New("database is locked")
	r := NewRecorder(&stubStore{err: boom})

	if err := r.Record(&models.ActivityLog{ApplicationID: "app_1", Event: models.EventLoginFailed}); !errors.Is(err, boom) {
		t.Errorf("Record() error = %v, want %v", err, boom)
	}
}
