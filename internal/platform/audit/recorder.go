// Package audit persists pipeline outcomes to the activity log.
package audit

import (
	"time"

	"github.com/rs/zerolog/log"

	"keyauth/internal/platform/models"
)

type Store interface {
	Create(entry *models.ActivityLog) error
}

type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record writes entry and returns the store error. Failures are also logged
// here so callers are free to ignore them.
func (r *Recorder) Record(entry *models.ActivityLog) error {
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}

	if err := r.store.Create(entry); err != nil {
		log.Error().Err(err).
			Str("application_id", entry.ApplicationID).
			Str("event", entry.Event).
			Msg("failed to write activity log")
		return err
	}
	return nil
}
