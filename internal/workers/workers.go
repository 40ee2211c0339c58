// Package workers holds the periodic maintenance jobs run by cmd/worker.
package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// SessionReaper deactivates sessions whose idle window has passed.
type SessionReaper interface {
	Reap(now time.Time) (int64, error)
}

// LicenseSweeper deactivates license keys past their expiry.
type LicenseSweeper interface {
	DeactivateExpired(now int64) (int64, error)
}

// ReapSessions closes idle sessions and logs how many were closed.
func ReapSessions(r SessionReaper, now time.Time) error {
	n, err := r.Reap(now)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int64("sessions", n).Msg("reaped idle sessions")
	}
	return nil
}

// ExpireLicenses marks expired license keys inactive. Registration already
// refuses expired keys; this keeps the is_active column honest for listings.
func ExpireLicenses(s LicenseSweeper, now time.Time) error {
	n, err := s.DeactivateExpired(now.Unix())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int64("license_keys", n).Msg("deactivated expired license keys")
	}
	return nil
}

// Every runs job on each tick until ctx is cancelled. Failures are logged
// and the loop keeps going.
func Every(ctx context.Context, name string, interval time.Duration, job func(now time.Time) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Str("job", name).Dur("interval", interval).Msg("worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("job", name).Msg("worker stopped")
			return
		case now := <-ticker.C:
			if err := job(now); err != nil {
				log.Error().Err(err).Str("job", name).Msg("worker run failed")
			}
		}
	}
}
