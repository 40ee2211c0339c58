// Package blacklist answers whether an IP, username or HWID is denied for an
// application.
package blacklist

import (
	"keyauth/internal/platform/models"
)

type Store interface {
	Find(ownerID, appID, entryType, value string) (*models.BlacklistEntry, error)
}

type Checker struct {
	store Store
}

func NewChecker(store Store) *Checker {
	return &Checker{store: store}
}

// Check returns the active entry blocking value, or nil. Entries scoped to
// the application and the owner's global entries both apply. Values are
// compared exactly; there is no CIDR or case folding.
func (c *Checker) Check(app *models.Application, entryType, value string) (*models.BlacklistEntry, error) {
	if value == "" {
		return nil, nil
	}
	return c.store.Find(app.OwnerID, app.ID, entryType, value)
}

// ValidType reports whether t is a type entries can be created with.
func ValidType(t string) bool {
	switch t {
	case models.BlacklistIP, models.BlacklistUsername, models.BlacklistHWID, models.BlacklistEmail:
		return true
	}
	return false
}
