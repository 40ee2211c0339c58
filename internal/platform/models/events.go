package models

// Activity / webhook event names.
const (
	EventUserLogin            = "user_login"
	EventLoginFailed          = "login_failed"
	EventUserRegister         = "user_register"
	EventAccountDisabled      = "account_disabled"
	EventAccountExpired       = "account_expired"
	EventVersionMismatch      = "version_mismatch"
	EventHWIDMismatch         = "hwid_mismatch"
	EventLoginBlockedIP       = "login_blocked_ip"
	EventLoginBlockedUsername = "login_blocked_username"
	EventLoginBlockedHWID     = "login_blocked_hwid"
	EventSessionStart         = "session_start"
	EventSessionEnd           = "session_end"

	// EventUserRegistration is accepted as a subscription alias of EventUserRegister.
	EventUserRegistration = "user_registration"
)

var knownEvents = map[string]bool{
	EventUserLogin:            true,
	EventLoginFailed:          true,
	EventUserRegister:         true,
	EventAccountDisabled:      true,
	EventAccountExpired:       true,
	EventVersionMismatch:      true,
	EventHWIDMismatch:         true,
	EventLoginBlockedIP:       true,
	EventLoginBlockedUsername: true,
	EventLoginBlockedHWID:     true,
	EventSessionStart:         true,
	EventSessionEnd:           true,
}

// NormalizeEvent folds aliases onto canonical names and reports whether the
// event is part of the taxonomy.
func NormalizeEvent(event string) (string, bool) {
	if event == EventUserRegistration {
		return EventUserRegister, true
	}
	return event, knownEvents[event]
}
