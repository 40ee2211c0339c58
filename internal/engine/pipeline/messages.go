package pipeline

import "keyauth/internal/platform/models"

const (
	defaultLoginSuccess    = "Login successful!"
	defaultLoginFailed     = "Invalid credentials!"
	defaultAccountDisabled = "Account is disabled!"
	defaultAccountExpired  = "Account has expired!"
	defaultVersionMismatch = "Please update your application to the latest version!"
	defaultHWIDMismatch    = "Hardware ID mismatch detected!"

	msgAccountPaused   = "Account is temporarily paused. Contact support."
	msgBlockedIP       = "Access denied: IP address is blacklisted"
	msgBlockedUsername = "Access denied: username is blacklisted"
	msgBlockedHWID     = "Access denied: hardware ID is blacklisted"
	msgHWIDRequired    = "Hardware ID required"
	msgMissingLogin    = "Username and password are required"
	msgMissingRegister = "Username, password and license key are required"
	msgInvalidEmail    = "Invalid email format"
	msgUsernameTaken   = "Username already exists"
	msgEmailTaken      = "Email already exists"
	msgRegistered      = "Registration successful!"
	msgUserNotFound    = "User not found"
	msgUserValid       = "User is valid"
)

func orDefault(custom, fallback string) string {
	if custom != "" {
		return custom
	}
	return fallback
}

func loginSuccessMessage(app *models.Application) string {
	return orDefault(app.Messages.LoginSuccess, defaultLoginSuccess)
}

func loginFailedMessage(app *models.Application) string {
	return orDefault(app.Messages.LoginFailed, defaultLoginFailed)
}

func accountDisabledMessage(app *models.Application) string {
	return orDefault(app.Messages.AccountDisabled, defaultAccountDisabled)
}

func accountExpiredMessage(app *models.Application) string {
	return orDefault(app.Messages.AccountExpired, defaultAccountExpired)
}

func versionMismatchMessage(app *models.Application) string {
	return orDefault(app.Messages.VersionMismatch, defaultVersionMismatch)
}

func hwidMismatchMessage(app *models.Application) string {
	return orDefault(app.Messages.HWIDMismatch, defaultHWIDMismatch)
}
