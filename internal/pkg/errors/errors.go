package errors

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// WriteInternal logs err server-side and answers with a generic 500.
func WriteInternal(w http.ResponseWriter, err error, message string) {
	log.Error().Err(err).Msg(message)
	WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "Internal server error", nil)
}

// WriteClientError answers the client API, which reports every failure as
// {success:false, message} plus any extra fields.
func WriteClientError(w http.ResponseWriter, status int, message string, extra map[string]interface{}) {
	body := map[string]interface{}{}
	for k, v := range extra {
		body[k] = v
	}
	body["success"] = false
	body["message"] = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
