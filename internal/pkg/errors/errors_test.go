package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusNotFound, ErrCodeNotFound, "Application not found", map[string]string{"id": "app_1"})

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "Not Found" || body.Code != ErrCodeNotFound || body.Message != "Application not found" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestWriteInternal_HidesCause(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteInternal(rr, fmt.Errorf("disk I/O error"), "failed to load user")

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	var body ErrorResponse
	json.NewDecoder(rr.Body).Decode(&body)
	if body.Message != "Internal server error" {
		t.Errorf("message leaked cause: %q", body.Message)
	}
}

func TestWriteClientError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteClientError(rr, http.StatusBadRequest, "Please update", map[string]interface{}{
		"required_version": "2.0",
		"success":          true,
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
	var body map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&body)
	if body["success"] != false || body["message"] != "Please update" || body["required_version"] != "2.0" {
		t.Errorf("unexpected body: %v", body)
	}
}
