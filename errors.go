package main

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Store-level failures. Handlers translate these into HTTP codes; the
// GraphQL resolvers surface their messages directly.
var (
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotFound           = errors.New("profile not found")
	ErrInvalidName        = errors.New("profile name must not be empty")
	ErrProfileLimit       = errors.New("profile limit reached")
)

// APIError represents a structured API error response
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
	Details string `json:"details,omitempty"`
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIError{
		Code:    code,
		Message: message,
	})
}

// writeStoreError maps a store failure onto the HTTP error envelope.
// Credential failures deliberately share one generic message so the
// response does not reveal whether a username exists.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicateUser):
		writeError(w, http.StatusBadRequest, "DUPLICATE_USER", "User already exists")
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
	case errors.Is(err, ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Profile not found")
	case errors.Is(err, ErrInvalidName):
		writeError(w, http.StatusBadRequest, "INVALID_NAME", "Profile name must not be empty")
	case errors.Is(err, ErrProfileLimit):
		writeError(w, http.StatusBadRequest, "PROFILE_LIMIT", "Profile limit reached")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
