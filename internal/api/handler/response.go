package handler

import (
	"encoding/json"
	"net/http"
)

// Stable error strings returned in the error field.
const (
	errMissingURL        = "Missing URL parameter"
	errInvalidEncoding   = "Invalid base64 encoded URL"
	errInvalidURL        = "Invalid URL"
	errVideoUnavailable  = "Invalid URL or video not available"
	errTimedOut          = "Request timed out"
	errInternal          = "An internal server error occurred"
	errInvalidLimitParam = "Invalid limit parameter"
)

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
		}
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func Error(w http.ResponseWriter, status int, err string, message string) {
	JSON(w, status, ErrorResponse{
		Error:   err,
		Message: message,
	})
}
