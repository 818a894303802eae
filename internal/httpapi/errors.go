package httpapi

import (
	"encoding/json"
	"net/http"

	"spotd/internal/tracker"
	"spotd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// mapServiceError translates a Reconcile failure into an HTTP status and a
// client-safe message. Malformed reports are the caller's fault; anything
// else is ours.
func mapServiceError(err error) (int, string) {
	if tracker.IsMalformedReport(err) {
		return http.StatusBadRequest, err.Error()
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode(), he.Error()
	}
	return http.StatusInternalServerError, "reconciliation failed"
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
