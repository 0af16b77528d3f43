// Package api provides the HTTP surface of the bridge: health reporting
// and the pairing-code page used to link a new device.
package api

import (
	"encoding/json"
	"net/http"
)

// SessionStatus is the read-only view of the messaging session the HTTP
// layer needs.
type SessionStatus interface {
	IsAuthenticated() bool
	PendingCode() string
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
