// Package shared centralizes domain error translation to HTTP responses so
// every handler emits the same JSON envelopes.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "crowdvault/pkg/domain-errors"
)

// WriteError maps a coded domain error onto an HTTP status and a stable
// JSON error envelope.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	message := "internal error"

	var de *dErrors.Error
	if errors.As(err, &de) {
		code = de.Code
		message = de.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(code),
		"message": message,
	})
}

// WriteJSON encodes a successful response body.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
