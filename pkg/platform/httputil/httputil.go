// Package httputil centralizes JSON response writing so every handler emits
// the same error envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "gestionale/pkg/domainerrors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders a domain error as {"error": code, "error_description": msg}.
// Internal errors omit the description so infrastructure detail never reaches
// callers; non-domain errors are collapsed to internal.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	var de *dErrors.Error
	if code != dErrors.CodeInternal && errors.As(err, &de) && de.Message != "" {
		body["error_description"] = de.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}
