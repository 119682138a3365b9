package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorEnvelope matches the api package's JSON error shape: { "error": ... }.
type errorEnvelope struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response from inside a middleware.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorEnvelope{Error: msg}); err != nil {
		slog.Error("failed to encode middleware error response", "error", err)
	}
}
