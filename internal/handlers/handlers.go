// Package handlers exposes the engine over HTTP. Every handler degrades the
// same way: storage read failures fall back to an empty document, storage
// write failures are logged and skipped, and gameplay never returns a 5xx
// unless the request itself is malformed.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/silentwatch/case-engine/internal/middleware"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// requireUser extracts the caller's user id from the request context and
// rejects the request when it is missing. Returns the id and whether the
// caller may proceed.
func requireUser(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, bool) {
	id := middleware.UserIDFromContext(r.Context())
	if id == "" {
		logger.Warn("Request without user identity",
			"method", r.Method,
			"path", r.URL.Path)
		writeError(w, logger, http.StatusBadRequest, "Missing "+middleware.HeaderUserID+" header.")
		return "", false
	}
	return id, true
}
