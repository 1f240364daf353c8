package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/silentwatch/case-engine/internal/storage"
	"github.com/silentwatch/case-engine/pkg/locker"
)

// LockerHandler relays keypad presses to the locker state machine.
//
// Route: POST /v1/cases/{caseID}/locker
type LockerHandler struct {
	storage storage.Storage
	keypad  *locker.Keypad
	logger  *slog.Logger
}

func NewLockerHandler(storage storage.Storage, keypad *locker.Keypad, logger *slog.Logger) *LockerHandler {
	return &LockerHandler{
		storage: storage,
		keypad:  keypad,
		logger:  logger,
	}
}

type lockerRequest struct {
	Key string `json:"key"`
}

func (h *LockerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	caseID := r.PathValue("caseID")

	var req lockerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'key' field.")
		return
	}

	doc, err := h.storage.LoadProgress(r.Context(), userID, caseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Case not accepted.")
			return
		}
		h.logger.Error("Failed to load progress",
			"error", err, "user_id", userID, "case_id", caseID)
		writeError(w, h.logger, http.StatusNotFound, "Case not accepted.")
		return
	}

	state, err := h.keypad.Press(userID, doc, req.Key)
	if errors.Is(err, locker.ErrBadKey) {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid key.")
		return
	}

	// Every press is persisted. Most presses only move the buffer, but an
	// enter can burn an attempt or start a lockout, and re-saving an
	// unchanged document is cheaper than telling the difference.
	if err := h.storage.SaveProgress(r.Context(), doc); err != nil {
		h.logger.Error("Failed to save progress after key press",
			"error", err, "user_id", userID, "case_id", caseID)
	}

	writeJSON(w, h.logger, http.StatusOK, state)
}
