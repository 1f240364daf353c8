package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/silentwatch/case-engine/internal/storage"
	"github.com/silentwatch/case-engine/pkg/script"
)

// ScenarioView is the restore payload for the dispatch shift.
type ScenarioView struct {
	Progress *script.Progress `json:"progress"`
	Stage    string           `json:"stage"`
	SubState string           `json:"sub_state,omitempty"`
}

// VoicelessHandler serves the voiceless-caller dispatch shift.
//
// Routes:
//
//	GET  /v1/cases/voiceless-caller/progress
//	POST /v1/cases/voiceless-caller/actions
//	POST /v1/cases/voiceless-caller/chat
type VoicelessHandler struct {
	storage storage.Storage
	runner  *script.Runner
	logger  *slog.Logger
}

func NewVoicelessHandler(storage storage.Storage, runner *script.Runner, logger *slog.Logger) *VoicelessHandler {
	return &VoicelessHandler{
		storage: storage,
		runner:  runner,
		logger:  logger,
	}
}

type actionRequest struct {
	Action   string `json:"action"`
	Location string `json:"location,omitempty"`
}

type scenarioChatRequest struct {
	Message string `json:"message"`
}

// Restore handles GET /v1/cases/voiceless-caller/progress.
func (h *VoicelessHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	doc := h.loadScenario(r, userID)
	res := h.runner.Restore(userID, doc)
	writeJSON(w, h.logger, http.StatusOK, ScenarioView{
		Progress: doc,
		Stage:    res.Stage,
		SubState: res.SubState,
	})
}

// Action handles POST /v1/cases/voiceless-caller/actions.
func (h *VoicelessHandler) Action(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Action == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'action' field.")
		return
	}

	doc := h.loadScenario(r, userID)
	res, err := h.runner.Action(userID, doc, req.Action, req.Location)
	if err != nil {
		if errors.Is(err, script.ErrBadAction) {
			writeError(w, h.logger, http.StatusConflict, err.Error())
			return
		}
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	if res.Changed {
		h.saveScenario(r, doc)
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

// Chat handles POST /v1/cases/voiceless-caller/chat: free-text orders to the
// field unit. Messages outside a live channel are dropped, not rejected.
func (h *VoicelessHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var req scenarioChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'message' field.")
		return
	}

	doc := h.loadScenario(r, userID)
	res := h.runner.Chat(userID, doc, req.Message)
	if res.Changed {
		h.saveScenario(r, doc)
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

// loadScenario never fails: the shift has no accept step, so a missing (or
// unreadable) document is simply a fresh one.
func (h *VoicelessHandler) loadScenario(r *http.Request, userID string) *script.Progress {
	doc, err := h.storage.LoadScenario(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger.Error("Failed to load scenario", "error", err, "user_id", userID)
		}
		return script.NewProgress(userID)
	}
	return doc
}

func (h *VoicelessHandler) saveScenario(r *http.Request, doc *script.Progress) {
	if err := h.storage.SaveScenario(r.Context(), doc); err != nil {
		h.logger.Error("Failed to save scenario", "error", err, "user_id", doc.UserID)
	}
}
