package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/silentwatch/case-engine/internal/middleware"
	"github.com/silentwatch/case-engine/internal/storage"
	"github.com/silentwatch/case-engine/pkg/chat"
	"github.com/silentwatch/case-engine/pkg/dialogue"
	"github.com/silentwatch/case-engine/pkg/progress"
	"github.com/silentwatch/case-engine/pkg/suspect"
)

// TranscriptResponse is the GET payload: the persisted conversation, plus a
// greeting to render when nothing has been said yet. The greeting is never
// persisted; it becomes real transcript only once the suspect answers a
// question.
type TranscriptResponse struct {
	SuspectID string         `json:"suspect_id"`
	Messages  []chat.Message `json:"messages"`
	Greeting  string         `json:"greeting,omitempty"`
}

// ChatHandler serves suspect conversations.
//
// Routes:
//
//	GET  /v1/cases/{caseID}/suspects/{suspectID}/chat
//	POST /v1/cases/{caseID}/suspects/{suspectID}/chat
type ChatHandler struct {
	storage  storage.Storage
	engine   *dialogue.Engine
	registry *suspect.Registry
	logger   *slog.Logger
}

func NewChatHandler(storage storage.Storage, engine *dialogue.Engine, registry *suspect.Registry, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		storage:  storage,
		engine:   engine,
		registry: registry,
		logger:   logger,
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	caseID := r.PathValue("caseID")
	suspectID := r.PathValue("suspectID")

	s, ok := h.registry.Get(suspectID)
	if !ok {
		writeError(w, h.logger, http.StatusNotFound, "Unknown suspect.")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.transcript(w, r, userID, caseID, s)
	case http.MethodPost:
		h.turn(w, r, userID, caseID, s)
	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed.")
	}
}

func (h *ChatHandler) transcript(w http.ResponseWriter, r *http.Request, userID, caseID string, s *suspect.Suspect) {
	doc, ok := h.loadDoc(w, r, userID, caseID)
	if !ok {
		return
	}

	resp := TranscriptResponse{
		SuspectID: s.ID,
		Messages:  doc.Transcript(s.ID),
	}
	if len(resp.Messages) == 0 {
		resp.Greeting = s.Greet(middleware.UserNameFromContext(r.Context()))
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *ChatHandler) turn(w http.ResponseWriter, r *http.Request, userID, caseID string, s *suspect.Suspect) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'message' field.")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	doc, ok := h.loadDoc(w, r, userID, caseID)
	if !ok {
		return
	}

	resp, err := h.engine.Turn(r.Context(), userID, s.ID, doc, req.Message)
	if err != nil {
		writeError(w, h.logger, http.StatusNotFound, "Unknown suspect.")
		return
	}

	// Turns that failed inside the engine changed nothing; skip the write.
	if resp.Error == "" {
		if err := h.storage.SaveProgress(r.Context(), doc); err != nil {
			h.logger.Error("Failed to save progress after turn",
				"error", err, "user_id", userID, "case_id", caseID, "suspect_id", s.ID)
			writeJSON(w, h.logger, http.StatusOK, &chat.Response{
				SuspectID: s.ID,
				Reply:     dialogue.MsgDatabaseDenied,
				Error:     err.Error(),
			})
			return
		}
		if resp.CaseClosed {
			h.recordReward(r, userID, resp.RewardCode)
		}
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}

// recordReward mirrors the victory coupon onto the investigator profile so
// it survives outside the case document.
func (h *ChatHandler) recordReward(r *http.Request, userID, code string) {
	if code == "" {
		return
	}
	ctx := r.Context()
	p, err := h.storage.LoadProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger.Error("Failed to load profile", "error", err, "user_id", userID)
			return
		}
		p = &progress.Profile{UserID: userID}
	}
	if name := middleware.UserNameFromContext(ctx); name != "" {
		p.Name = name
	}
	p.CouponCode = code
	if err := h.storage.SaveProfile(ctx, p); err != nil {
		h.logger.Error("Failed to save profile", "error", err, "user_id", userID)
	}
}

func (h *ChatHandler) loadDoc(w http.ResponseWriter, r *http.Request, userID, caseID string) (*progress.CaseProgress, bool) {
	doc, err := h.storage.LoadProgress(r.Context(), userID, caseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Case not accepted.")
			return nil, false
		}
		// Keep the conversation alive on a degraded store. The turn runs
		// against a fresh document; if the write also fails the player
		// sees the in-fiction denial line rather than a 5xx.
		h.logger.Error("Failed to load progress",
			"error", err, "user_id", userID, "case_id", caseID)
		doc = progress.New(userID, caseID, time.Now())
	}
	return doc, true
}
