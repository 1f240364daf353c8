package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/silentwatch/case-engine/internal/storage"
	"github.com/silentwatch/case-engine/pkg/locker"
	"github.com/silentwatch/case-engine/pkg/progress"
	"github.com/silentwatch/case-engine/pkg/suspect"
)

// SuspectView is one row of the interrogation board: who can be questioned
// right now and when a cooled-down suspect comes back.
type SuspectView struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Available          bool   `json:"available"`
	QuestionsRemaining int    `json:"questionsRemaining"`
	CooldownUntil      string `json:"cooldownUntil,omitempty"`
	CooldownSeconds    int    `json:"cooldownSeconds,omitempty"`
}

// ProgressView is the rehydration payload: the repaired document plus every
// piece of state the client derives from it, computed server side so a
// reload lands exactly where the player left off.
type ProgressView struct {
	Progress   *progress.CaseProgress `json:"progress"`
	SolverStep int                    `json:"solverStep"`
	Suspects   []SuspectView          `json:"suspects"`
	Locker     locker.KeypadState     `json:"locker"`
}

// CaseHandler serves case acceptance and the progress snapshot.
//
// Routes:
//
//	POST /v1/cases/{caseID}/accept
//	GET  /v1/cases/{caseID}/progress
type CaseHandler struct {
	storage   storage.Storage
	registry  *suspect.Registry
	cooldowns *suspect.Manager
	keypad    *locker.Keypad
	logger    *slog.Logger
	now       func() time.Time
}

func NewCaseHandler(storage storage.Storage, registry *suspect.Registry, cooldowns *suspect.Manager, keypad *locker.Keypad, logger *slog.Logger) *CaseHandler {
	return &CaseHandler{
		storage:   storage,
		registry:  registry,
		cooldowns: cooldowns,
		keypad:    keypad,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock pins the handler's clock, used by tests.
func (h *CaseHandler) WithClock(now func() time.Time) *CaseHandler {
	h.now = now
	return h
}

func (h *CaseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	caseID := r.PathValue("caseID")

	switch {
	case r.Method == http.MethodPost:
		h.accept(w, r, userID, caseID)
	case r.Method == http.MethodGet:
		h.snapshot(w, r, userID, caseID)
	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed.")
	}
}

// accept creates the progress document if it does not exist yet. Accepting
// twice is a no-op that returns the existing document, so a client retry
// never resets the solve clock.
func (h *CaseHandler) accept(w http.ResponseWriter, r *http.Request, userID, caseID string) {
	ctx := r.Context()

	doc, err := h.storage.LoadProgress(ctx, userID, caseID)
	if err == nil {
		writeJSON(w, h.logger, http.StatusOK, doc)
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		h.logger.Error("Failed to load progress on accept",
			"error", err, "user_id", userID, "case_id", caseID)
	}

	doc = progress.New(userID, caseID, h.now())
	if err := h.storage.SaveProgress(ctx, doc); err != nil {
		h.logger.Error("Failed to save new progress",
			"error", err, "user_id", userID, "case_id", caseID)
	}
	writeJSON(w, h.logger, http.StatusCreated, doc)
}

func (h *CaseHandler) snapshot(w http.ResponseWriter, r *http.Request, userID, caseID string) {
	ctx := r.Context()

	doc, err := h.storage.LoadProgress(ctx, userID, caseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Case not accepted.")
			return
		}
		h.logger.Error("Failed to load progress",
			"error", err, "user_id", userID, "case_id", caseID)
		doc = progress.New(userID, caseID, h.now())
	}

	if doc.Repair(h.now()) {
		if err := h.storage.SaveProgress(ctx, doc); err != nil {
			h.logger.Error("Failed to persist repaired progress",
				"error", err, "user_id", userID, "case_id", caseID)
		}
	}

	view := ProgressView{
		Progress:   doc,
		SolverStep: doc.DeriveSolverStep(),
		Locker:     h.keypad.Screen(userID, doc),
	}
	for _, id := range h.registry.IDs() {
		s, _ := h.registry.Get(id)
		av := h.cooldowns.Verify(userID, s, doc)
		sv := SuspectView{
			ID:                 s.ID,
			Name:               s.Name,
			Available:          av.Available,
			QuestionsRemaining: av.Remaining,
		}
		if !av.Available && !av.Until.IsZero() {
			sv.CooldownUntil = av.Until.Format(time.RFC3339)
			sv.CooldownSeconds = int(av.Until.Sub(h.now()).Seconds())
		}
		view.Suspects = append(view.Suspects, sv)
	}

	writeJSON(w, h.logger, http.StatusOK, view)
}
