// Package dialogue runs one interrogation turn end to end: availability
// check, dynamic context, prompt assembly, model call, sentinel handling,
// and transcript bookkeeping. Failures surface as in-fiction system lines so
// the client never has to render a raw error.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/silentwatch/case-engine/pkg/chat"
	"github.com/silentwatch/case-engine/pkg/progress"
	"github.com/silentwatch/case-engine/pkg/prompts"
	"github.com/silentwatch/case-engine/pkg/solver"
	"github.com/silentwatch/case-engine/pkg/suspect"
)

// Generator produces one completion for one prompt. LLM clients implement it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrMissingAPIKey marks a generator that has no credentials configured.
// Clients wrap it so the engine can pick the right in-fiction line.
var ErrMissingAPIKey = errors.New("missing api key")

// In-fiction system lines returned instead of raw errors.
const (
	// MsgUnavailable answers a turn attempted while the suspect is on
	// cooldown or out of questions. No model call happens.
	MsgUnavailable = "I have to go now."
	// MsgVoiceOffline answers a turn when the model has no API key.
	MsgVoiceOffline = "System: Voice module offline. (Error: Missing API Key)"
	// MsgDatabaseDenied is used by callers when persisting progress fails.
	MsgDatabaseDenied = "System: Database Permission Denied."
	// MsgOneMore is appended to the penultimate answer.
	MsgOneMore = " (I have time for one more question.)"
)

// MsgTechnicalIssue wraps an unexpected model failure.
func MsgTechnicalIssue(err error) string {
	return fmt.Sprintf("System: Technical Issue. (Details: %v)", err)
}

// IntrusionLine is Rohan barging into Mrs. Pinto's chat once the diary is
// open. It unlocks Anya and the CCTV card.
const IntrusionLine = "ROHAN: Lies! I know she was here. I've sent my guys to bring her in. And I'm pulling the CCTV footage right now to prove it!"

// Intrusion events.
const (
	EventRohanIntrusion = "rohan_intrusion"
	EventAnyaUnlocked   = "anya_profile_unlocked"
	EventCCTVUnlocked   = "cctv_unlocked"
)

// Engine orchestrates interrogation turns for one case.
type Engine struct {
	llm       Generator
	registry  *suspect.Registry
	cooldowns *suspect.Manager
	solver    *solver.Flow
	logger    *slog.Logger
	intn      progress.Intn
}

// NewEngine wires a dialogue engine. The cooldown manager and solver flow
// carry their own clocks so tests can pin time.
func NewEngine(llm Generator, registry *suspect.Registry, cooldowns *suspect.Manager, flow *solver.Flow, logger *slog.Logger) *Engine {
	return &Engine{
		llm:       llm,
		registry:  registry,
		cooldowns: cooldowns,
		solver:    flow,
		logger:    logger,
		intn:      progress.DefaultIntn,
	}
}

// WithIntn overrides the randomness source, used by the lazy CCTV password
// generation in Vikram's context.
func (e *Engine) WithIntn(intn progress.Intn) *Engine {
	e.intn = intn
	return e
}

// Turn executes one dialogue turn against the given progress document. The
// document is mutated in place; the caller is responsible for persisting it.
// Errors are absorbed into in-fiction replies, so the returned error is only
// for conditions the caller must handle itself (unknown suspect).
func (e *Engine) Turn(ctx context.Context, sessionKey, suspectID string, doc *progress.CaseProgress, input string) (*chat.Response, error) {
	s, ok := e.registry.Get(suspectID)
	if !ok {
		return nil, fmt.Errorf("unknown suspect %q", suspectID)
	}

	resp := &chat.Response{SuspectID: s.ID}

	av := e.cooldowns.Verify(sessionKey, s, doc)
	if !av.Available {
		resp.Reply = MsgUnavailable
		if !av.Until.IsZero() {
			resp.CooldownUntil = av.Until.Format(time.RFC3339)
		}
		return resp, nil
	}

	prompt, err := prompts.New().
		WithPersona(s.Persona).
		WithDynamicContext(e.dynamicContext(s, doc)).
		WithSpeaker(s.Name).
		WithHistory(doc.Transcript(s.ID)).
		WithUserMessage(input).
		Build()
	if err != nil {
		resp.Reply = MsgTechnicalIssue(err)
		resp.Error = err.Error()
		return resp, nil
	}

	raw, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		// Failed turns consume no budget and leave no transcript.
		if errors.Is(err, ErrMissingAPIKey) {
			resp.Reply = MsgVoiceOffline
		} else {
			resp.Reply = MsgTechnicalIssue(err)
		}
		resp.Error = err.Error()
		e.logger.ErrorContext(ctx, "dialogue generation failed",
			slog.String("suspect_id", s.ID), slog.String("error", err.Error()))
		return resp, nil
	}

	reply := raw
	var events []string
	if s.ID == suspect.SolverID {
		res := e.solver.Apply(doc, raw)
		reply = res.Reply
		events = res.Events
		resp.CaseClosed = res.Closed
		resp.TimeTaken = res.TimeTaken
		resp.RewardCode = res.RewardCode
	}

	remaining, exhausted := e.cooldowns.Consume(sessionKey, s, doc)
	resp.QuestionsRemaining = remaining
	if s.ID != suspect.SolverID {
		switch {
		case remaining == 1:
			reply += MsgOneMore
		case exhausted:
			reply += " " + s.DepartureLine
			if until, ok := doc.CooldownFor(s.ID); ok {
				resp.CooldownUntil = until.Format(time.RFC3339)
			}
		}
	}

	doc.AppendTranscript(s.ID,
		chat.Message{Sender: chat.SenderUser, Text: input},
		chat.Message{Sender: chat.SenderAI, Text: reply},
	)

	if s.ID == "pinto" && doc.DiaryUnlocked && !doc.RohanIntrusionTriggered {
		doc.RohanIntrusionTriggered = true
		doc.AnyaProfileUnlocked = true
		doc.CCTVUnlocked = true
		doc.AppendTranscript(s.ID, chat.Message{Sender: chat.SenderAI, Text: IntrusionLine})
		resp.Intrusion = IntrusionLine
		events = append(events, EventRohanIntrusion, EventAnyaUnlocked, EventCCTVUnlocked)
	}

	resp.Reply = reply
	resp.Events = events
	return resp, nil
}
