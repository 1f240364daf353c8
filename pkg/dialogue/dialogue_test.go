package dialogue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silentwatch/case-engine/pkg/chat"
	"github.com/silentwatch/case-engine/pkg/progress"
	"github.com/silentwatch/case-engine/pkg/solver"
	"github.com/silentwatch/case-engine/pkg/suspect"
)

// mockGenerator lets tests script the model and inspect the prompts it saw.
type mockGenerator struct {
	mu         sync.Mutex
	GenerateFn func(ctx context.Context, prompt string) (string, error)
	CallCount  int
	LastPrompt string
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastPrompt = prompt
	m.mu.Unlock()
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, prompt)
	}
	return "Fine. Ask your question.", nil
}

func testEngine(t *testing.T, gen *mockGenerator, now time.Time) *Engine {
	t.Helper()
	clock := func() time.Time { return now }
	return NewEngine(
		gen,
		suspect.Blackwood(),
		suspect.NewManagerWithClock(clock),
		solver.NewFlowWithClock(clock, func(n int) int { return 0 }),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	).WithIntn(func(n int) int { return 12345 })
}

func TestTurnHappyPath(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := &mockGenerator{}
	e := testEngine(t, gen, now)
	doc := progress.New("u1", "blackwood-manor-mystery", now)

	resp, err := e.Turn(context.Background(), "u1", "rohan", doc, "Where were you that night?")
	require.NoError(t, err)

	assert.Equal(t, "rohan", resp.SuspectID)
	assert.Equal(t, "Fine. Ask your question.", resp.Reply)
	assert.Equal(t, 7, resp.QuestionsRemaining)
	assert.Empty(t, resp.CooldownUntil)

	assert.Contains(t, gen.LastPrompt, "You are Rohan Rathore.")
	assert.True(t, strings.HasSuffix(gen.LastPrompt, "Rohan Rathore: "))

	msgs := doc.Transcript("rohan")
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.SenderUser, msgs[0].Sender)
	assert.Equal(t, "Where were you that night?", msgs[0].Text)
	assert.Equal(t, "Fine. Ask your question.", msgs[1].Text)
}

func TestTurnUnknownSuspect(t *testing.T) {
	now := time.Now()
	e := testEngine(t, &mockGenerator{}, now)
	doc := progress.New("u1", "blackwood-manor-mystery", now)

	_, err := e.Turn(context.Background(), "u1", "butler", doc, "hello")
	assert.Error(t, err)
}

func TestTurnPenultimateWarnsOneMore(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := &mockGenerator{}
	e := testEngine(t, gen, now)
	doc := progress.New("u1", "blackwood-manor-mystery", now)

	// vikram takes 6 questions; the 5th answer carries the warning.
	var resp *chat.Response
	var err error
	for i := 0; i < 5; i++ {
		resp, err = e.Turn(context.Background(), "u1", "vikram", doc, "Tell me about the sale.")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, resp.QuestionsRemaining)
	assert.True(t, strings.HasSuffix(resp.Reply, MsgOneMore))
}

func TestTurnExhaustionAppendsDepartureAndCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := &mockGenerator{}
	e := testEngine(t, gen, now)
	doc := progress.New("u1", "blackwood-manor-mystery", now)

	var resp *chat.Response
	var err error
	for i := 0; i < 6; i++ {
		resp, err = e.Turn(context.Background(), "u1", "vikram", doc, "One more thing.")
		require.NoError(t, err)
	}
	assert.Zero(t, resp.QuestionsRemaining)
	assert.Contains(t, resp.Reply, "(I have an urgent call coming in. We are done here.)")
	assert.Equal(t, now.Add(15*time.Minute).Format(time.RFC3339), resp.CooldownUntil)

	// The guard turn makes no model call.
	calls := gen.CallCount
	resp, err = e.Turn(context.Background(), "u1", "vikram", doc, "Wait!")
	require.NoError(t, err)
	assert.Equal(t, MsgUnavailable, resp.Reply)
	assert.Equal(t, calls, gen.CallCount)
	assert.Len(t, doc.Transcript("vikram"), 12, "guard turns leave no transcript")
}

func TestTurnMissingAPIKey(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := &mockGenerator{GenerateFn: func(ctx context.Context, prompt string) (string, error) {
		return "", fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}}
	e := testEngine(t, gen, now)
	doc := progress.New("u1", "blackwood-manor-mystery", now)

	resp, err := e.Turn(context.Background(), "u1", "anya", doc, "Talk to me.")
	require.NoError(t, err)
	assert.Equal(t, MsgVoiceOffline, resp.Reply)
	assert.NotEmpty(t, resp.Error)
	assert.Empty(t, doc.Transcript("anya"), "failed turns leave no transcript")

	// And no budget was consumed.
	gen.GenerateFn = nil
	resp, err = e.Turn(context.Background(), "u1", "anya", doc, "Talk to me.")
	require.NoError(t, err)
	assert.Equal(t, 7, resp.QuestionsRemaining)
}

func TestTurnTechnicalIssue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := &mockGenerator{GenerateFn: func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("upstream timeout")
	}}
	e := testEngine(t, gen, now)
	doc := progress.New("u1", "blackwood-manor-mystery", now)

	resp, err := e.Turn(context.Background(), "u1", "seraphina", doc, "What do the spirits say?")
	require.NoError(t, err)
	assert.Equal(t, "System: Technical Issue. (Details: upstream timeout)", resp.Reply)
}

func TestTurnAnyaContextFollowsCCTV(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := &mockGenerator{}
	e := testEngine(t, gen, now)
	doc := progress.New("u1", "blackwood-manor-mystery", now)

	_, err := e.Turn(context.Background(), "u1", "anya", doc, "Were you there?")
	require.NoError(t, err)
	assert.NotContains(t, gen.LastPrompt, "You are CAUGHT")

	doc.CCTVViewed = true
	_, err = e.Turn(context.Background(), "u1", "anya", doc, "I saw the footage.")
	require.NoError(t, err)
	assert.Contains(t, gen.LastPrompt, "You are CAUGHT")
}

func TestTurnVikramRevealsCodeOnlyWhenUnlocked(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := &mockGenerator{}
	e := testEngine(t, gen, now)
	doc := progress.New("u1", "blackwood-manor-mystery", now)

	_, err := e.Turn(context.Background(), "u1", "vikram", doc, "Give me the CCTV code.")
	require.NoError(t, err)
	assert.Contains(t, gen.LastPrompt, "you MUST REFUSE")
	assert.Empty(t, doc.CCTVPassword, "refusal path never generates the code")

	doc.CCTVUnlocked = true
	_, err = e.Turn(context.Background(), "u1", "vikram", doc, "The code. Now.")
	require.NoError(t, err)
	assert.Contains(t, gen.LastPrompt, "The Access Code is: 22345.")
	assert.Equal(t, "22345", doc.CCTVPassword)
}

func TestTurnPintoIntrusion(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := &mockGenerator{}
	e := testEngine(t, gen, now)
	doc := progress.New("u1", "blackwood-manor-mystery", now)
	doc.DiaryUnlocked = true

	resp, err := e.Turn(context.Background(), "u1", "pinto", doc, "I read the diary.")
	require.NoError(t, err)

	assert.True(t, doc.RohanIntrusionTriggered)
	assert.True(t, doc.AnyaProfileUnlocked)
	assert.True(t, doc.CCTVUnlocked)
	assert.Equal(t, IntrusionLine, resp.Intrusion)
	assert.Contains(t, resp.Events, EventRohanIntrusion)
	assert.Contains(t, resp.Events, EventAnyaUnlocked)
	assert.Contains(t, resp.Events, EventCCTVUnlocked)

	msgs := doc.Transcript("pinto")
	require.Len(t, msgs, 3)
	assert.Equal(t, IntrusionLine, msgs[2].Text)

	// Fires once only.
	resp, err = e.Turn(context.Background(), "u1", "pinto", doc, "Who was that?")
	require.NoError(t, err)
	assert.Empty(t, resp.Intrusion)
	assert.NotContains(t, resp.Events, EventRohanIntrusion)
}

func TestTurnSolverFlow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reply := "[ID:PINTO] You have identified one. Who was her accomplice?"
	gen := &mockGenerator{GenerateFn: func(ctx context.Context, prompt string) (string, error) {
		return reply, nil
	}}
	e := testEngine(t, gen, now)
	doc := progress.New("u1", "blackwood-manor-mystery", now)

	resp, err := e.Turn(context.Background(), "u1", "solver", doc, "It was Mrs. Pinto.")
	require.NoError(t, err)
	assert.Contains(t, gen.LastPrompt, "CURRENT STEP: 0")
	assert.Equal(t, "You have identified one. Who was her accomplice?", resp.Reply)
	assert.Contains(t, resp.Events, solver.EventPartialPinto)
	assert.True(t, doc.PartialPinto)

	reply = "[ID:ANYA] [CORRECT] Correct. It was the housekeeper and her granddaughter. Now, tell me. Why did they do it?"
	resp, err = e.Turn(context.Background(), "u1", "solver", doc, "Anya helped her.")
	require.NoError(t, err)
	assert.Contains(t, gen.LastPrompt, "ALREADY CREDITED: The housekeeper")
	assert.Contains(t, resp.Events, solver.EventKillerFound)
	assert.True(t, doc.KillerIdentified)
	assert.NotContains(t, resp.Reply, "[CORRECT]")
}

func TestTurnSolverClosesCase(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(42 * time.Minute)
	gen := &mockGenerator{GenerateFn: func(ctx context.Context, prompt string) (string, error) {
		return "[CORRECT] Case Closed.", nil
	}}
	e := testEngine(t, gen, end)
	doc := progress.New("u1", "blackwood-manor-mystery", start)
	doc.KillerIdentified = true
	doc.MotiveIdentified = true
	doc.ModusOperandiIdentified = true

	resp, err := e.Turn(context.Background(), "u1", "solver", doc, "The ghost was fake. It was Anya.")
	require.NoError(t, err)
	assert.True(t, resp.CaseClosed)
	assert.Equal(t, "0h 42m 0s", resp.TimeTaken)
	assert.Equal(t, "AAAAA", resp.RewardCode)
	assert.True(t, doc.CaseClosed)

	// Transcript keeps the clean reply for replay on the victory screen.
	msgs := doc.Transcript("solver")
	assert.Equal(t, "Case Closed.", msgs[len(msgs)-1].Text)
}
