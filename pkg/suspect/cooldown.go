package suspect

import (
	"sync"
	"time"

	"github.com/silentwatch/case-engine/pkg/progress"
)

// Availability is the result of a pre-dialogue cooldown check.
type Availability struct {
	Available bool
	// Until is the cooldown end when Available is false.
	Until time.Time
	// Remaining is how many questions the suspect will still answer.
	Remaining int
}

// Manager tracks per-session question counts and enforces cooldowns.
// Cooldown end timestamps live in the progress document so they survive
// restarts; question counts are session state and reset when a cooldown
// expires or the process restarts.
type Manager struct {
	now    func() time.Time
	mu     sync.Mutex
	counts map[string]int
}

// NewManager returns a Manager using the real clock.
func NewManager() *Manager {
	return NewManagerWithClock(time.Now)
}

// NewManagerWithClock returns a Manager with an injectable clock for tests.
func NewManagerWithClock(now func() time.Time) *Manager {
	return &Manager{now: now, counts: make(map[string]int)}
}

func countKey(sessionKey, suspectID string) string {
	return sessionKey + ":" + suspectID
}

// Verify reports whether a suspect will take questions right now. An expired
// cooldown is cleared from the document as a side effect and the question
// count resets to zero; the caller is responsible for persisting the document
// if it needs the cleared state saved.
func (m *Manager) Verify(sessionKey string, s *Suspect, doc *progress.CaseProgress) Availability {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, ok := doc.CooldownFor(s.ID); ok {
		if now.Before(until) {
			return Availability{Available: false, Until: until}
		}
		doc.ClearCooldown(s.ID)
		m.counts[countKey(sessionKey, s.ID)] = 0
	}
	remaining := s.MaxQuestions - m.counts[countKey(sessionKey, s.ID)]
	if remaining <= 0 {
		// Budget spent but no cooldown recorded, e.g. the solver which has
		// no cooldown at all. Treat as unavailable without an end time.
		if s.CooldownMinutes == 0 {
			return Availability{Available: false}
		}
		// Self-heal: a crash between exhaustion and cooldown write leaves
		// the count stuck. Start the cooldown now.
		until := now.Add(time.Duration(s.CooldownMinutes) * time.Minute)
		doc.SetCooldown(s.ID, until)
		return Availability{Available: false, Until: until}
	}
	return Availability{Available: true, Remaining: remaining}
}

// Consume records one answered question. When the budget is exhausted it
// writes the suspect's cooldown into the document and reports exhausted=true
// so the caller can append the departure line. Remaining is the count left
// after this question.
func (m *Manager) Consume(sessionKey string, s *Suspect, doc *progress.CaseProgress) (remaining int, exhausted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := countKey(sessionKey, s.ID)
	m.counts[key]++
	remaining = s.MaxQuestions - m.counts[key]
	if remaining > 0 {
		return remaining, false
	}
	if s.CooldownMinutes > 0 {
		doc.SetCooldown(s.ID, m.now().Add(time.Duration(s.CooldownMinutes)*time.Minute))
	}
	return 0, true
}

// Remaining returns the question budget left without consuming anything.
func (m *Manager) Remaining(sessionKey string, s *Suspect) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := s.MaxQuestions - m.counts[countKey(sessionKey, s.ID)]
	if r < 0 {
		return 0
	}
	return r
}

// Reset clears the question count for one suspect in one session.
func (m *Manager) Reset(sessionKey string, s *Suspect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, countKey(sessionKey, s.ID))
}
