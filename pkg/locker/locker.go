// Package locker implements the four-digit keypad on the study locker that
// guards Arjun's diary. Wrong-code attempts are capped and a timed lockout
// is stored as an absolute timestamp in the progress document, so the state
// machine recovers cleanly across restarts.
package locker

import (
	"fmt"
	"time"

	"github.com/silentwatch/case-engine/pkg/progress"
)

const (
	// DefaultCode opens the locker in the Blackwood case.
	DefaultCode = "0604"
	// DefaultLockout is how long the keypad stays dead after too many
	// wrong codes.
	DefaultLockout = 5 * time.Minute
)

// State is the keypad view the client renders.
type State struct {
	Status       string `json:"lockerStatus"`
	AttemptsLeft int    `json:"attemptsLeft"`
	// LockoutRemaining is a mm:ss countdown, empty unless locked out.
	LockoutRemaining string     `json:"lockoutRemaining,omitempty"`
	LockoutUntil     *time.Time `json:"lockoutUntil,omitempty"`
	// DiaryUnlocked mirrors the evidence flag so the client can reveal
	// the diary without a second round trip.
	DiaryUnlocked bool `json:"diaryUnlocked"`
}

// Machine evaluates code submissions against a progress document.
type Machine struct {
	code    string
	lockout time.Duration
	now     func() time.Time
}

// New returns a Machine with the default code and lockout.
func New() *Machine {
	return &Machine{code: DefaultCode, lockout: DefaultLockout, now: time.Now}
}

// NewWithClock is New with an injectable clock for tests.
func NewWithClock(now func() time.Time) *Machine {
	m := New()
	m.now = now
	return m
}

// Status repairs stale locker state in the document and returns the current
// keypad view. The caller persists the document when Status reports changed.
func (m *Machine) Status(doc *progress.CaseProgress) (State, bool) {
	changed := doc.Repair(m.now())
	return m.view(doc), changed
}

// Submit evaluates a code entry. It returns the updated keypad view; the
// document is always mutated, so the caller must persist it.
func (m *Machine) Submit(doc *progress.CaseProgress, code string) State {
	now := m.now()
	doc.Repair(now)

	switch {
	case doc.LockerStatus == progress.LockerUnlocked:
		// Already open, nothing to do.
	case doc.LockerStatus == progress.LockerErrorLocked:
		// Keypad is dead, ignore input.
	case code == m.code:
		doc.LockerStatus = progress.LockerUnlocked
		doc.LockerAttempts = 0
		doc.LockerLockoutUntil = nil
		doc.DiaryUnlocked = true
	default:
		doc.LockerAttempts++
		if doc.LockerAttempts >= progress.LockerMaxAttempts {
			until := now.Add(m.lockout)
			doc.LockerStatus = progress.LockerErrorLocked
			doc.LockerLockoutUntil = &until
		}
	}
	return m.view(doc)
}

func (m *Machine) view(doc *progress.CaseProgress) State {
	st := State{
		Status:        doc.LockerStatus,
		AttemptsLeft:  progress.LockerMaxAttempts - doc.LockerAttempts,
		DiaryUnlocked: doc.DiaryUnlocked,
	}
	if st.Status == "" {
		st.Status = progress.LockerAvailable
	}
	if st.Status == progress.LockerErrorLocked && doc.LockerLockoutUntil != nil {
		st.AttemptsLeft = 0
		st.LockoutUntil = doc.LockerLockoutUntil
		st.LockoutRemaining = countdown(doc.LockerLockoutUntil.Sub(m.now()))
	}
	return st
}

func countdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
