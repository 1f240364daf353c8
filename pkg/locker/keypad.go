package locker

import (
	"fmt"
	"sync"

	"github.com/silentwatch/case-engine/pkg/progress"
)

// Keypad screen texts.
const (
	DisplayEnterCode = "ENTER CODE"
	DisplayError     = "ERROR"
	DisplayOpen      = "OPEN"
)

// Keypad keys besides the digits.
const (
	KeyClear = "clear"
	KeyEnter = "enter"
)

// ErrBadKey rejects anything that is not a digit, clear, or enter.
var ErrBadKey = fmt.Errorf("locker: invalid key")

// KeypadState is what the client renders after a key press.
type KeypadState struct {
	State
	// Display is the screen text: the partial code, ENTER CODE, ERROR,
	// OPEN, or a LOCKED countdown.
	Display string `json:"display"`
}

// Keypad holds per-session input buffers in front of a Machine. Buffers are
// display state only and are never persisted; a reconnecting client starts
// from an empty screen, which is also how the physical prop behaves.
type Keypad struct {
	machine *Machine

	mu      sync.Mutex
	buffers map[string]string
	errored map[string]bool
}

// NewKeypad wraps a Machine with per-session input buffers.
func NewKeypad(m *Machine) *Keypad {
	return &Keypad{
		machine: m,
		buffers: make(map[string]string),
		errored: make(map[string]bool),
	}
}

// Press applies one key press for a session and returns the new screen
// state. The document may be mutated (attempts, lockout, unlock); the caller
// persists it.
func (k *Keypad) Press(sessionKey string, doc *progress.CaseProgress, key string) (KeypadState, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if doc.Repair(k.machine.now()) {
		// Lockout expired; back to an empty screen.
		k.buffers[sessionKey] = ""
		k.errored[sessionKey] = false
	}
	if doc.LockerStatus == progress.LockerErrorLocked {
		// Dead keypad, input ignored.
		return k.state(sessionKey, doc), nil
	}
	if doc.LockerStatus == progress.LockerUnlocked {
		return k.state(sessionKey, doc), nil
	}

	switch {
	case key == KeyClear:
		k.buffers[sessionKey] = ""
		k.errored[sessionKey] = false
	case key == KeyEnter:
		code := k.buffers[sessionKey]
		k.buffers[sessionKey] = ""
		st := k.machine.Submit(doc, code)
		k.errored[sessionKey] = st.Status != progress.LockerUnlocked
	case len(key) == 1 && key[0] >= '0' && key[0] <= '9':
		// A digit after ERROR starts a fresh code.
		if k.errored[sessionKey] {
			k.buffers[sessionKey] = ""
			k.errored[sessionKey] = false
		}
		if len(k.buffers[sessionKey]) < 4 {
			k.buffers[sessionKey] += key
		}
	default:
		return KeypadState{}, fmt.Errorf("%w: %q", ErrBadKey, key)
	}

	return k.state(sessionKey, doc), nil
}

// Screen returns the current keypad state without input, for rehydration.
func (k *Keypad) Screen(sessionKey string, doc *progress.CaseProgress) KeypadState {
	k.mu.Lock()
	defer k.mu.Unlock()
	if doc.Repair(k.machine.now()) {
		k.buffers[sessionKey] = ""
		k.errored[sessionKey] = false
	}
	return k.state(sessionKey, doc)
}

func (k *Keypad) state(sessionKey string, doc *progress.CaseProgress) KeypadState {
	st, _ := k.machine.Status(doc)
	ks := KeypadState{State: st}
	switch {
	case st.Status == progress.LockerUnlocked:
		ks.Display = DisplayOpen
	case st.Status == progress.LockerErrorLocked:
		ks.Display = "LOCKED " + st.LockoutRemaining
	case k.errored[sessionKey]:
		ks.Display = DisplayError
	case k.buffers[sessionKey] != "":
		ks.Display = k.buffers[sessionKey]
	default:
		ks.Display = DisplayEnterCode
	}
	return ks
}
