// Package script runs the voiceless-caller shift: a scripted dispatch
// scenario driven by dashboard actions and free-text orders to the field
// unit. Timed cut-scene lines are returned as cue lists with millisecond
// offsets; the client paces playback, the server owns every state change.
package script

import (
	"fmt"
	"sync"
	"time"
)

// CaseID is the scenario's progress document id.
const CaseID = "voiceless-caller"

// Stages, in shift order.
const (
	StageIdle              = "IDLE"
	StageActiveShift       = "ACTIVE_SHIFT"
	StageSOSReceived       = "SOS_RECEIVED"
	StageUnitDispatched    = "UNIT_DISPATCHED"
	StageScenario1Complete = "SCENARIO_1_COMPLETE"
	StageCallIncoming      = "CALL_INCOMING"
	StageCallActive        = "CALL_ACTIVE"
	StageUnitDispatchedS2  = "UNIT_DISPATCHED_S2"
	StageTrapActive        = "TRAP_ACTIVE"
)

// Sub-states of the accident scene, advanced by keyword-matched orders.
const (
	SubArrived      = "ARRIVED"
	SubCrowdControl = "CROWD_CONTROL"
	SubDetails      = "DETAILS"
	SubReadyToClose = "READY_TO_CLOSE"
)

// Actions accepted by the dashboard.
const (
	ActionStartShift    = "start_shift"
	ActionTrackLocation = "track_location"
	ActionFindUnit      = "find_unit"
	ActionUnitArrived   = "unit_arrived"
	ActionCloseCase     = "close_case"
	ActionAnswerCall    = "answer_call"
	ActionDisconnect    = "disconnect_call"
	ActionDispatchUnit  = "dispatch_unit"
)

// Locations on the dispatch map.
const (
	LocKalamserry = "kalamserry"
	LocKakkanad   = "kakkanad"
)

// Senders on cue lines.
const (
	SenderSystem  = "System"
	SenderUnit    = "Beta-1"
	SenderControl = "Control"
)

// ErrBadAction rejects an action that is unknown or illegal in the current
// stage. The dashboard treats it as a dead button, not a failure.
var ErrBadAction = fmt.Errorf("script: action not available")

// Cue is one scripted line. AtMS is the playback offset from the response,
// in milliseconds.
type Cue struct {
	AtMS   int    `json:"at_ms"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Progress is the persisted scenario document. Only resumption flags are
// stored; stage is always derived from them on restore, never trusted from
// the wire.
type Progress struct {
	CaseID string `json:"caseId"`
	UserID string `json:"userId"`

	ShiftStarted      bool `json:"shiftStarted"`
	SOSBeaconShown    bool `json:"sosBeaconShown"`
	TrackingStarted   bool `json:"trackingStarted"`
	UnitSearchStarted bool `json:"unitSearchStarted"`
	UnitFound         bool `json:"unitFound"`
	UnitArrived       bool `json:"unitArrived"`
	AccidentClosed    bool `json:"accidentClosed"`
	Scenario1Complete bool `json:"scenario1Complete"`

	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

// NewProgress returns an empty scenario document for a user.
func NewProgress(userID string) *Progress {
	return &Progress{CaseID: CaseID, UserID: userID}
}

// DeriveStage computes the furthest resumable point from the flags. The
// second scenario past the incoming call is not resumable mid-script, so
// anything beyond scenario1Complete restores to the ringing phone; this
// matches how the shift plays on a reconnect.
func DeriveStage(p *Progress) (stage, subState string) {
	switch {
	case p.Scenario1Complete || p.AccidentClosed:
		return StageCallIncoming, ""
	case p.UnitArrived:
		return StageUnitDispatched, SubArrived
	case p.SOSBeaconShown:
		return StageSOSReceived, ""
	case p.ShiftStarted:
		return StageActiveShift, ""
	default:
		return StageIdle, ""
	}
}

// Result is the engine's answer to an action or chat message.
type Result struct {
	Stage    string `json:"stage"`
	SubState string `json:"sub_state,omitempty"`
	Cues     []Cue  `json:"cues,omitempty"`
	// Changed reports that the progress document was mutated and must be
	// persisted.
	Changed bool `json:"-"`
}

type session struct {
	stage     string
	subState  string
	trackedS2 bool
}

// Runner executes the scenario for concurrent sessions. Stage and sub-state
// live in memory per session; flags live on the Progress document.
type Runner struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// NewRunner returns an empty Runner.
func NewRunner() *Runner {
	return &Runner{sessions: make(map[string]*session)}
}

func (r *Runner) session(key string, p *Progress) *session {
	s, ok := r.sessions[key]
	if !ok {
		s = &session{}
		s.stage, s.subState = DeriveStage(p)
		r.sessions[key] = s
	}
	return s
}

// Restore re-derives a session's stage from the document and returns it,
// with the flags the client needs to rebuild its cards.
func (r *Runner) Restore(sessionKey string, p *Progress) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.session(sessionKey, p)
	s.stage, s.subState = DeriveStage(p)
	return Result{Stage: s.stage, SubState: s.subState}
}

// Action applies a dashboard action. Location is only meaningful for the
// track and dispatch actions.
func (r *Runner) Action(sessionKey string, p *Progress, action, location string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.session(sessionKey, p)

	switch action {
	case ActionStartShift:
		return r.startShift(s, p)
	case ActionTrackLocation:
		return r.trackLocation(s, p, location)
	case ActionFindUnit:
		return r.findUnit(s, p)
	case ActionUnitArrived:
		return r.unitArrived(s, p)
	case ActionCloseCase:
		return r.closeCase(s, p)
	case ActionAnswerCall:
		return r.answerCall(s)
	case ActionDisconnect:
		return r.disconnectCall(s)
	case ActionDispatchUnit:
		return r.dispatchUnit(s, p, location)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrBadAction, action)
	}
}

func (r *Runner) startShift(s *session, p *Progress) (Result, error) {
	if s.stage != StageIdle && s.stage != StageActiveShift {
		return Result{}, fmt.Errorf("%w: shift already running", ErrBadAction)
	}
	changed := !p.ShiftStarted || !p.SOSBeaconShown
	p.ShiftStarted = true
	p.SOSBeaconShown = true
	s.stage = StageSOSReceived
	return r.result(s, changed,
		Cue{AtMS: 0, Sender: SenderSystem, Text: "System initialized. Shift started."},
		Cue{AtMS: 3000, Sender: SenderSystem, Text: "SOS BEACON. CRASH DETECTED. Signal Triangulated."},
	), nil
}

func (r *Runner) trackLocation(s *session, p *Progress, location string) (Result, error) {
	switch {
	case location == LocKalamserry && s.stage == StageSOSReceived:
		changed := !p.TrackingStarted
		p.TrackingStarted = true
		return r.result(s, changed), nil
	case location == LocKakkanad && (s.stage == StageCallIncoming || s.stage == StageCallActive):
		s.trackedS2 = true
		return r.result(s, false,
			Cue{AtMS: 0, Sender: SenderSystem, Text: "Signal traced to Kakkanad. Dispatch available."},
		), nil
	default:
		return Result{}, fmt.Errorf("%w: cannot track %q now", ErrBadAction, location)
	}
}

func (r *Runner) findUnit(s *session, p *Progress) (Result, error) {
	if s.stage != StageSOSReceived || !p.TrackingStarted {
		return Result{}, fmt.Errorf("%w: no tracked signal", ErrBadAction)
	}
	changed := !p.UnitSearchStarted || !p.UnitFound
	p.UnitSearchStarted = true
	p.UnitFound = true
	return r.result(s, changed,
		Cue{AtMS: 0, Sender: SenderSystem, Text: "Scanning for nearby units..."},
		Cue{AtMS: 2000, Sender: SenderSystem, Text: "UNIT BETA-1 IDENTIFIED"},
		Cue{AtMS: 2000, Sender: SenderUnit, Text: "Dispatch, we have your location. ETA 20 seconds. We are en route."},
	), nil
}

func (r *Runner) unitArrived(s *session, p *Progress) (Result, error) {
	if !p.UnitFound || s.stage != StageSOSReceived {
		return Result{}, fmt.Errorf("%w: no unit en route", ErrBadAction)
	}
	changed := !p.UnitArrived
	p.UnitArrived = true
	s.stage = StageUnitDispatched
	s.subState = SubArrived
	return r.result(s, changed,
		Cue{AtMS: 0, Sender: SenderUnit, Text: "Dispatch, we have arrived at the coordinates. It's a collision."},
		Cue{AtMS: 2000, Sender: SenderUnit, Text: "I see a crowd gathering around the vehicles. It looks tense. Should I intervene directly or hold back?"},
	), nil
}

func (r *Runner) closeCase(s *session, p *Progress) (Result, error) {
	if s.stage != StageUnitDispatched || s.subState != SubReadyToClose {
		return Result{}, fmt.Errorf("%w: scene not ready to close", ErrBadAction)
	}
	p.AccidentClosed = true
	p.Scenario1Complete = true
	s.stage = StageCallIncoming
	s.subState = ""
	return r.result(s, true,
		Cue{AtMS: 0, Sender: SenderSystem, Text: "ACCIDENT REPORT FILED"},
		Cue{AtMS: 0, Sender: SenderSystem, Text: "CASE CLOSED. PURGING LOGS IN 5..."},
		Cue{AtMS: 5000, Sender: SenderSystem, Text: "CHANNEL OFFLINE"},
		Cue{AtMS: 8000, Sender: SenderSystem, Text: "INCOMING CALL. NO CALLER ID. Signal: Unstable."},
	), nil
}

func (r *Runner) answerCall(s *session) (Result, error) {
	if s.stage != StageCallIncoming {
		return Result{}, fmt.Errorf("%w: no call ringing", ErrBadAction)
	}
	s.stage = StageCallActive
	return r.result(s, false,
		Cue{AtMS: 0, Sender: SenderSystem, Text: "CALL CONNECTED. No voice on the line. Static only."},
	), nil
}

func (r *Runner) disconnectCall(s *session) (Result, error) {
	if s.stage != StageCallIncoming && s.stage != StageCallActive {
		return Result{}, fmt.Errorf("%w: no call to disconnect", ErrBadAction)
	}
	// The caller does not give up.
	s.stage = StageCallIncoming
	return r.result(s, false,
		Cue{AtMS: 2000, Sender: SenderSystem, Text: "SIGNAL DETECTED AGAIN"},
		Cue{AtMS: 2000, Sender: SenderSystem, Text: "INCOMING CALL. NO CALLER ID. Signal: Unstable."},
	), nil
}

func (r *Runner) dispatchUnit(s *session, p *Progress, location string) (Result, error) {
	if location != LocKakkanad || s.stage != StageCallActive || !s.trackedS2 {
		return Result{}, fmt.Errorf("%w: no traced signal to dispatch to", ErrBadAction)
	}
	s.stage = StageTrapActive
	s.subState = ""
	return r.result(s, false,
		Cue{AtMS: 0, Sender: SenderSystem, Text: "UNIT BETA-1 REDIRECTED"},
		Cue{AtMS: 0, Sender: SenderUnit, Text: "Copy that Control. Diverting to Kakkanad coordinates. It's... pretty isolated out there."},
		Cue{AtMS: 6000, Sender: SenderUnit, Text: "Control, we've reached the coordinates... It's an abandoned house. Very old architecture. Looks completely dark."},
		Cue{AtMS: 10000, Sender: SenderUnit, Text: "Shall we enter? The signal is definitely coming from inside."},
		Cue{AtMS: 13000, Sender: SenderControl, Text: "Proceed with caution. Secure the perimeter."},
		Cue{AtMS: 13000, Sender: SenderUnit, Text: "Breaching now..."},
		Cue{AtMS: 17000, Sender: SenderUnit, Text: "We're inside. It's... empty. Wait, found a landline phone off the hook."},
		Cue{AtMS: 22000, Sender: SenderUnit, Text: "Control... the line is cut. Physically cut. But the phone is still ringing in your dashboard? That's impossible."},
		Cue{AtMS: 26000, Sender: SenderSystem, Text: "CRITICAL ALERT: BIOHAZARD DETECTED"},
		Cue{AtMS: 26000, Sender: SenderUnit, Text: "Dmnit! The doors just slammed shut! They're locked electronically!"},
		Cue{AtMS: 30000, Sender: SenderUnit, Text: "There's a screen here... it just turned on. It says 'GAS RELEASE INITIALIZED'. Timer set for 60 minutes."},
		Cue{AtMS: 30000, Sender: SenderUnit, Text: "Control, we are trapped. You need to find a way to override this system from your end. The code... we need a code!"},
		Cue{AtMS: 35000, Sender: SenderSystem, Text: "TO BE CONTINUED..."},
	), nil
}

func (r *Runner) result(s *session, changed bool, cues ...Cue) Result {
	return Result{Stage: s.stage, SubState: s.subState, Cues: cues, Changed: changed}
}
