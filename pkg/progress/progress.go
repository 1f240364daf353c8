package progress

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/silentwatch/case-engine/pkg/chat"
)

// Locker status values persisted on the document.
const (
	LockerAvailable   = "available"
	LockerErrorLocked = "error_locked"
	LockerUnlocked    = "unlocked"
)

// LockerMaxAttempts is the number of consecutive wrong codes before lockout.
const LockerMaxAttempts = 4

// CaseProgress is the per-user, per-case progress document: the aggregate
// root for everything a case remembers about a player. It is created on case
// acceptance, mutated incrementally by every tracked action, and never
// deleted. Reaching CaseClosed is terminal for gameplay, but the document
// stays readable for the victory review screen.
//
// The document serializes flat: suspect cooldowns appear as
// "<id>CooldownUntil" fields and transcripts as "<id>_chatHistory" arrays,
// alongside the named fields.
type CaseProgress struct {
	CaseID string `json:"caseId"`
	UserID string `json:"userId"`

	// Lifecycle
	CaseAccepted   bool       `json:"caseAccepted"`
	BriefingViewed bool       `json:"briefingViewed"`
	CaseClosed     bool       `json:"caseClosed"`
	CaseSolved     bool       `json:"caseSolved,omitempty"`
	Status         string     `json:"status,omitempty"`
	CaseStartTime  *time.Time `json:"caseStartTime,omitempty"`
	LastUpdated    *time.Time `json:"lastUpdated,omitempty"`
	SolvedAt       *time.Time `json:"solvedAt,omitempty"`
	CaseClosedAt   *time.Time `json:"caseClosedAt,omitempty"`
	TimeTaken      string     `json:"timeTaken,omitempty"`
	TimeInSeconds  int        `json:"timeInSeconds"`

	// Evidence
	PostmortemViewed   bool       `json:"postmortemViewed"`
	PostmortemViewedAt *time.Time `json:"postmortemViewedAt,omitempty"`
	LayoutViewed       bool       `json:"layoutViewed"`
	LayoutViewedAt     *time.Time `json:"layoutViewedAt,omitempty"`
	DiaryViewed        bool       `json:"diaryViewed"`
	DiaryViewedAt      *time.Time `json:"diaryViewedAt,omitempty"`
	CCTVViewed         bool       `json:"cctvViewed"`
	CCTVViewedAt       *time.Time `json:"cctvViewedAt,omitempty"`

	// Unlocks
	CCTVUnlocked            bool `json:"cctvUnlocked"`
	AnyaProfileUnlocked     bool `json:"anyaProfileUnlocked"`
	DiaryUnlocked           bool `json:"diaryUnlocked"`
	RohanIntrusionTriggered bool `json:"rohanIntrusionTriggered"`

	// Solver
	KillerIdentified        bool `json:"killerIdentified"`
	MotiveIdentified        bool `json:"motiveIdentified"`
	ModusOperandiIdentified bool `json:"modusOperandiIdentified"`
	PartialPinto            bool `json:"partialPinto"`
	PartialAnya             bool `json:"partialAnya"`
	SolverStep              int  `json:"solverStep"`

	// Locker
	LockerAttempts     int        `json:"lockerAttempts"`
	LockerLockoutUntil *time.Time `json:"lockerLockoutUntil,omitempty"`
	LockerStatus       string     `json:"lockerStatus,omitempty"`

	// Secrets, generated once and reused for the life of the document.
	CCTVPassword string `json:"cctvPassword,omitempty"`
	RewardCode   string `json:"rewardCode,omitempty"`

	// Cooldowns holds one expiry timestamp per suspect id. A timestamp in
	// the future blocks all dialogue with that suspect; expiry is detected
	// lazily on read, never by a background scheduler.
	Cooldowns map[string]time.Time `json:"-"`

	// Transcripts holds one ordered, append-only conversation per suspect id.
	Transcripts map[string][]chat.Message `json:"-"`
}

// New returns the document created on "accept case": all flags false/zero,
// caseAccepted set, the briefing counted as viewed (accepting the case means
// reading it), and the solve clock started.
func New(userID, caseID string, now time.Time) *CaseProgress {
	return &CaseProgress{
		CaseID:         caseID,
		UserID:         userID,
		CaseAccepted:   true,
		BriefingViewed: true,
		CaseStartTime:  &now,
		LastUpdated:    &now,
		LockerStatus:   LockerAvailable,
		Cooldowns:      make(map[string]time.Time),
		Transcripts:    make(map[string][]chat.Message),
	}
}

// Repair self-heals inconsistent persisted state. Historically the attempt
// counter could reach the maximum (or go negative) without a lockout
// timestamp ever being written; such a document would reject input forever.
// The repair resets attempts on read instead of trusting the increment path.
// It also clears an expired lockout so the keypad returns to service.
// Returns true if anything changed and the document should be written back.
func (cp *CaseProgress) Repair(now time.Time) bool {
	changed := false

	if (cp.LockerAttempts >= LockerMaxAttempts || cp.LockerAttempts < 0) && cp.LockerLockoutUntil == nil {
		cp.LockerAttempts = 0
		if cp.LockerStatus != LockerUnlocked {
			cp.LockerStatus = LockerAvailable
		}
		changed = true
	}

	if cp.LockerLockoutUntil != nil && !now.Before(*cp.LockerLockoutUntil) {
		cp.LockerAttempts = 0
		cp.LockerLockoutUntil = nil
		if cp.LockerStatus != LockerUnlocked {
			cp.LockerStatus = LockerAvailable
		}
		changed = true
	}

	return changed
}

// CooldownFor returns the stored cooldown expiry for a suspect.
func (cp *CaseProgress) CooldownFor(suspectID string) (time.Time, bool) {
	t, ok := cp.Cooldowns[suspectID]
	return t, ok
}

// SetCooldown records a cooldown expiry for a suspect.
func (cp *CaseProgress) SetCooldown(suspectID string, until time.Time) {
	if cp.Cooldowns == nil {
		cp.Cooldowns = make(map[string]time.Time)
	}
	cp.Cooldowns[suspectID] = until
}

// ClearCooldown removes an expired cooldown for a suspect.
func (cp *CaseProgress) ClearCooldown(suspectID string) {
	delete(cp.Cooldowns, suspectID)
}

// Transcript returns the persisted conversation with a suspect, oldest first.
func (cp *CaseProgress) Transcript(suspectID string) []chat.Message {
	if cp.Transcripts == nil {
		return nil
	}
	return cp.Transcripts[suspectID]
}

// AppendTranscript appends messages to a suspect's conversation.
func (cp *CaseProgress) AppendTranscript(suspectID string, msgs ...chat.Message) {
	if cp.Transcripts == nil {
		cp.Transcripts = make(map[string][]chat.Message)
	}
	cp.Transcripts[suspectID] = append(cp.Transcripts[suspectID], msgs...)
}

// DeriveSolverStep computes the solver's current step from the milestone
// flags, which are the source of truth; the stored SolverStep counter is only
// a debugging mirror. Steps: 0 who, 1 why, 2 how, 3 supernatural, 4 closed.
func (cp *CaseProgress) DeriveSolverStep() int {
	switch {
	case cp.CaseClosed || cp.Status == "closed" || cp.SolverStep >= 4:
		return 4
	case cp.ModusOperandiIdentified:
		return 3
	case cp.MotiveIdentified:
		return 2
	case cp.KillerIdentified:
		return 1
	default:
		return 0
	}
}

// Elapsed returns the time since the case was started, never negative.
func (cp *CaseProgress) Elapsed(now time.Time) time.Duration {
	if cp.CaseStartTime == nil {
		return 0
	}
	d := now.Sub(*cp.CaseStartTime)
	if d < 0 {
		return 0
	}
	return d
}

// FormatElapsed renders a duration the way the victory screen expects it.
func FormatElapsed(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

const (
	cooldownSuffix   = "CooldownUntil"
	transcriptSuffix = "_chatHistory"
)

type caseProgressAlias CaseProgress

// MarshalJSON flattens the dynamic per-suspect fields onto the document so
// the stored shape stays one flat JSON object.
func (cp *CaseProgress) MarshalJSON() ([]byte, error) {
	static, err := json.Marshal((*caseProgressAlias)(cp))
	if err != nil {
		return nil, err
	}

	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(static, &doc); err != nil {
		return nil, err
	}

	for id, until := range cp.Cooldowns {
		raw, err := json.Marshal(until)
		if err != nil {
			return nil, err
		}
		doc[id+cooldownSuffix] = raw
	}
	for id, msgs := range cp.Transcripts {
		raw, err := json.Marshal(msgs)
		if err != nil {
			return nil, err
		}
		doc[id+transcriptSuffix] = raw
	}

	return json.Marshal(doc)
}

// UnmarshalJSON restores both the named fields and the dynamic
// "<id>CooldownUntil" / "<id>_chatHistory" fields.
func (cp *CaseProgress) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*caseProgressAlias)(cp)); err != nil {
		return err
	}

	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	for key, raw := range doc {
		switch {
		case len(key) > len(transcriptSuffix) && key[len(key)-len(transcriptSuffix):] == transcriptSuffix:
			id := key[:len(key)-len(transcriptSuffix)]
			var msgs []chat.Message
			if err := json.Unmarshal(raw, &msgs); err != nil {
				return fmt.Errorf("transcript field %s: %w", key, err)
			}
			if cp.Transcripts == nil {
				cp.Transcripts = make(map[string][]chat.Message)
			}
			cp.Transcripts[id] = msgs
		case len(key) > len(cooldownSuffix) && key[len(key)-len(cooldownSuffix):] == cooldownSuffix:
			id := key[:len(key)-len(cooldownSuffix)]
			var until time.Time
			if err := json.Unmarshal(raw, &until); err != nil {
				return fmt.Errorf("cooldown field %s: %w", key, err)
			}
			if cp.Cooldowns == nil {
				cp.Cooldowns = make(map[string]time.Time)
			}
			cp.Cooldowns[id] = until
		}
	}

	return nil
}
