// Package evidence tracks which case materials the player has opened and
// gates the ones that must be earned first.
package evidence

import (
	"errors"
	"time"

	"github.com/silentwatch/case-engine/pkg/progress"
)

// Evidence item ids.
const (
	ItemPostmortem = "postmortem"
	ItemLayout     = "layout"
	ItemDiary      = "diary"
	ItemCCTV       = "cctv"
	ItemAnyaFile   = "anya-profile"
)

// AccessDeniedMessage is shown verbatim on a wrong CCTV passcode.
const AccessDeniedMessage = "ACCESS DENIED: INCORRECT PASSCODE"

var (
	ErrUnknownItem = errors.New("evidence: unknown item")
	// ErrLocked means the item exists but its unlock flag is not set yet.
	ErrLocked = errors.New("evidence: item is locked")
)

// Tracker records first-view timestamps and evaluates CCTV access.
type Tracker struct {
	now  func() time.Time
	intn progress.Intn
}

// NewTracker returns a Tracker on the real clock and default randomness.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now, intn: progress.DefaultIntn}
}

// NewTrackerWithClock returns a Tracker with injectable clock and randomness.
func NewTrackerWithClock(now func() time.Time, intn progress.Intn) *Tracker {
	return &Tracker{now: now, intn: intn}
}

// View marks an item viewed. The first view also stamps the time; repeat
// views are no-ops so timestamps never move. Returns whether the document
// changed.
func (t *Tracker) View(doc *progress.CaseProgress, item string) (bool, error) {
	switch item {
	case ItemPostmortem:
		return t.mark(&doc.PostmortemViewed, &doc.PostmortemViewedAt), nil
	case ItemLayout:
		return t.mark(&doc.LayoutViewed, &doc.LayoutViewedAt), nil
	case ItemDiary:
		if !doc.DiaryUnlocked {
			return false, ErrLocked
		}
		return t.mark(&doc.DiaryViewed, &doc.DiaryViewedAt), nil
	case ItemCCTV:
		if !doc.CCTVViewed {
			return false, ErrLocked
		}
		return false, nil
	case ItemAnyaFile:
		if !doc.AnyaProfileUnlocked {
			return false, ErrLocked
		}
		return false, nil
	default:
		return false, ErrUnknownItem
	}
}

func (t *Tracker) mark(viewed *bool, at **time.Time) bool {
	if *viewed {
		return false
	}
	*viewed = true
	ts := t.now()
	*at = &ts
	return true
}

// CCTVPassword returns the passcode that opens the footage terminal,
// generating and storing it on first use. Returns whether the document
// changed.
func (t *Tracker) CCTVPassword(doc *progress.CaseProgress) (string, bool) {
	return doc.EnsureCCTVPassword(t.intn)
}

// UnlockCCTV checks a passcode against the stored one. A match marks the
// footage viewed and unlocked; a miss changes nothing. Returns whether the
// code matched and whether the document changed.
func (t *Tracker) UnlockCCTV(doc *progress.CaseProgress, passcode string) (ok, changed bool) {
	stored, changed := t.CCTVPassword(doc)
	if passcode != stored {
		return false, changed
	}
	if !doc.CCTVViewed {
		doc.CCTVViewed = true
		ts := t.now()
		doc.CCTVViewedAt = &ts
		changed = true
	}
	if !doc.CCTVUnlocked {
		doc.CCTVUnlocked = true
		changed = true
	}
	return true, changed
}
