// Package solver drives the case-closing interview with headquarters: who,
// why, how, and finally the supernatural question. The model is steered with
// step-specific instructions and signals verdicts through sentinel tags that
// are stripped before the reply reaches the player.
package solver

import (
	"fmt"
	"strings"
	"time"

	"github.com/silentwatch/case-engine/pkg/progress"
)

// Sentinel tags the verification persona embeds in its replies. Tags are
// machine signals only and never shown to the player.
const (
	// TagCorrect advances the current step.
	TagCorrect = "[CORRECT]"
	// TagPinto credits naming the housekeeper on the identification step.
	TagPinto = "[ID:PINTO]"
	// TagAnya credits naming the granddaughter on the identification step.
	TagAnya = "[ID:ANYA]"
)

// Events reported to the client alongside a solver reply.
const (
	EventPartialPinto = "partial:pinto"
	EventPartialAnya  = "partial:anya"
	EventKillerFound  = "killer_identified"
	EventMotiveFound  = "motive_identified"
	EventMethodFound  = "modus_operandi_identified"
	EventCaseClosed   = "case_closed"
)

// Result is the outcome of interpreting one solver reply.
type Result struct {
	// Reply is the model text with all sentinel tags removed.
	Reply  string
	Events []string
	Closed bool
	// TimeTaken and RewardCode are set only on the closing turn.
	TimeTaken  string
	RewardCode string
}

// Flow applies solver-step transitions to a progress document.
type Flow struct {
	now  func() time.Time
	intn progress.Intn
}

// NewFlow returns a Flow on the real clock and default randomness.
func NewFlow() *Flow {
	return &Flow{now: time.Now, intn: progress.DefaultIntn}
}

// NewFlowWithClock returns a Flow with injectable clock and randomness.
func NewFlowWithClock(now func() time.Time, intn progress.Intn) *Flow {
	return &Flow{now: now, intn: intn}
}

// Context builds the step instructions injected into the solver prompt.
// The step is always derived from the milestone flags, never trusted from
// the stored counter, so a half-written document cannot skip a question.
func Context(doc *progress.CaseProgress) string {
	switch doc.DeriveSolverStep() {
	case 0:
		return stepZeroContext(doc)
	case 1:
		return `CURRENT STEP: 1 (ESTABLISH MOTIVE)
GOAL: Verify the motive.
CORRECT ANSWER: Protecting a Secret / Lineage / Lakshmi / Affair.
LENIENCY: High. Accept "To hide the truth", "Cover up the past", "Protect the family name", "Because of Lakshmi".

INSTRUCTIONS:
1. Ask: "Why did they do it? What secret were they protecting?"
2. EVALUATION:
   - IF user matches the CONCEPT of "Secret", "Legacy", "Lakshmi", "Affair", "Hiding truth": Reply starting with "[CORRECT] Yes. They killed to keep their lineage to Lakshmi a secret. But how did he die? It wasn't a simple murder."
   - IF user is completely off (e.g. "Robbery"): Reply "No, it was personal. Dig deeper into the family history."`
	case 2:
		return `CURRENT STEP: 2 (ESTABLISH METHOD)
GOAL: Verify the cause of death.
CORRECT ANSWER: Scared to death / Psychological / Ghost Disguise / Fall.
LENIENCY: High. Accept "She scared him", "Dressed as ghost", "He fell", "Accident", "Shock".

INSTRUCTIONS:
1. Ask: "How did he die? It wasn't a simple murder."
2. EVALUATION:
   - IF user matches the CONCEPT of "Scared", "Ghost Trick", "Fall", "Shock": Reply starting with "[CORRECT] Precisely. A psychologically induced murder. One final question. Is the ghost of Lady Eleanor real?"
   - IF user suggests direct violence (Stabbed, Shot): Reply "The autopsy reports no such wounds. Look again."`
	case 3:
		return `CURRENT STEP: 3 (THE SUPERNATURAL)
GOAL: Verify ghost status.
CORRECT ANSWER: Fake / Anya / No.
LENIENCY: Very High.

INSTRUCTIONS:
1. Ask: "One final question. Is the ghost of Lady Eleanor real?"
2. EVALUATION:
   - IF user implies "No", "Fake", "Trick", "Anya did it": Reply starting with "[CORRECT] Case Closed."
   - IF user insists it is REAL: Reply "Is it? Or was it just a trick?"`
	default:
		return "CASE SOLVED. The investigation is complete. Congratulate the detective."
	}
}

func stepZeroContext(doc *progress.CaseProgress) string {
	var credited string
	switch {
	case doc.PartialPinto:
		credited = "\nALREADY CREDITED: The housekeeper (Mrs. Pinto). The user only needs to name the granddaughter now."
	case doc.PartialAnya:
		credited = "\nALREADY CREDITED: The granddaughter (Anya). The user only needs to name the housekeeper now."
	}
	return fmt.Sprintf(`CURRENT STEP: 0 (IDENTIFY KILLERS)
GOAL: Verify who is responsible.
CORRECT ANSWER: Anya AND Mrs. Pinto (or "Housekeeper", "Grandmother").
LENIENCY: High. Accept "The girl and her grandma", "The Pintos", "Maid and Anya".%s

INSTRUCTIONS:
1. Ask: "Who is responsible for the death of Arjun Rathore?"
2. EVALUATION:
   - IF user names the housekeeper concept (Mrs. Pinto, housekeeper, grandmother, maid): include the tag [ID:PINTO] in your reply.
   - IF user names the granddaughter concept (Anya, the girl, the student): include the tag [ID:ANYA] in your reply.
   - IF BOTH concepts are now named (this turn or credited earlier): Reply starting with "[CORRECT] Correct. It was the housekeeper and her granddaughter. Now, tell me. Why did they do it? What secret were they protecting?"
   - IF only one is named so far: Reply "You have identified one. Who was her accomplice?"
   - IF wrong: Reply "Incorrect. Review the CCTV footage."`, credited)
}

// Apply interprets a raw solver reply against the document. All sentinel
// tags are removed from the returned reply. Partial identification credit
// accumulates across turns; killerIdentified flips exactly once, when both
// culprits have been named. The closing turn stops the clock, assigns the
// reward code, and marks the case closed.
func (f *Flow) Apply(doc *progress.CaseProgress, raw string) Result {
	step := doc.DeriveSolverStep()
	res := Result{Reply: stripTags(raw)}

	if step == 0 {
		if strings.Contains(raw, TagPinto) && !doc.PartialPinto {
			doc.PartialPinto = true
			res.Events = append(res.Events, EventPartialPinto)
		}
		if strings.Contains(raw, TagAnya) && !doc.PartialAnya {
			doc.PartialAnya = true
			res.Events = append(res.Events, EventPartialAnya)
		}
		// A bare [CORRECT] means the model judged both named at once.
		if strings.Contains(raw, TagCorrect) {
			doc.PartialPinto = true
			doc.PartialAnya = true
		}
		if doc.PartialPinto && doc.PartialAnya && !doc.KillerIdentified {
			doc.KillerIdentified = true
			doc.SolverStep = 1
			res.Events = append(res.Events, EventKillerFound)
		}
		return res
	}

	if !strings.Contains(raw, TagCorrect) {
		return res
	}

	switch step {
	case 1:
		doc.MotiveIdentified = true
		doc.SolverStep = 2
		res.Events = append(res.Events, EventMotiveFound)
	case 2:
		doc.ModusOperandiIdentified = true
		doc.SolverStep = 3
		res.Events = append(res.Events, EventMethodFound)
	case 3:
		f.close(doc, &res)
	}
	return res
}

func (f *Flow) close(doc *progress.CaseProgress, res *Result) {
	now := f.now()
	elapsed := doc.Elapsed(now)

	doc.CaseClosed = true
	doc.CaseSolved = true
	doc.Status = "closed"
	doc.SolvedAt = &now
	doc.CaseClosedAt = &now
	doc.SolverStep = 4
	doc.TimeTaken = progress.FormatElapsed(elapsed)
	doc.TimeInSeconds = int(elapsed.Seconds())
	code, _ := doc.EnsureRewardCode(f.intn)

	res.Closed = true
	res.TimeTaken = doc.TimeTaken
	res.RewardCode = code
	res.Events = append(res.Events, EventCaseClosed)
}

func stripTags(s string) string {
	for _, tag := range []string{TagCorrect, TagPinto, TagAnya} {
		s = strings.ReplaceAll(s, tag, "")
	}
	return strings.TrimSpace(strings.ReplaceAll(s, "  ", " "))
}
