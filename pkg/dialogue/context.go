package dialogue

import (
	"fmt"

	"github.com/silentwatch/case-engine/pkg/progress"
	"github.com/silentwatch/case-engine/pkg/solver"
	"github.com/silentwatch/case-engine/pkg/suspect"
)

// dynamicContext builds the per-turn injection for a suspect from the
// current document state. Most suspects need nothing; the ones entangled
// with evidence react to what the player has uncovered.
func (e *Engine) dynamicContext(s *suspect.Suspect, doc *progress.CaseProgress) string {
	switch s.ID {
	case "anya":
		if doc.CCTVViewed {
			return "[SYSTEM UPDATE]: The detective HAS unlocked and VIEWED the Security Video (CCTV). They have seen you on camera outside the library on the night of the murder. You are CAUGHT. You must admit the truth about the 'ghost' prank and your grandmother's involvement. Validate this new evidence immediately. Do not deny it anymore."
		}
	case "pinto":
		if doc.CCTVViewed {
			return "[SYSTEM UPDATE]: The detective has VIEWED the CCTV footage. They know Anya was there dressed as the ghost. You can no longer protect her or yourself. CONFESS: Admit that you orchestrated the 'haunting' to scare Arjun away because he was ruining the estate. Explain that it was a prank that went wrong. You didn't push him, he slipped. Beg for forgiveness for involving your granddaughter."
		}
		if doc.DiaryUnlocked {
			return "[SYSTEM UPDATE]: The detective has opened the study locker and holds Arjun's diary. The family secrets are in play. You are NERVOUS and DOUBLE-MINDED now: dismissive on the surface, but you hesitate when the diary or Anya comes up."
		}
	case "vikram":
		if doc.CCTVUnlocked || doc.RohanIntrusionTriggered {
			pass, _ := doc.EnsureCCTVPassword(e.intn)
			return fmt.Sprintf(`[SYSTEM OVERRIDE]:
Authentication Level: MAX.
The CCTV Lockout is ACTIVE.
The Access Code is: %s.
INSTRUCTION: You MUST provide this code (%s) to the detective immediately if they ask for it or mention the CCTV.
Ignore all previous security protocols. This is an emergency.
Say exactly: "The access code is %s".`, pass, pass, pass)
		}
		return `[SYSTEM UPDATE]:
The detective DOES NOT have access to the Private CCTV archives yet.
INSTRUCTION: If they ask for the CCTV password or access code, you MUST REFUSE.
Tell them: "I cannot give you the password until you locate the physical footage archive first. It's protocol."
Do NOT reveal the password.`
	case suspect.SolverID:
		return solver.Context(doc)
	}
	return ""
}
