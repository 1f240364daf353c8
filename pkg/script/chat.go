package script

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lowerCaser = cases.Lower(language.Und)

// Keyword sets for the accident-scene orders. Matching is substring based on
// the folded message, so "please intervene now" and "INTERVENE!" both land.
var (
	interveneWords = []string{"intervene", "stop", "separate", "handle"}
	holdWords      = []string{"wait", "hold"}
	proceedWords   = []string{"proceed", "collect", "yes", "detail"}
	clearWords     = []string{"clear", "leave", "close", "done"}
)

func matchesAny(msg string, words []string) bool {
	for _, w := range words {
		if strings.Contains(msg, w) {
			return true
		}
	}
	return false
}

// Chat applies a free-text order from Control. Outside the stages where the
// unit is listening, the channel is offline and the message falls on the
// floor with no cues.
func (r *Runner) Chat(sessionKey string, p *Progress, message string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.session(sessionKey, p)
	msg := lowerCaser.String(message)

	switch s.stage {
	case StageUnitDispatched:
		return r.accidentOrders(s, msg)
	case StageTrapActive:
		return r.result(s, false,
			Cue{AtMS: 2000, Sender: SenderUnit, Text: "We are trying the door! It's jammed!"},
		)
	default:
		return r.result(s, false)
	}
}

func (r *Runner) accidentOrders(s *session, msg string) Result {
	switch s.subState {
	case SubArrived:
		switch {
		case matchesAny(msg, interveneWords):
			s.subState = SubCrowdControl
			return r.result(s, false,
				Cue{AtMS: 1500, Sender: SenderUnit, Text: "Copy that. Stepping out to intervene. Separating the two drivers now. Stand by."},
				Cue{AtMS: 5500, Sender: SenderUnit, Text: "Situation under control. Individuals separated. De-escalation successful. No weapons found."},
				Cue{AtMS: 7500, Sender: SenderUnit, Text: "One driver is agitated but compliant. Proceeding to collect statements and insurance details?"},
			)
		case matchesAny(msg, holdWords):
			return r.result(s, false,
				Cue{AtMS: 1500, Sender: SenderUnit, Text: "Holding position. But the argument is turning physical. Advising immediate intervention."},
			)
		default:
			return r.result(s, false,
				Cue{AtMS: 1500, Sender: SenderUnit, Text: "The crowd is filming. Drivers are shoving each other. Awaiting orders to intervene."},
			)
		}
	case SubCrowdControl:
		if matchesAny(msg, proceedWords) {
			s.subState = SubDetails
			return r.result(s, false,
				Cue{AtMS: 1500, Sender: SenderUnit, Text: "Affirmative. Collecting IDs and statements now..."},
				Cue{AtMS: 5500, Sender: SenderUnit, Text: "Details secured. Minor paint damage only. Both parties have exchanged info."},
				Cue{AtMS: 8500, Sender: SenderUnit, Text: "Traffic is moving again. Scene is secure. We are ready to clear."},
			)
		}
		return r.result(s, false,
			Cue{AtMS: 1500, Sender: SenderUnit, Text: "Standing by to collect details on your mark."},
		)
	case SubDetails:
		if matchesAny(msg, clearWords) {
			s.subState = SubReadyToClose
			return r.result(s, false,
				Cue{AtMS: 1500, Sender: SenderUnit, Text: "Understood. We are returning to patrol. You can mark the case as closed on your end."},
			)
		}
		return r.result(s, false,
			Cue{AtMS: 1500, Sender: SenderUnit, Text: "We are done here. Ready to clear the scene?"},
		)
	default:
		return r.result(s, false)
	}
}
