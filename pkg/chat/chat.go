package chat

import "fmt"

const (
	// SenderUser marks a message typed by the player.
	SenderUser = "user"
	// SenderAI marks a message spoken by a suspect or the solver.
	SenderAI = "ai"
)

// Message is a single transcript entry. Transcripts are append-only and are
// the sole persisted record of a conversation; they replay verbatim on resume.
type Message struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Request is a dialogue turn submitted by the client.
type Request struct {
	Message string `json:"message"`
}

func (r *Request) Validate() error {
	if r.Message == "" {
		return fmt.Errorf("message cannot be empty")
	}
	return nil
}

// Response is the engine's answer to a dialogue turn. CooldownUntil is set
// (RFC3339) when this turn exhausted the suspect's question budget. Events
// carries out-of-band reveals (for example the intrusion unlock) so the client
// can update without refetching progress.
type Response struct {
	SuspectID          string   `json:"suspect_id"`
	Reply              string   `json:"reply"`
	QuestionsRemaining int      `json:"questions_remaining"`
	CooldownUntil      string   `json:"cooldown_until,omitempty"`
	Events             []string `json:"events,omitempty"`
	Intrusion          string   `json:"intrusion,omitempty"`
	CaseClosed         bool     `json:"case_closed,omitempty"`
	TimeTaken          string   `json:"time_taken,omitempty"`
	RewardCode         string   `json:"reward_code,omitempty"`
	Error              string   `json:"error,omitempty"`
}
