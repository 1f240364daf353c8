// Package prompts assembles the single-string completion prompts sent to the
// dialogue model. Prompt building is kept separate from dialogue flow so the
// exact wire format is testable on its own.
package prompts

import (
	"fmt"
	"strings"

	"github.com/silentwatch/case-engine/pkg/chat"
)

// DefaultHistoryLimit is how many transcript messages are replayed into the
// prompt. Older turns fall out of the window; the persona carries the
// long-term facts.
const DefaultHistoryLimit = 6

// Builder constructs a suspect prompt using a fluent interface.
type Builder struct {
	persona        string
	dynamicContext string
	speakerName    string
	userMessage    string
	history        []chat.Message
	historyLimit   int
}

// New creates a builder with default settings.
func New() *Builder {
	return &Builder{historyLimit: DefaultHistoryLimit}
}

// WithPersona sets the static character sheet.
func (b *Builder) WithPersona(persona string) *Builder {
	b.persona = persona
	return b
}

// WithDynamicContext sets the per-turn system injection. Empty means the
// persona stands alone this turn.
func (b *Builder) WithDynamicContext(ctx string) *Builder {
	b.dynamicContext = ctx
	return b
}

// WithSpeaker sets the character name used to label AI lines and to cue the
// model's reply.
func (b *Builder) WithSpeaker(name string) *Builder {
	b.speakerName = name
	return b
}

// WithHistory sets the transcript to replay, oldest first.
func (b *Builder) WithHistory(msgs []chat.Message) *Builder {
	b.history = msgs
	return b
}

// WithHistoryLimit overrides the replay window size.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// WithUserMessage sets the player's line for this turn.
func (b *Builder) WithUserMessage(msg string) *Builder {
	b.userMessage = msg
	return b
}

// Build returns the final prompt string. The trailing "<Name>: " cue tells a
// completion model whose voice to continue in.
func (b *Builder) Build() (string, error) {
	if b.persona == "" {
		return "", fmt.Errorf("persona is required")
	}
	if b.speakerName == "" {
		return "", fmt.Errorf("speaker name is required")
	}

	var sb strings.Builder
	sb.WriteString(b.persona)
	sb.WriteString("\n")
	if b.dynamicContext != "" {
		sb.WriteString(b.dynamicContext)
		sb.WriteString("\n")
	}
	sb.WriteString("\nConversation History:\n")

	recent := b.history
	if b.historyLimit > 0 && len(recent) > b.historyLimit {
		recent = recent[len(recent)-b.historyLimit:]
	}
	for _, msg := range recent {
		label := b.speakerName
		if msg.Sender == chat.SenderUser {
			label = "Detective"
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", label, msg.Text))
	}

	sb.WriteString(fmt.Sprintf("\nDetective: %s\n%s: ", b.userMessage, b.speakerName))
	return sb.String(), nil
}
