package core

import "github.com/google/uuid"

// Role identifies the speaker of a conversational turn.
type Role string

const (
	// RoleUser marks a turn authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a turn authored by an agent.
	RoleAssistant Role = "assistant"
	// RoleSystem marks instruction turns injected ahead of the conversation.
	RoleSystem Role = "system"
)

// Message is a single role-tagged turn. History stores persist user and
// assistant turns; system turns exist only inside a model request.
type Message struct {
	Role Role   `json:"role" yaml:"role"`
	Text string `json:"text" yaml:"text"`
}

// UserMessage builds a user turn.
func UserMessage(text string) Message { return Message{Role: RoleUser, Text: text} }

// AssistantMessage builds an assistant turn.
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Text: text} }

// SystemMessage builds a system turn.
func SystemMessage(text string) Message { return Message{Role: RoleSystem, Text: text} }

// NewID generates a new unique identifier for sessions and requests.
func NewID() string { return uuid.NewString() }
