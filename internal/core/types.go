package core

import "fmt"

// Role names accepted from callers. The system instruction is never taken from caller input.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a single turn of a conversation
type Message struct {
	Role    string `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

// ChatRequest is the vendor-neutral request handed to a Provider.
// SystemPrompt is kept apart from Messages so each adapter can place it where its vendor expects.
type ChatRequest struct {
	Temperature  *float64  `json:"temperature,omitempty"`
	MaxTokens    *int      `json:"max_tokens,omitempty"`
	Model        string    `json:"model"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
	Stream       bool      `json:"stream,omitempty"`
}

// StreamCallbacks receives the outcome of one streaming invocation.
// OnDelta fires zero or more times, then exactly one of OnDone or OnError.
type StreamCallbacks struct {
	OnDelta func(text string)
	OnDone  func()
	OnError func(message string)
}

// ValidateMessages checks a caller-supplied history before it is sent upstream.
func ValidateMessages(messages []Message) error {
	if len(messages) == 0 {
		return NewInvalidRequestError("messages must not be empty", nil)
	}
	for i, m := range messages {
		switch m.Role {
		case RoleUser, RoleAssistant:
		case RoleSystem:
			return NewInvalidRequestError("system messages are not accepted from callers", nil)
		default:
			return NewInvalidRequestError(fmt.Sprintf("message %d has unknown role %q", i, m.Role), nil)
		}
	}
	if messages[len(messages)-1].Role != RoleUser {
		return NewInvalidRequestError("last message must come from the user", nil)
	}
	return nil
}
