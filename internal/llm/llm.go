// Package llm defines the provider-neutral text generation contract.
package llm

import (
	"context"
	"errors"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn sent to a model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call.
type Request struct {
	Messages    []Message
	Temperature *float64
	// JSON asks the provider to constrain output to a JSON object.
	JSON bool
}

// Completer produces one completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("model returned empty response")

// Temperature returns a pointer to t.
func Temperature(t float64) *float64 {
	return &t
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant builds an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }
