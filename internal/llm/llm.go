// ABOUTME: Collaborator interfaces for chat completion and text embedding
// ABOUTME: Implemented by the OpenAI-compatible clients and by in-package fakes in tests
package llm

import "context"

// Role tags a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one role-tagged message of a chat completion request
type ChatMessage struct {
	Role    Role
	Content string
}

// ChatModel sends messages to a generative model and returns its raw text reply
type ChatModel interface {
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
}

// Embedder turns texts into vectors, one per input, in input order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Model() string
}
