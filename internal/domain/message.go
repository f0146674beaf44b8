package domain

// Role identifies the author of a transcript entry.
type Role string

const (
	// RoleUser marks turns typed or triggered by the reader.
	RoleUser Role = "user"
	// RoleAssistant marks replies, notices and greetings.
	RoleAssistant Role = "assistant"
)

// Message is a single immutable transcript entry.
type Message struct {
	ID      string   `json:"id"`
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	Sources []string `json:"sources,omitempty"`
}
