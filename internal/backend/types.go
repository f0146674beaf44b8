// Package backend is the HTTP client of the tutor inference backend.
package backend

import "github.com/ashureev/textbook-tutor/internal/domain"

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message     string                 `json:"message"`
	Context     string                 `json:"context,omitempty"`
	UserProfile *domain.ProfilePayload `json:"user_profile,omitempty"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Reply   string   `json:"reply"`
	Sources []string `json:"sources,omitempty"`
}

// TranslateRequest is the body of POST /translate.
type TranslateRequest struct {
	Content        string `json:"content"`
	TargetLanguage string `json:"target_language,omitempty"`
}

// PersonalizeRequest is the body of POST /personalize.
type PersonalizeRequest struct {
	Content     string                `json:"content"`
	UserProfile domain.ProfilePayload `json:"user_profile"`
}

// ContentResponse is the body returned by /translate and /personalize.
type ContentResponse struct {
	Content string `json:"content"`
}

// chatWire and contentWire detect missing fields in replies.
type chatWire struct {
	Reply   *string  `json:"reply"`
	Sources []string `json:"sources"`
}

type contentWire struct {
	Content *string `json:"content"`
}
