package session

import "fmt"

// Fixed widget texts.
const (
	GreetingText          = "Hello! I am your AI Tutor. Please set up your profile to enable personalization."
	ProfileSavedText      = "Profile saved! I will now tailor my explanations to your background."
	ChatOfflineText       = "Backend Offline. Please start the FastAPI server."
	ActionOfflineText     = "Error connecting to Intelligence Engine."
	ClearedText           = "Chat cleared. How can I help with your Physical AI studies?"
	CancelledText         = "Request cancelled."
	NameRequiredText      = "Name is required"
	ContentTooShortText   = "Please select some text or go to a page with content."
	ProfileRequiredText   = "Please set up your profile first."
	ClearConfirmText      = "Clear the conversation history?"
	TranslatePromptText   = "🌐 Translate this page to Urdu."
	PersonalizePromptText = "✨ Personalize this content for me."

	placeholderSelection = "Ask about selected text..."
	placeholderDefault   = "Ask a question..."
	titleBase            = "AI Tutor"
)

// Suggestions are the fixed suggestion chip texts.
var Suggestions = []string{
	"Explain ROS 2 nodes and topics",
	"What is a URDF file?",
	"How is reinforcement learning used in robotics?",
}

// WelcomeText greets a returning user.
func WelcomeText(name string) string {
	return fmt.Sprintf("Welcome back, %s! How can I help with your Physical AI studies today?", name)
}
