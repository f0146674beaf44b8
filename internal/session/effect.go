package session

import "github.com/ashureev/textbook-tutor/internal/domain"

// EffectType names a side effect a transition asks the caller to perform.
type EffectType string

const (
	// EffectNotice shows a blocking notice with Text.
	EffectNotice EffectType = "notice"
	// EffectConfirm asks the user to confirm Text; the answer goes to ConfirmClear.
	EffectConfirm EffectType = "confirm"
	// EffectRequest issues Request to the backend.
	EffectRequest EffectType = "request"
	// EffectPersistProfile saves Profile.
	EffectPersistProfile EffectType = "persist_profile"
	// EffectCancelRequest aborts the backend call with Ticket.
	EffectCancelRequest EffectType = "cancel_request"
	// EffectScrollToBottom scrolls the transcript to its newest entry.
	EffectScrollToBottom EffectType = "scroll_to_bottom"
)

// Effect is a side effect descriptor returned by a transition.
type Effect struct {
	Type    EffectType
	Text    string
	Request *Request
	Profile *domain.UserProfile
	Ticket  uint64
}

// RequestKind selects the backend operation of a Request.
type RequestKind string

const (
	KindChat        RequestKind = "chat"
	KindTranslate   RequestKind = "translate"
	KindPersonalize RequestKind = "personalize"
)

// Request describes one backend call. Ticket identifies it when it resolves.
type Request struct {
	Ticket  uint64
	Kind    RequestKind
	Message string              // chat question
	Context string              // chat selection, "" when none
	Content string              // translate/personalize input
	Profile *domain.UserProfile // nil for anonymous chat
}

// Reply is a successful backend result.
type Reply struct {
	Content string
	Sources []string
}

func notice(text string) []Effect {
	return []Effect{{Type: EffectNotice, Text: text}}
}
