package host

import (
	"github.com/ashureev/textbook-tutor/internal/domain"
	"github.com/ashureev/textbook-tutor/internal/render"
	"github.com/ashureev/textbook-tutor/internal/session"
)

// Inbound message types.
const (
	msgToggle       = "toggle"
	msgInput        = "input"
	msgSend         = "send"
	msgSuggestion   = "suggestion"
	msgAction       = "action"
	msgProfileField = "profile_field"
	msgSaveProfile  = "save_profile"
	msgEditProfile  = "edit_profile"
	msgCancelEdit   = "cancel_edit"
	msgClear        = "clear"
	msgConfirmClear = "confirm_clear"
	msgScroll       = "scroll"
	msgScrollBottom = "scroll_bottom"
	msgSelection    = "selection"
	msgPage         = "page"
	msgCancel       = "cancel"
	msgPing         = "ping"
)

// Outbound message types.
const (
	outState        = "state"
	outNotice       = "notice"
	outConfirm      = "confirm"
	outScrollBottom = "scroll_bottom"
	outPong         = "pong"
	outError        = "error"
)

// clientMessage is an event sent by the widget script.
type clientMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Index     int    `json:"index,omitempty"`
	Action    string `json:"action,omitempty"`
	Field     string `json:"field,omitempty"`
	Value     string `json:"value,omitempty"`
	Confirmed bool   `json:"confirmed,omitempty"`
	HTML      string `json:"html,omitempty"`
	session.ScrollMetrics
}

// serverMessage is a frame sent to the widget script.
type serverMessage struct {
	Type  string     `json:"type"`
	Text  string     `json:"text,omitempty"`
	State *stateView `json:"state,omitempty"`
}

// messageView is a transcript entry with its rendered markup.
type messageView struct {
	domain.Message
	HTML string `json:"html"`
}

// stateView is the snapshot shape the widget script renders.
type stateView struct {
	session.Snapshot
	Transcript []messageView `json:"transcript"`
}

func newStateView(snap session.Snapshot, r *render.Renderer) *stateView {
	view := &stateView{Snapshot: snap, Transcript: make([]messageView, 0, len(snap.Transcript))}
	for _, m := range snap.Transcript {
		view.Transcript = append(view.Transcript, messageView{Message: m, HTML: r.HTML(m.Content)})
	}
	return view
}

func effectMessages(effects []session.Effect) []serverMessage {
	var out []serverMessage
	for _, e := range effects {
		switch e.Type {
		case session.EffectNotice:
			out = append(out, serverMessage{Type: outNotice, Text: e.Text})
		case session.EffectConfirm:
			out = append(out, serverMessage{Type: outConfirm, Text: e.Text})
		case session.EffectScrollToBottom:
			out = append(out, serverMessage{Type: outScrollBottom})
		}
	}
	return out
}
