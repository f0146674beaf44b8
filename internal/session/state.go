// Package session implements the widget's session state machine.
//
// Every transition is a method on State that mutates it in place and returns
// the side effects the caller must perform (notices, confirmation prompts,
// backend requests, persistence). State performs no I/O and is not safe for
// concurrent use; callers serialize access.
package session

import (
	"strings"

	"github.com/ashureev/textbook-tutor/internal/domain"
	"github.com/ashureev/textbook-tutor/internal/pagectx"
	"github.com/google/uuid"
)

// ScrollThreshold is the distance from the bottom, in pixels, beyond which the
// scroll-to-bottom affordance is shown.
const ScrollThreshold = 100

// View is the widget's top-level state.
type View string

const (
	ViewClosed      View = "closed"
	ViewProfileForm View = "profile_form"
	ViewChatting    View = "chatting"
	ViewLoading     View = "loading"
)

// FormField names a profile form field.
type FormField string

const (
	FieldName     FormField = "name"
	FieldSoftware FormField = "software"
	FieldHardware FormField = "hardware"
)

// ScrollMetrics describes the transcript viewport.
type ScrollMetrics struct {
	ScrollHeight float64 `json:"scroll_height"`
	ScrollTop    float64 `json:"scroll_top"`
	ClientHeight float64 `json:"client_height"`
}

// Option configures a State.
type Option func(*State)

// WithIDFunc overrides message id generation.
func WithIDFunc(fn func() string) Option {
	return func(s *State) { s.newID = fn }
}

// State owns the transcript, input buffer, loading gate and view flags of one
// page load.
type State struct {
	transcript    []domain.Message
	input         string
	form          domain.ProfileForm
	profile       *domain.UserProfile
	open          bool
	formVisible   bool
	scrollVisible bool
	confirming    bool
	pending       *Request
	lastTicket    uint64
	newID         func() string
}

// New creates the state for a page load. A nil profile starts with the
// profile form selected; otherwise the transcript opens with a welcome.
func New(profile *domain.UserProfile, opts ...Option) *State {
	s := &State{newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}

	if profile == nil {
		s.formVisible = true
		s.appendMessage(domain.RoleAssistant, GreetingText, nil)
		return s
	}

	p := *profile
	s.profile = &p
	s.form = p.Form()
	s.appendMessage(domain.RoleAssistant, WelcomeText(p.Name), nil)
	return s
}

// View returns the current top-level state.
func (s *State) View() View {
	switch {
	case !s.open:
		return ViewClosed
	case s.formVisible:
		return ViewProfileForm
	case s.pending != nil:
		return ViewLoading
	default:
		return ViewChatting
	}
}

// IsLoading reports whether a backend request is outstanding.
func (s *State) IsLoading() bool { return s.pending != nil }

// Pending returns the outstanding request, or nil.
func (s *State) Pending() *Request {
	if s.pending == nil {
		return nil
	}
	r := *s.pending
	return &r
}

// Profile returns a copy of the current profile, or nil.
func (s *State) Profile() *domain.UserProfile {
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

// Transcript returns a copy of the transcript in display order.
func (s *State) Transcript() []domain.Message {
	out := make([]domain.Message, len(s.transcript))
	copy(out, s.transcript)
	for i := range out {
		if out[i].Sources != nil {
			out[i].Sources = append([]string(nil), out[i].Sources...)
		}
	}
	return out
}

// Toggle opens or closes the widget. Transcript and form data are kept.
func (s *State) Toggle() {
	s.open = !s.open
}

// SetInput replaces the chat input buffer.
func (s *State) SetInput(text string) {
	s.input = text
}

// SetFormField updates one profile form field. Unknown fields are ignored.
func (s *State) SetFormField(field FormField, value string) {
	switch field {
	case FieldName:
		s.form.Name = value
	case FieldSoftware:
		s.form.Software = value
	case FieldHardware:
		s.form.Hardware = value
	}
}

// Submit sends the input buffer as a chat message with the given selection as
// context. Blank input, the profile form and the loading gate make it a no-op.
func (s *State) Submit(selection string) []Effect {
	if !s.canChat() || strings.TrimSpace(s.input) == "" {
		return nil
	}
	text := s.input
	s.input = ""
	return s.startChat(text, selection)
}

// ClickSuggestion sends suggestion chip index as a chat message.
func (s *State) ClickSuggestion(index int, selection string) []Effect {
	if index < 0 || index >= len(Suggestions) || !s.canChat() {
		return nil
	}
	return s.startChat(Suggestions[index], selection)
}

func (s *State) canChat() bool {
	return !s.formVisible && s.pending == nil
}

func (s *State) startChat(text, selection string) []Effect {
	s.appendMessage(domain.RoleUser, text, nil)
	return s.issue(Request{
		Kind:    KindChat,
		Message: text,
		Context: selection,
		Profile: s.Profile(),
	})
}

// ContentAction runs translate or personalize on content. Content shorter
// than pagectx.MinActionContentLength is rejected with a notice.
func (s *State) ContentAction(kind RequestKind, content string) []Effect {
	var prompt string
	switch kind {
	case KindTranslate:
		prompt = TranslatePromptText
	case KindPersonalize:
		prompt = PersonalizePromptText
	default:
		return nil
	}
	if s.pending != nil {
		return nil
	}
	if !pagectx.LongEnough(content) {
		return notice(ContentTooShortText)
	}
	if s.profile == nil && (s.formVisible || kind == KindPersonalize) {
		return notice(ProfileRequiredText)
	}

	s.formVisible = false
	s.open = true
	s.appendMessage(domain.RoleUser, prompt, nil)

	req := Request{Kind: kind, Content: content}
	if kind == KindPersonalize {
		req.Profile = s.Profile()
	}
	return s.issue(req)
}

func (s *State) issue(req Request) []Effect {
	s.lastTicket++
	req.Ticket = s.lastTicket
	s.pending = &req
	out := req
	return []Effect{{Type: EffectRequest, Request: &out, Ticket: req.Ticket}}
}

// Resolve appends reply for the outstanding request with ticket and clears
// the loading gate. It reports false for unknown or stale tickets.
func (s *State) Resolve(ticket uint64, reply Reply) bool {
	if s.pending == nil || s.pending.Ticket != ticket {
		return false
	}
	var sources []string
	if len(reply.Sources) > 0 {
		sources = append([]string(nil), reply.Sources...)
	}
	s.appendMessage(domain.RoleAssistant, reply.Content, sources)
	s.pending = nil
	return true
}

// Fail appends the fixed offline notice for the outstanding request with
// ticket and clears the loading gate. It reports false for unknown or stale tickets.
func (s *State) Fail(ticket uint64) bool {
	if s.pending == nil || s.pending.Ticket != ticket {
		return false
	}
	text := ActionOfflineText
	if s.pending.Kind == KindChat {
		text = ChatOfflineText
	}
	s.appendMessage(domain.RoleAssistant, text, nil)
	s.pending = nil
	return true
}

// Cancel abandons the outstanding request.
func (s *State) Cancel() []Effect {
	if s.pending == nil {
		return nil
	}
	ticket := s.pending.Ticket
	s.pending = nil
	s.appendMessage(domain.RoleAssistant, CancelledText, nil)
	return []Effect{{Type: EffectCancelRequest, Ticket: ticket}}
}

// SaveProfile validates the form and stores the profile.
func (s *State) SaveProfile() []Effect {
	if !s.formVisible {
		return nil
	}
	p, err := domain.NewUserProfile(s.form)
	if err != nil {
		return notice(NameRequiredText)
	}

	s.profile = &p
	s.form = p.Form()
	s.formVisible = false
	s.appendMessage(domain.RoleAssistant, ProfileSavedText, nil)

	saved := p
	return []Effect{{Type: EffectPersistProfile, Profile: &saved}}
}

// EditProfile shows the profile form pre-filled from the current profile.
// It requires a profile and is refused while loading.
func (s *State) EditProfile() {
	if s.profile == nil || s.pending != nil {
		return
	}
	s.form = s.profile.Form()
	s.formVisible = true
}

// CancelEdit hides the profile form without saving.
func (s *State) CancelEdit() {
	if s.profile == nil || !s.formVisible {
		return
	}
	s.form = s.profile.Form()
	s.formVisible = false
}

// RequestClear asks for confirmation before clearing the transcript.
func (s *State) RequestClear() []Effect {
	s.confirming = true
	return []Effect{{Type: EffectConfirm, Text: ClearConfirmText}}
}

// ConfirmClear answers the pending clear confirmation. On confirm the
// transcript is replaced by a single clear-confirmation message.
func (s *State) ConfirmClear(confirmed bool) {
	if !s.confirming {
		return
	}
	s.confirming = false
	if !confirmed {
		return
	}
	s.transcript = nil
	s.appendMessage(domain.RoleAssistant, ClearedText, nil)
}

// Scroll recomputes the scroll-to-bottom affordance.
func (s *State) Scroll(m ScrollMetrics) {
	s.scrollVisible = m.ScrollHeight-m.ScrollTop-m.ClientHeight > ScrollThreshold
}

// ScrollToBottom asks the presenter to scroll to the newest entry.
func (s *State) ScrollToBottom() []Effect {
	s.scrollVisible = false
	return []Effect{{Type: EffectScrollToBottom}}
}

func (s *State) appendMessage(role domain.Role, content string, sources []string) {
	s.transcript = append(s.transcript, domain.Message{
		ID:      s.newID(),
		Role:    role,
		Content: content,
		Sources: sources,
	})
}
