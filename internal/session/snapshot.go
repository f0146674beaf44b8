package session

import (
	"strings"

	"github.com/ashureev/textbook-tutor/internal/domain"
)

// Snapshot is a read-only copy of the state for presentation.
type Snapshot struct {
	// Version orders snapshots of one controller; zero when taken directly
	// from a State.
	Version                 uint64              `json:"version"`
	View                    View                `json:"view"`
	Open                    bool                `json:"open"`
	Loading                 bool                `json:"loading"`
	ProfileFormVisible      bool                `json:"profile_form_visible"`
	ScrollAffordanceVisible bool                `json:"scroll_affordance_visible"`
	ConfirmingClear         bool                `json:"confirming_clear"`
	Title                   string              `json:"title"`
	Transcript              []domain.Message    `json:"transcript"`
	Input                   string              `json:"input"`
	Placeholder             string              `json:"placeholder"`
	CanSend                 bool                `json:"can_send"`
	CanEditProfile          bool                `json:"can_edit_profile"`
	Suggestions             []string            `json:"suggestions"`
	Form                    domain.ProfileForm  `json:"form"`
	Profile                 *domain.UserProfile `json:"profile,omitempty"`
}

// Snapshot captures the state. hasSelection selects the input placeholder.
func (s *State) Snapshot(hasSelection bool) Snapshot {
	title := titleBase
	if s.profile != nil {
		title += " • " + s.profile.Name
	}
	placeholder := placeholderDefault
	if hasSelection {
		placeholder = placeholderSelection
	}
	return Snapshot{
		View:                    s.View(),
		Open:                    s.open,
		Loading:                 s.pending != nil,
		ProfileFormVisible:      s.formVisible,
		ScrollAffordanceVisible: s.scrollVisible,
		ConfirmingClear:         s.confirming,
		Title:                   title,
		Transcript:              s.Transcript(),
		Input:                   s.input,
		Placeholder:             placeholder,
		CanSend:                 s.canChat() && strings.TrimSpace(s.input) != "",
		CanEditProfile:          s.profile != nil && s.pending == nil,
		Suggestions:             append([]string(nil), Suggestions...),
		Form:                    s.form,
		Profile:                 s.Profile(),
	}
}
