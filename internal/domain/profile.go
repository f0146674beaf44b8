// Package domain contains core domain types for the tutor widget.
package domain

import (
	"errors"
	"strings"
)

const (
	// DefaultSoftwareBackground is stored when the software field is left blank.
	DefaultSoftwareBackground = "General"
	// DefaultHardwareBackground is stored when the hardware field is left blank.
	DefaultHardwareBackground = "None"
	// PlaceholderUserID is the fixed user id attached to profile payloads.
	PlaceholderUserID = "1"
)

// ErrNameRequired is returned when a profile is saved without a name.
var ErrNameRequired = errors.New("name is required")

// UserProfile is the user-declared background used to tailor backend responses.
type UserProfile struct {
	Name       string `json:"name"`
	SoftwareBG string `json:"software_bg"`
	HardwareBG string `json:"hardware_bg"`
}

// ProfileForm holds the raw values of the profile form fields.
type ProfileForm struct {
	Name     string `json:"name"`
	Software string `json:"software"`
	Hardware string `json:"hardware"`
}

// NewUserProfile validates form input and applies background defaults.
func NewUserProfile(form ProfileForm) (UserProfile, error) {
	name := strings.TrimSpace(form.Name)
	if name == "" {
		return UserProfile{}, ErrNameRequired
	}
	software := strings.TrimSpace(form.Software)
	if software == "" {
		software = DefaultSoftwareBackground
	}
	hardware := strings.TrimSpace(form.Hardware)
	if hardware == "" {
		hardware = DefaultHardwareBackground
	}
	return UserProfile{Name: name, SoftwareBG: software, HardwareBG: hardware}, nil
}

// Valid reports whether the profile satisfies the stored-record invariants.
func (p UserProfile) Valid() bool {
	return strings.TrimSpace(p.Name) != ""
}

// Form returns the form values that pre-fill the profile editor.
func (p UserProfile) Form() ProfileForm {
	return ProfileForm{Name: p.Name, Software: p.SoftwareBG, Hardware: p.HardwareBG}
}

// Payload returns the wire representation sent to the backend.
func (p UserProfile) Payload() ProfilePayload {
	return ProfilePayload{
		UserID:     PlaceholderUserID,
		Name:       p.Name,
		SoftwareBG: p.SoftwareBG,
		HardwareBG: p.HardwareBG,
	}
}

// ProfilePayload is the user_profile object of backend requests.
type ProfilePayload struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	SoftwareBG string `json:"software_bg"`
	HardwareBG string `json:"hardware_bg"`
}
