package models

import (
	"strings"
	"time"
)

// Profile holds arbitrary user profile fields. The "name" key is
// conventional and used for display.
type Profile map[string]any

// Name returns the display name stored in the profile, or "".
func (p Profile) Name() string {
	name, _ := p["name"].(string)
	return name
}

// Session is the current authentication state as reported by the remote
// store adapter. A nil *Session means signed out.
type Session struct {
	UserID string
	Email  string
}

// UserDocument is the full per-user document kept by the remote store:
// profile plus the three record collections.
type UserDocument struct {
	Email        string   `json:"email"`
	Profile      Profile  `json:"profile"`
	Medications  []Record `json:"medications"`
	Appointments []Record `json:"appointments"`
	Vitals       []Record `json:"vitals"`
	CreatedAt    string   `json:"createdAt,omitempty"`
}

// NewUserDocument builds the default document for a fresh account: the
// email, a profile seeded with the mailbox part of the address as the
// display name, and three empty collections.
func NewUserDocument(email string) *UserDocument {
	name := email
	if i := strings.Index(email, "@"); i > 0 {
		name = email[:i]
	}
	return &UserDocument{
		Email:        email,
		Profile:      Profile{"name": name},
		Medications:  []Record{},
		Appointments: []Record{},
		Vitals:       []Record{},
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

// Normalize replaces nil collections and profile with empty ones so that
// callers never have to nil-check a loaded document.
func (d *UserDocument) Normalize() {
	if d.Profile == nil {
		d.Profile = Profile{}
	}
	if d.Medications == nil {
		d.Medications = []Record{}
	}
	if d.Appointments == nil {
		d.Appointments = []Record{}
	}
	if d.Vitals == nil {
		d.Vitals = []Record{}
	}
}
