package models

import "time"

// UserAccount is a registered identity. PasswordHash is a bcrypt hash;
// OAuth-provisioned accounts leave it empty.
type UserAccount struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name,omitempty"`
	PasswordHash  string    `json:"-"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Session is the authenticated-user context exposed to the rest of the
// application. It is ephemeral and never persisted by this code.
type Session struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// Usable reports whether the session may gate access to the vault. Only
// verified sessions count; an unverified session is treated as signed out.
func (s Session) Usable() bool {
	return s.UserID != "" && s.EmailVerified
}

// ProfileUpdate holds optional profile field changes.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
}
