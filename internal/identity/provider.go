// Package identity implements account management and the session gate:
// sign-up with mandatory email verification, password and OAuth sign-in,
// token resolution, and a state machine that turns provider notices into
// consumer-facing session events.
package identity

import (
	"context"

	"github.com/vaultguard/vaultguard/internal/models"
)

// NoticeKind discriminates provider session notices.
type NoticeKind string

const (
	NoticeSignedIn   NoticeKind = "signed_in"
	NoticeSignedOut  NoticeKind = "signed_out"
	NoticeUnverified NoticeKind = "unverified"
)

// SessionNotice is pushed by a Provider whenever a session is established
// or torn down. Unverified sign-ins surface as NoticeUnverified so the
// gate can tear them down.
type SessionNotice struct {
	Kind    NoticeKind
	Token   string
	Session models.Session
}

// Authenticated is the result of a successful sign-in.
type Authenticated struct {
	Token   string         `json:"token"`
	Session models.Session `json:"session"`
}

// Provider is the authentication boundary. Implementations must be safe
// for concurrent use.
type Provider interface {
	// SignUp registers a new account and sends a verification mail. The
	// account is not usable until the mail's token is redeemed.
	SignUp(ctx context.Context, email, password string) (models.UserAccount, error)

	// SignIn authenticates by password. An unverified account yields
	// ErrEmailNotVerified; the attempt is still announced as a
	// NoticeUnverified so the gate can react.
	SignIn(ctx context.Context, email, password string) (Authenticated, error)

	// SignOut invalidates a session token. Unknown tokens are a no-op.
	SignOut(ctx context.Context, token string) error

	// SendPasswordReset mails a reset token. It does not reveal whether
	// the address has an account.
	SendPasswordReset(ctx context.Context, email string) error

	// ResendVerification mails a fresh verification token.
	ResendVerification(ctx context.Context, email string) error

	// VerifyEmail redeems a verification token.
	VerifyEmail(ctx context.Context, token string) error

	// ResetPassword redeems a reset token and replaces the password.
	ResetPassword(ctx context.Context, token, newPassword string) error

	// UpdateProfile applies profile changes to the session's account.
	UpdateProfile(ctx context.Context, token string, update models.ProfileUpdate) (models.Session, error)

	// Resolve maps a session token to its session, or
	// ErrInvalidCredentials when the token is unknown or expired.
	Resolve(ctx context.Context, token string) (models.Session, error)

	// Sessions subscribes to session notices. The cancel function detaches
	// the subscriber and closes the channel.
	Sessions() (<-chan SessionNotice, func())
}
