package models

// SessionState is the session gate's externally visible state.
type SessionState string

const (
	StateLoading         SessionState = "loading"
	StateAuthenticated   SessionState = "authenticated"
	StateUnauthenticated SessionState = "unauthenticated"
)

// EventKind discriminates the typed events pushed to a consumer channel.
type EventKind string

const (
	EventSessionChanged      EventKind = "session_changed"
	EventCredentialsSnapshot EventKind = "credentials_snapshot"
	EventStreamError         EventKind = "stream_error"
)

// Event is the single consumer-facing notification type. Exactly one of the
// payload fields is populated, selected by Kind.
type Event struct {
	Kind     EventKind
	Session  *SessionChanged
	Snapshot *CredentialsSnapshot
	Err      error
}

// SessionChanged reports a gate state transition.
type SessionChanged struct {
	State   SessionState
	Session Session
}

// CredentialsSnapshot is a full replacement list of credential records, as
// delivered by a live subscription. Consumers recompute derived state from
// each snapshot; they never mutate it in place.
type CredentialsSnapshot struct {
	Records []CredentialRecord
}

// NewSessionEvent wraps a gate transition as an Event.
func NewSessionEvent(state SessionState, session Session) Event {
	return Event{Kind: EventSessionChanged, Session: &SessionChanged{State: state, Session: session}}
}

// NewSnapshotEvent wraps a snapshot as an Event.
func NewSnapshotEvent(records []CredentialRecord) Event {
	return Event{Kind: EventCredentialsSnapshot, Snapshot: &CredentialsSnapshot{Records: records}}
}

// NewErrorEvent wraps a stream error as an Event.
func NewErrorEvent(err error) Event {
	return Event{Kind: EventStreamError, Err: err}
}
