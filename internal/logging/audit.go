package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	// Identity events
	SignUp        AuditEventType = "SIGN_UP"
	SignInSuccess AuditEventType = "SIGN_IN_SUCCESS"
	SignInFailure AuditEventType = "SIGN_IN_FAILURE"
	SignOut       AuditEventType = "SIGN_OUT"
	EmailVerified AuditEventType = "EMAIL_VERIFIED"
	PasswordReset AuditEventType = "PASSWORD_RESET"

	// Vault events
	RecordCreate AuditEventType = "RECORD_CREATE"
	RecordUpdate AuditEventType = "RECORD_UPDATE"
	RecordDelete AuditEventType = "RECORD_DELETE"

	// Operational events
	ConfigChange AuditEventType = "CONFIG_CHANGE"
	APIAccess    AuditEventType = "API_ACCESS"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	StatusSuccess AuditStatus = "success"
	StatusFailure AuditStatus = "failure"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	EventType    AuditEventType         `json:"event_type"`
	UserID       string                 `json:"user_id,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	Action       string                 `json:"action"`
	Resource     string                 `json:"resource,omitempty"`
	Status       AuditStatus            `json:"status"`
	Details      map[string]interface{} `json:"details,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// NewAuditEvent creates a new audit event with a generated ID and timestamp
func NewAuditEvent(eventType AuditEventType, action string, status AuditStatus) *AuditEvent {
	return &AuditEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Action:    action,
		Status:    status,
	}
}

// WithUserID sets the user ID for the audit event
func (e *AuditEvent) WithUserID(userID string) *AuditEvent {
	e.UserID = userID
	return e
}

// WithIPAddress sets the IP address for the audit event
func (e *AuditEvent) WithIPAddress(ipAddress string) *AuditEvent {
	e.IPAddress = ipAddress
	return e
}

// WithResource sets the resource for the audit event
func (e *AuditEvent) WithResource(resource string) *AuditEvent {
	e.Resource = resource
	return e
}

// WithDetails sets the details map for the audit event
func (e *AuditEvent) WithDetails(details map[string]interface{}) *AuditEvent {
	e.Details = details
	return e
}

// WithError sets the error message and marks the event as failed
func (e *AuditEvent) WithError(errorMessage string) *AuditEvent {
	e.ErrorMessage = errorMessage
	e.Status = StatusFailure
	return e
}

// ToJSON converts the audit event to a JSON string
func (e *AuditEvent) ToJSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error": "failed to marshal audit event: %v"}`, err)
	}
	return string(data)
}

// AuditTrail records security audit events. Recording never blocks the
// caller's operation; sink failures are dropped.
type AuditTrail interface {
	Record(event *AuditEvent)
}

// WriterAuditTrail writes audit events as JSON lines to an io.Writer
type WriterAuditTrail struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriterAuditTrail creates an audit trail backed by a writer
func NewWriterAuditTrail(out io.Writer) *WriterAuditTrail {
	return &WriterAuditTrail{out: out}
}

// Record writes the event as one JSON line
func (t *WriterAuditTrail) Record(event *AuditEvent) {
	if event == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, event.ToJSON())
}

// NopAuditTrail discards all events
type NopAuditTrail struct{}

// Record discards the event
func (NopAuditTrail) Record(*AuditEvent) {}

var _ AuditTrail = (*WriterAuditTrail)(nil)
var _ AuditTrail = NopAuditTrail{}
