package identity

import (
	"context"
	"sync"

	"github.com/vaultguard/vaultguard/internal/logging"
)

// Mailer delivers verification and password-reset tokens to users.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes mail events to the structured log instead of sending
// real mail. It is the default for self-hosted deployments without SMTP.
type LogMailer struct {
	logger *logging.Logger
}

// NewLogMailer creates a log-backed mailer
func NewLogMailer(logger *logging.Logger) *LogMailer {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerification(ctx context.Context, email, token string) error {
	m.logger.InfoWithContext(ctx, "verification mail", "email", email, "token", token)
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	m.logger.InfoWithContext(ctx, "password reset mail", "email", email, "token", token)
	return nil
}

// RecordingMailer captures sent mail for tests.
type RecordingMailer struct {
	mu            sync.Mutex
	Verifications []string
	Resets        []string
}

func (m *RecordingMailer) SendVerification(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Verifications = append(m.Verifications, email+":"+token)
	return nil
}

func (m *RecordingMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resets = append(m.Resets, email+":"+token)
	return nil
}

// VerificationCount returns how many verification mails were captured.
func (m *RecordingMailer) VerificationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Verifications)
}

// LastVerificationToken returns the token of the most recent verification
// mail, or an empty string.
func (m *RecordingMailer) LastVerificationToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Verifications) == 0 {
		return ""
	}
	return tokenPart(m.Verifications[len(m.Verifications)-1])
}

// LastResetToken returns the token of the most recent reset mail.
func (m *RecordingMailer) LastResetToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Resets) == 0 {
		return ""
	}
	return tokenPart(m.Resets[len(m.Resets)-1])
}

func tokenPart(entry string) string {
	for i := 0; i < len(entry); i++ {
		if entry[i] == ':' {
			return entry[i+1:]
		}
	}
	return ""
}
