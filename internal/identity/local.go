package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vaultguard/vaultguard/internal/errors"
	"github.com/vaultguard/vaultguard/internal/logging"
	"github.com/vaultguard/vaultguard/internal/models"
)

const (
	// MinPasswordLength is the sign-up floor. Callers are expected to
	// nudge users toward much stronger passwords than this.
	MinPasswordLength = 6

	defaultSessionTTL    = 24 * time.Hour
	defaultTokenTTL      = time.Hour
	defaultMaxFailures   = 5
	defaultFailureWindow = 15 * time.Minute

	noticeBuffer = 8
)

type tokenEntry struct {
	userID    string
	expiresAt time.Time
}

type failureWindow struct {
	count   int
	started time.Time
}

// LocalProvider is the self-hosted Provider: bcrypt password hashes, uuid
// tokens with expiry, and a pluggable Mailer for verification and reset
// delivery.
type LocalProvider struct {
	users  UserStore
	mailer Mailer
	logger *logging.Logger
	audit  logging.AuditTrail

	sessionTTL    time.Duration
	tokenTTL      time.Duration
	maxFailures   int
	failureWindow time.Duration

	mu           sync.Mutex
	sessions     map[string]tokenEntry
	verifyTokens map[string]tokenEntry
	resetTokens  map[string]tokenEntry
	failures     map[string]*failureWindow

	subMu       sync.RWMutex
	subscribers []chan SessionNotice
}

// LocalOption configures a LocalProvider.
type LocalOption func(*LocalProvider)

// WithSessionTTL overrides the session token lifetime.
func WithSessionTTL(ttl time.Duration) LocalOption {
	return func(p *LocalProvider) { p.sessionTTL = ttl }
}

// WithTokenTTL overrides the verification/reset token lifetime.
func WithTokenTTL(ttl time.Duration) LocalOption {
	return func(p *LocalProvider) { p.tokenTTL = ttl }
}

// WithSignInLimit overrides the fixed-window sign-in failure limit.
func WithSignInLimit(maxFailures int, window time.Duration) LocalOption {
	return func(p *LocalProvider) {
		p.maxFailures = maxFailures
		p.failureWindow = window
	}
}

// WithAuditTrail wires an audit sink for auth events.
func WithAuditTrail(trail logging.AuditTrail) LocalOption {
	return func(p *LocalProvider) { p.audit = trail }
}

// NewLocalProvider creates a provider over the given user store and mailer
func NewLocalProvider(users UserStore, mailer Mailer, logger *logging.Logger, opts ...LocalOption) *LocalProvider {
	if logger == nil {
		logger = logging.NewLogger()
	}
	p := &LocalProvider{
		users:         users,
		mailer:        mailer,
		logger:        logger,
		audit:         logging.NopAuditTrail{},
		sessionTTL:    defaultSessionTTL,
		tokenTTL:      defaultTokenTTL,
		maxFailures:   defaultMaxFailures,
		failureWindow: defaultFailureWindow,
		sessions:      make(map[string]tokenEntry),
		verifyTokens:  make(map[string]tokenEntry),
		resetTokens:   make(map[string]tokenEntry),
		failures:      make(map[string]*failureWindow),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SignUp registers the account and mails a verification token
func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (models.UserAccount, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return models.UserAccount{}, &errors.ErrValidation{Field: "email", Reason: "must not be empty"}
	}
	if len(password) < MinPasswordLength {
		return models.UserAccount{}, &errors.ErrWeakPassword{MinLength: MinPasswordLength}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.UserAccount{}, &errors.ErrProvider{Op: "hash password", Err: err}
	}

	now := time.Now().UTC()
	account := models.UserAccount{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.users.CreateUser(ctx, account); err != nil {
		return models.UserAccount{}, err
	}

	if err := p.sendVerification(ctx, account); err != nil {
		p.logger.WarnWithContext(ctx, "verification mail failed", "email", email, "error", err.Error())
	}

	p.audit.Record(logging.NewAuditEvent(logging.SignUp, "sign up", logging.StatusSuccess).WithUserID(account.ID))
	p.logger.InfoWithContext(ctx, "account created", "user_id", account.ID)
	return account, nil
}

// SignIn authenticates by password. Unverified accounts get a fresh
// verification mail via the gate and ErrEmailNotVerified here.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (Authenticated, error) {
	email = NormalizeEmail(email)

	if retryAfter, limited := p.checkFailures(email); limited {
		return Authenticated{}, &errors.ErrRateLimited{RetryAfter: retryAfter}
	}

	account, err := p.users.UserByEmail(ctx, email)
	if err != nil {
		p.recordFailure(email)
		p.audit.Record(logging.NewAuditEvent(logging.SignInFailure, "sign in", logging.StatusFailure).WithDetails(map[string]interface{}{"email": email}))
		return Authenticated{}, &errors.ErrInvalidCredentials{}
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		p.recordFailure(email)
		p.audit.Record(logging.NewAuditEvent(logging.SignInFailure, "sign in", logging.StatusFailure).WithUserID(account.ID))
		return Authenticated{}, &errors.ErrInvalidCredentials{}
	}

	p.clearFailures(email)

	token := uuid.New().String()
	session := sessionFor(account)

	p.mu.Lock()
	p.sessions[token] = tokenEntry{userID: account.ID, expiresAt: time.Now().Add(p.sessionTTL)}
	p.mu.Unlock()

	if !account.EmailVerified {
		// Announce the unverified session so the gate tears it down and
		// resends the verification mail; the caller sees only the error.
		p.notify(SessionNotice{Kind: NoticeUnverified, Token: token, Session: session})
		return Authenticated{}, &errors.ErrEmailNotVerified{Email: account.Email}
	}

	p.audit.Record(logging.NewAuditEvent(logging.SignInSuccess, "sign in", logging.StatusSuccess).WithUserID(account.ID))
	p.notify(SessionNotice{Kind: NoticeSignedIn, Token: token, Session: session})
	return Authenticated{Token: token, Session: session}, nil
}

// SignOut drops the session token. Unknown tokens succeed silently.
func (p *LocalProvider) SignOut(ctx context.Context, token string) error {
	p.mu.Lock()
	entry, ok := p.sessions[token]
	delete(p.sessions, token)
	p.mu.Unlock()

	if ok {
		p.audit.Record(logging.NewAuditEvent(logging.SignOut, "sign out", logging.StatusSuccess).WithUserID(entry.userID))
		p.notify(SessionNotice{Kind: NoticeSignedOut, Token: token})
	}
	return nil
}

// SendPasswordReset mails a reset token. A missing account is reported as
// success so the endpoint cannot be used to probe for registered emails.
func (p *LocalProvider) SendPasswordReset(ctx context.Context, email string) error {
	account, err := p.users.UserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil
	}

	token := uuid.New().String()
	p.mu.Lock()
	p.resetTokens[token] = tokenEntry{userID: account.ID, expiresAt: time.Now().Add(p.tokenTTL)}
	p.mu.Unlock()

	if err := p.mailer.SendPasswordReset(ctx, account.Email, token); err != nil {
		return &errors.ErrProvider{Op: "send password reset", Err: err}
	}
	p.audit.Record(logging.NewAuditEvent(logging.PasswordReset, "send reset mail", logging.StatusSuccess).WithUserID(account.ID))
	return nil
}

// ResendVerification mails a fresh verification token
func (p *LocalProvider) ResendVerification(ctx context.Context, email string) error {
	account, err := p.users.UserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if account.EmailVerified {
		return nil
	}
	return p.sendVerification(ctx, account)
}

func (p *LocalProvider) sendVerification(ctx context.Context, account models.UserAccount) error {
	token := uuid.New().String()
	p.mu.Lock()
	p.verifyTokens[token] = tokenEntry{userID: account.ID, expiresAt: time.Now().Add(p.tokenTTL)}
	p.mu.Unlock()

	if err := p.mailer.SendVerification(ctx, account.Email, token); err != nil {
		return &errors.ErrProvider{Op: "send verification", Err: err}
	}
	return nil
}

// VerifyEmail redeems a verification token
func (p *LocalProvider) VerifyEmail(ctx context.Context, token string) error {
	p.mu.Lock()
	entry, ok := p.verifyTokens[token]
	if ok {
		delete(p.verifyTokens, token)
	}
	p.mu.Unlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return &errors.ErrInvalidCredentials{}
	}

	account, err := p.users.UserByID(ctx, entry.userID)
	if err != nil {
		return err
	}
	account.EmailVerified = true
	account.UpdatedAt = time.Now().UTC()
	if err := p.users.UpdateUser(ctx, account); err != nil {
		return err
	}

	p.audit.Record(logging.NewAuditEvent(logging.EmailVerified, "verify email", logging.StatusSuccess).WithUserID(account.ID))
	p.logger.InfoWithContext(ctx, "email verified", "user_id", account.ID)
	return nil
}

// ResetPassword redeems a reset token and replaces the password
func (p *LocalProvider) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return &errors.ErrWeakPassword{MinLength: MinPasswordLength}
	}

	p.mu.Lock()
	entry, ok := p.resetTokens[token]
	if ok {
		delete(p.resetTokens, token)
	}
	p.mu.Unlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return &errors.ErrInvalidCredentials{}
	}

	account, err := p.users.UserByID(ctx, entry.userID)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return &errors.ErrProvider{Op: "hash password", Err: err}
	}
	account.PasswordHash = string(hash)
	account.UpdatedAt = time.Now().UTC()
	if err := p.users.UpdateUser(ctx, account); err != nil {
		return err
	}

	p.clearFailures(account.Email)
	p.revokeSessions(account.ID)
	return nil
}

// revokeSessions drops every live session of the user. A password
// reset invalidates stolen tokens too.
func (p *LocalProvider) revokeSessions(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for token, entry := range p.sessions {
		if entry.userID == userID {
			delete(p.sessions, token)
		}
	}
}

// UpdateProfile applies profile field changes to the session's account
func (p *LocalProvider) UpdateProfile(ctx context.Context, token string, update models.ProfileUpdate) (models.Session, error) {
	session, err := p.Resolve(ctx, token)
	if err != nil {
		return models.Session{}, err
	}

	account, err := p.users.UserByID(ctx, session.UserID)
	if err != nil {
		return models.Session{}, err
	}

	if update.DisplayName != nil {
		account.DisplayName = *update.DisplayName
	}
	account.UpdatedAt = time.Now().UTC()
	if err := p.users.UpdateUser(ctx, account); err != nil {
		return models.Session{}, err
	}
	return sessionFor(account), nil
}

// Resolve maps a session token to its current session
func (p *LocalProvider) Resolve(ctx context.Context, token string) (models.Session, error) {
	p.mu.Lock()
	entry, ok := p.sessions[token]
	if ok && time.Now().After(entry.expiresAt) {
		delete(p.sessions, token)
		ok = false
	}
	p.mu.Unlock()

	if !ok {
		return models.Session{}, &errors.ErrInvalidCredentials{}
	}

	account, err := p.users.UserByID(ctx, entry.userID)
	if err != nil {
		return models.Session{}, &errors.ErrInvalidCredentials{}
	}
	return sessionFor(account), nil
}

// Sessions subscribes to session notices
func (p *LocalProvider) Sessions() (<-chan SessionNotice, func()) {
	ch := make(chan SessionNotice, noticeBuffer)

	p.subMu.Lock()
	p.subscribers = append(p.subscribers, ch)
	p.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.subMu.Lock()
			defer p.subMu.Unlock()
			for i, sub := range p.subscribers {
				if sub == ch {
					p.subscribers[i] = p.subscribers[len(p.subscribers)-1]
					p.subscribers = p.subscribers[:len(p.subscribers)-1]
					close(ch)
					return
				}
			}
		})
	}
	return ch, cancel
}

// notify fans a notice out to subscribers without blocking. A subscriber
// that falls more than noticeBuffer behind loses notices.
func (p *LocalProvider) notify(notice SessionNotice) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- notice:
		default:
		}
	}
}

func (p *LocalProvider) checkFailures(email string) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	window, ok := p.failures[email]
	if !ok {
		return 0, false
	}
	if time.Since(window.started) >= p.failureWindow {
		delete(p.failures, email)
		return 0, false
	}
	if window.count < p.maxFailures {
		return 0, false
	}
	return p.failureWindow - time.Since(window.started), true
}

func (p *LocalProvider) recordFailure(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	window, ok := p.failures[email]
	if !ok || time.Since(window.started) >= p.failureWindow {
		p.failures[email] = &failureWindow{count: 1, started: time.Now()}
		return
	}
	window.count++
}

func (p *LocalProvider) clearFailures(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failures, email)
}

func sessionFor(account models.UserAccount) models.Session {
	return models.Session{
		UserID:        account.ID,
		Email:         account.Email,
		DisplayName:   account.DisplayName,
		EmailVerified: account.EmailVerified,
	}
}

var _ Provider = (*LocalProvider)(nil)
