package identity

import (
	"context"
	"sync"

	"github.com/vaultguard/vaultguard/internal/logging"
	"github.com/vaultguard/vaultguard/internal/models"
)

// Gate is the session state machine. It starts in StateLoading, consumes
// the provider's session notices on one goroutine and settles into
// StateAuthenticated or StateUnauthenticated. An unverified notice drives
// Unauthenticated plus exactly one provider sign-out and one verification
// resend, so a half-signed-in unverified user never holds a live session.
type Gate struct {
	provider Provider
	logger   *logging.Logger

	notices <-chan SessionNotice
	detach  func()
	done    chan struct{}

	mu      sync.RWMutex
	state   models.SessionState
	session models.Session

	events    chan models.Event
	closeOnce sync.Once
}

// NewGate attaches a gate to the provider and starts consuming notices
func NewGate(provider Provider, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.NewLogger()
	}

	notices, detach := provider.Sessions()
	g := &Gate{
		provider: provider,
		logger:   logger,
		notices:  notices,
		detach:   detach,
		done:     make(chan struct{}),
		state:    models.StateLoading,
		events:   make(chan models.Event, 16),
	}
	go g.run()
	return g
}

// State returns the current gate state and session.
func (g *Gate) State() (models.SessionState, models.Session) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state, g.session
}

// Events exposes the consumer-facing event stream. The channel closes when
// the gate closes.
func (g *Gate) Events() <-chan models.Event {
	return g.events
}

// Close detaches from the provider and stops the consuming goroutine.
func (g *Gate) Close() {
	g.closeOnce.Do(func() {
		g.detach()
		close(g.done)
	})
}

func (g *Gate) run() {
	defer close(g.events)

	for {
		select {
		case notice, ok := <-g.notices:
			if !ok {
				return
			}
			g.handle(notice)
		case <-g.done:
			return
		}
	}
}

func (g *Gate) handle(notice SessionNotice) {
	switch notice.Kind {
	case NoticeSignedIn:
		g.transition(models.StateAuthenticated, notice.Session)

	case NoticeSignedOut:
		g.mu.RLock()
		current := g.session
		g.mu.RUnlock()
		// A sign-out for a stale token of another session is ignored.
		if current.UserID != "" && notice.Session.UserID != "" && current.UserID != notice.Session.UserID {
			return
		}
		g.transition(models.StateUnauthenticated, models.Session{})

	case NoticeUnverified:
		ctx := context.Background()
		if err := g.provider.SignOut(ctx, notice.Token); err != nil {
			g.logger.Warn("sign-out of unverified session failed", "error", err.Error())
		}
		if notice.Session.Email != "" {
			if err := g.provider.ResendVerification(ctx, notice.Session.Email); err != nil {
				g.logger.Warn("verification resend failed", "email", notice.Session.Email, "error", err.Error())
			}
		}
		g.transition(models.StateUnauthenticated, models.Session{})
	}
}

func (g *Gate) transition(state models.SessionState, session models.Session) {
	g.mu.Lock()
	g.state = state
	g.session = session
	g.mu.Unlock()

	event := models.NewSessionEvent(state, session)
	select {
	case g.events <- event:
	default:
		g.logger.Warn("session event dropped", "state", string(state))
	}
}
