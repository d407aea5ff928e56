package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/iho/goexpense/internal/domain"
)

// Session binds one signed-in identity to its ledger store and identity
// provider.
type Session struct {
	Identity *domain.Identity
	Store    *LedgerStore

	provider IdentityProvider
	ready    chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc
	err      error
}

// SessionManager keeps one Session per signed-in identity.
type SessionManager struct {
	newStore    func() *LedgerStore
	newProvider func() IdentityProvider
	logger      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates a SessionManager. newStore and newProvider are
// called once per opened session.
func NewSessionManager(
	newStore func() *LedgerStore,
	newProvider func() IdentityProvider,
	logger zerolog.Logger,
) *SessionManager {
	return &SessionManager{
		newStore:    newStore,
		newProvider: newProvider,
		logger:      logger.With().Str("component", "session_manager").Logger(),
		sessions:    make(map[string]*Session),
	}
}

// Open returns the identity's session, creating and loading it on first use.
// A session whose initial load fails is not kept.
func (m *SessionManager) Open(ctx context.Context, identity *domain.Identity) (*Session, error) {
	if identity == nil {
		return nil, domain.ErrNoIdentity
	}

	m.mu.Lock()
	sess, ok := m.sessions[identity.ID]
	if !ok {
		sess = &Session{
			Identity: identity,
			Store:    m.newStore(),
			provider: m.newProvider(),
			ready:    make(chan struct{}),
			done:     make(chan struct{}),
		}
		m.sessions[identity.ID] = sess
	}
	m.mu.Unlock()

	if !ok {
		m.start(ctx, sess)
	}

	select {
	case <-sess.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if sess.err != nil {
		return nil, sess.err
	}
	return sess, nil
}

func (m *SessionManager) start(ctx context.Context, sess *Session) {
	defer close(sess.ready)

	if err := sess.Store.HandleIdentity(ctx, sess.Identity); err != nil {
		m.logger.Error().Err(err).Str("identity", sess.Identity.ID).Msg("failed to open session")
		sess.err = err
		close(sess.done)

		m.mu.Lock()
		if m.sessions[sess.Identity.ID] == sess {
			delete(m.sessions, sess.Identity.ID)
		}
		m.mu.Unlock()
		return
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel

	go func() {
		defer close(sess.done)
		if err := sess.Store.Watch(watchCtx, sess.provider); err != nil && watchCtx.Err() == nil {
			m.logger.Warn().Err(err).Str("identity", sess.Identity.ID).Msg("identity watch stopped")
		}
	}()

	m.logger.Info().Str("identity", sess.Identity.ID).Msg("session opened")
}

// Get returns the open session for an identity ID.
func (m *SessionManager) Get(identityID string) (*Session, bool) {
	m.mu.Lock()
	sess, ok := m.sessions[identityID]
	m.mu.Unlock()

	if !ok {
		return nil, false
	}

	select {
	case <-sess.ready:
	default:
		return nil, false
	}
	if sess.err != nil {
		return nil, false
	}
	return sess, true
}

// Close signs the identity out and clears its store. Closing an identity
// without a session is a no-op.
func (m *SessionManager) Close(ctx context.Context, identityID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[identityID]
	if ok {
		delete(m.sessions, identityID)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}

	select {
	case <-sess.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if sess.err != nil {
		return nil
	}

	err := sess.provider.SignOut(ctx)
	sess.cancel()
	<-sess.done
	sess.Store.Reset(nil)

	m.logger.Info().Str("identity", identityID).Msg("session closed")
	return err
}

// CloseAll closes every open session.
func (m *SessionManager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := m.Close(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Len returns the number of sessions being tracked.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
