package seating

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ecetin/wedsys/internal/clock"
)

// Manager owns the live sessions, keyed by the opaque token issued at
// login. Each session carries its own event id, so nothing about the
// current event lives in package state.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	store  AssignmentStore
	pub    Publisher
	clock  clock.Clock
	logger *slog.Logger
}

func NewManager(store AssignmentStore, pub Publisher, clk clock.Clock, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		store:    store,
		pub:      pub,
		clock:    clk,
		logger:   logger,
	}
}

// Open starts a session for an event and loads its assignment map. The
// returned session is registered under a fresh token.
func (m *Manager) Open(ctx context.Context, eventID string) *Session {
	token := uuid.NewString()
	sess := newSession(eventID, token, m.store, m.pub, m.clock, m.logger)
	sess.Load(ctx)

	m.mu.Lock()
	m.sessions[token] = sess
	m.mu.Unlock()

	return sess
}

func (m *Manager) Get(token string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[token]
	return sess, ok
}

// Close drops a session. Unsaved edits are discarded, same as closing
// the browser tab.
func (m *Manager) Close(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)
}
