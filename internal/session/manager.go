package session

import (
	"context"
	"sync"

	"github.com/brokerline/acpd/internal/acperr"
	"github.com/brokerline/acpd/internal/permission"
	"github.com/brokerline/acpd/internal/tools"
	"github.com/brokerline/acpd/internal/wire"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager is the concurrent session store (spec §4.7): atomic
// create-or-fail, non-blocking independent lookups, idempotent removal.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	registry *tools.Registry
	logger   *zap.Logger
}

func NewManager(registry *tools.Registry, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		registry: registry,
		logger:   logger,
	}
}

// Create constructs and registers a new session under id (a fresh uuid
// when id is empty), or fails if id is already taken.
func (m *Manager) Create(
	id string,
	cfg Config,
	rules permission.RuleChecker,
	requestPermission func(ctx context.Context, req permission.Request) (permission.Outcome, error),
	emit func(sessionID string, update wire.Update),
) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[id]; exists {
		return nil, acperr.New(acperr.KindSessionAlreadyExists, "session already exists: "+id)
	}

	s := New(id, cfg, m.registry, rules, requestPermission, func(u wire.Update) { emit(id, u) }, m.logger)
	m.sessions[id] = s
	return s, nil
}

// Get looks up a session by id; lookups never contend across distinct keys.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove cleans up and unregisters a session; idempotent.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		s.Cleanup()
	}
}

// Clear cleans up every session (used at process shutdown).
func (m *Manager) Clear() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Cleanup()
	}
}
