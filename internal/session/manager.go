package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/guesser/internal/game"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// DefaultID is used for callers that do not supply a session id.
const DefaultID = "default"

var ErrNotFound = errors.New("session not found")

// Factory builds the game for a newly created session.
type Factory func(id string) *game.Game

type Session struct {
	ID             string     `json:"session_id"`
	Status         Status     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	Game           *game.Game `json:"-"`
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	factory           Factory
	inactivityTimeout time.Duration
	onExpire          func(*Session)
	onRelease         func(*Session)
}

func NewManager(inactivityTimeout time.Duration, factory Factory) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		factory:           factory,
		inactivityTimeout: inactivityTimeout,
	}
}

// ResolveID maps a caller-supplied id onto the id used for storage.
func ResolveID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultID
	}
	return id
}

// NewID returns a fresh random session id.
func NewID() string { return uuid.NewString() }

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// SetReleaseHook registers a callback run whenever a session leaves the
// store, whether ended explicitly or expired.
func (m *Manager) SetReleaseHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRelease = hook
}

// GetOrCreate returns the session for id, creating it when absent. created
// reports whether a new session was made.
func (m *Manager) GetOrCreate(id string) (s *Session, created bool) {
	id = ResolveID(id)
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		existing.LastActivityAt = now
		return clone(existing), false
	}
	s = &Session{
		ID:             id,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
		Game:           m.factory(id),
	}
	m.sessions[id] = s
	return clone(s), true
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[ResolveID(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *Manager) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[ResolveID(id)]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// End removes the session and returns its final state.
func (m *Manager) End(id string) (*Session, error) {
	id = ResolveID(id)
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	delete(m.sessions, id)
	s.Status = StatusEnded
	s.LastActivityAt = time.Now().UTC()
	ended := clone(s)
	release := m.onRelease
	m.mu.Unlock()

	if release != nil {
		release(ended)
	}
	return ended, nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		// Clients without a session id all share the default game; it lives
		// until ended explicitly.
		if id == DefaultID || now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		delete(m.sessions, id)
		s.Status = StatusEnded
		s.LastActivityAt = now
		expired = append(expired, clone(s))
	}
	hook := m.onExpire
	release := m.onRelease
	m.mu.Unlock()

	for _, s := range expired {
		if hook != nil {
			hook(s)
		}
		if release != nil {
			release(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
