// Package session tracks the live sessions of a remote server.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/livefir/livetree"
)

// ErrExists is returned when a session id is already connected.
var ErrExists = errors.New("session already connected")

// Session is one connected client and the runtime serving it.
type Session struct {
	ID         string
	Runtime    *livetree.Runtime
	CreatedAt  time.Time
	LastActive time.Time

	// Close ends the connection; the serving goroutine removes the session.
	Close func()
}

// Manager handles session lifecycle
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	ttl      time.Duration
}

// NewManager creates a manager. Sessions idle for longer than ttl are
// reported by Expired; zero disables expiry.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// NewID creates a random session id.
func NewID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "lt-" + hex.EncodeToString(b), nil
}

// Add registers a session.
func (m *Manager) Add(s *Session) error {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return ErrExists
	}
	s.CreatedAt, s.LastActive = now, now
	m.sessions[s.ID] = s
	return nil
}

// Get retrieves a session by ID
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Touch records activity on a session.
func (m *Manager) Touch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastActive = time.Now()
	}
}

// Remove drops a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns the sessions ordered by creation time.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Expired returns the sessions idle since before now minus the ttl.
func (m *Manager) Expired(now time.Time) []*Session {
	if m.ttl <= 0 {
		return nil
	}
	cutoff := now.Add(-m.ttl)

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.LastActive.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}
