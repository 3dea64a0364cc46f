package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ldelange/invitation/internal/models"
)

// DefaultTTL is how long an idle session survives before it is swept.
const DefaultTTL = 2 * time.Hour

// Manager owns the live sessions. Each browser session is single-threaded
// on its own event loop, but two tabs can share a session ID, so every
// access goes through the manager's lock.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// NewManager creates a session manager with the given idle TTL.
// A ttl of zero means DefaultTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a fresh session for the given invite code. A nil guest is
// the anonymous path. Every session starts at the door screen with zero
// coins; there is no carry-over from previous visits.
func (m *Manager) Create(code string, guest *models.Guest) *Session {
	s := &Session{
		ID:         uuid.New().String(),
		Code:       code,
		Guest:      guest,
		Screen:     ScreenDoor,
		GuestCount: 1,
	}
	if guest != nil {
		s.GuestCount = guest.MaxSeats()
		s.Form.Name = guest.Name
		s.Form.Email = guest.Email
		s.Form.Dietary = guest.DietaryDefault
		s.Form.Message = guest.MessageDefault
	}
	if s.Form.Dietary == "" {
		s.Form.Dietary = models.DietaryOptions[0]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	m.sessions[s.ID] = &entry{session: s, lastSeen: m.now()}
	return s
}

// Get returns a value copy of the session for the given ID, or false if it
// does not exist or has idled out. The live struct never leaves the lock;
// readers get a snapshot and all mutation goes through Update.
func (m *Manager) Get(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	if m.now().Sub(e.lastSeen) > m.ttl {
		delete(m.sessions, id)
		return Session{}, false
	}
	e.lastSeen = m.now()
	return e.session.view(), true
}

// Update runs fn against the session under the manager lock, serializing
// two tabs mutating the same session.
func (m *Manager) Update(id string, fn func(*Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok || m.now().Sub(e.lastSeen) > m.ttl {
		delete(m.sessions, id)
		return ErrSessionNotFound
	}
	e.lastSeen = m.now()
	return fn(e.session)
}

// Remove drops a session, used once the flow reaches a terminal screen.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) sweepLocked() {
	cutoff := m.now().Add(-m.ttl)
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
