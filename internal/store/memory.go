package store

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrSessionNotFound = errors.New("avatar session not found")
	ErrNotOwner        = errors.New("avatar session belongs to another client")
)

// AvatarSession is one live vendor streaming session opened through the relay.
type AvatarSession struct {
	Provider string `json:"provider"`
	// ID addresses the session in relay calls: the stream id for D-ID,
	// the session id for HeyGen.
	ID string `json:"id"`
	// VendorSession is the extra token D-ID requires on every stream call.
	VendorSession string    `json:"-"`
	ClientID      string    `json:"-"`
	PersonaID     string    `json:"personaId,omitempty"`
	Talks         int       `json:"talks"`
	CreatedAt     time.Time `json:"createdAt"`
	LastSeen      time.Time `json:"lastSeen"`
}

type sessionKey struct {
	provider string
	id       string
}

// MemoryStore tracks live avatar sessions so that only the client that opened
// a session can drive it, and idle ones can be closed.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[sessionKey]*AvatarSession
	idleTTL  time.Duration
	now      func() time.Time
}

func NewMemoryStore(idleTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[sessionKey]*AvatarSession),
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Register records a freshly created session. Re-registering an id replaces it.
func (m *MemoryStore) Register(s AvatarSession) AvatarSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	s.CreatedAt = now
	s.LastSeen = now
	m.sessions[sessionKey{s.Provider, s.ID}] = &s
	return s
}

// Touch checks ownership and refreshes the idle timer.
func (m *MemoryStore) Touch(provider, id, clientID string) (AvatarSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.ownedLocked(provider, id, clientID)
	if err != nil {
		return AvatarSession{}, err
	}
	s.LastSeen = m.now()
	return *s, nil
}

// RecordTalk bumps the talk counter of an owned session.
func (m *MemoryStore) RecordTalk(provider, id, clientID string) (AvatarSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.ownedLocked(provider, id, clientID)
	if err != nil {
		return AvatarSession{}, err
	}
	s.Talks++
	s.LastSeen = m.now()
	return *s, nil
}

// Remove drops an owned session and returns it.
func (m *MemoryStore) Remove(provider, id, clientID string) (AvatarSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.ownedLocked(provider, id, clientID)
	if err != nil {
		return AvatarSession{}, err
	}
	delete(m.sessions, sessionKey{provider, id})
	return *s, nil
}

// ListByClient returns the client's sessions, oldest first.
func (m *MemoryStore) ListByClient(clientID string) []AvatarSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AvatarSession, 0)
	for _, s := range m.sessions {
		if s.ClientID == clientID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// TakeExpired removes and returns every session idle for longer than the TTL.
func (m *MemoryStore) TakeExpired() []AvatarSession {
	if m.idleTTL <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var out []AvatarSession
	for k, s := range m.sessions {
		if now.Sub(s.LastSeen) > m.idleTTL {
			out = append(out, *s)
			delete(m.sessions, k)
		}
	}
	return out
}

// Len is the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) ownedLocked(provider, id, clientID string) (*AvatarSession, error) {
	s, ok := m.sessions[sessionKey{provider, id}]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.ClientID != clientID {
		return nil, ErrNotOwner
	}
	return s, nil
}
