package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(ttl time.Duration) (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMemoryStore(ttl)
	m.now = clock.Now
	return m, clock
}

func TestRegisterAndOwnership(t *testing.T) {
	m, _ := newTestStore(time.Minute)
	m.Register(AvatarSession{Provider: "heygen", ID: "s1", ClientID: "alice"})

	_, err := m.Touch("heygen", "s1", "alice")
	assert.NoError(t, err)

	_, err = m.Touch("heygen", "s1", "bob")
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = m.Touch("heygen", "missing", "alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// same id under another provider is a different session
	_, err = m.Touch("d-id", "s1", "alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRecordTalkAndRemove(t *testing.T) {
	m, _ := newTestStore(time.Minute)
	m.Register(AvatarSession{Provider: "d-id", ID: "s1", VendorSession: "vs", ClientID: "alice"})

	s, err := m.RecordTalk("d-id", "s1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Talks)
	s, err = m.RecordTalk("d-id", "s1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Talks)

	_, err = m.Remove("d-id", "s1", "bob")
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Equal(t, 1, m.Len())

	removed, err := m.Remove("d-id", "s1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "vs", removed.VendorSession)
	assert.Equal(t, 0, m.Len())
}

func TestListByClient(t *testing.T) {
	m, clock := newTestStore(time.Minute)
	m.Register(AvatarSession{Provider: "heygen", ID: "a", ClientID: "alice"})
	clock.Advance(time.Second)
	m.Register(AvatarSession{Provider: "d-id", ID: "b", ClientID: "alice"})
	m.Register(AvatarSession{Provider: "heygen", ID: "c", ClientID: "bob"})

	list := m.ListByClient("alice")
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Empty(t, m.ListByClient("carol"))
}

func TestTakeExpired(t *testing.T) {
	m, clock := newTestStore(time.Minute)
	m.Register(AvatarSession{Provider: "heygen", ID: "old", ClientID: "alice"})
	clock.Advance(45 * time.Second)
	m.Register(AvatarSession{Provider: "heygen", ID: "fresh", ClientID: "alice"})
	clock.Advance(30 * time.Second)

	expired := m.TakeExpired()
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].ID)
	assert.Equal(t, 1, m.Len())

	// touching keeps a session alive
	clock.Advance(20 * time.Second)
	_, err := m.Touch("heygen", "fresh", "alice")
	require.NoError(t, err)
	clock.Advance(50 * time.Second)
	assert.Empty(t, m.TakeExpired())
}

func TestTakeExpiredDisabled(t *testing.T) {
	m, clock := newTestStore(0)
	m.Register(AvatarSession{Provider: "heygen", ID: "s", ClientID: "alice"})
	clock.Advance(24 * time.Hour)
	assert.Empty(t, m.TakeExpired())
}
