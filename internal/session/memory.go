package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"citabot/internal/models"
)

type memoryEntry struct {
	session   models.ConversationSession
	expiresAt time.Time
}

// MemoryStore is an in-process session store. Used as the failover target
// when Redis is down and as the sole backend in small deployments.
type MemoryStore struct {
	entries map[string]memoryEntry
	mu      sync.RWMutex
	logger  *zerolog.Logger
	now     func() time.Time
}

func NewMemoryStore(logger *zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		logger:  logger,
		now:     time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, s *models.ConversationSession, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[models.SessionKey(s.CustomerID, s.FacilityID)] = memoryEntry{
		session:   *s,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (*models.ConversationSession, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	if !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, models.ErrSessionExpired
	}
	s := entry.session
	upgrade(&s, m.logger)
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Cleanup removes expired entries and returns how many were dropped.
func (m *MemoryStore) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	now := m.now()
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}
