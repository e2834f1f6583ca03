package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/domain"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/repository"
)

// MemorySessionStore is the in-process fallback used when no REDIS_ADDR is
// configured. Expired sessions are dropped lazily on read.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
}

type memorySession struct {
	session   domain.CallSession
	expiresAt time.Time
}

var _ repository.SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]memorySession)}
}

func (s *MemorySessionStore) SaveSession(ctx context.Context, session domain.CallSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = memorySession{session: session, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemorySessionStore) GetSession(ctx context.Context, id string) (*domain.CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.sessions, id)
		return nil, nil
	}
	session := entry.session
	return &session, nil
}

func (s *MemorySessionStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
