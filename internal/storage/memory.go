package storage

import (
	"context"
	"sync"

	"github.com/xaenox/schedule-bot/internal/models"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*models.Session),
	}
}

func (s *MemoryStorage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if session, exists := s.sessions[SessionKey(sessionID)]; exists {
		return session.Clone(), nil
	}
	return nil, ErrSessionNotFound
}

func (s *MemoryStorage) SaveSession(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[SessionKey(session.SessionID)] = session.Clone()
	return nil
}

func (s *MemoryStorage) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := SessionKey(sessionID)
	if _, exists := s.sessions[key]; !exists {
		return false, nil
	}
	delete(s.sessions, key)
	return true, nil
}

func (s *MemoryStorage) ListSessions(ctx context.Context) ([]models.SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]models.SessionInfo, 0, len(s.sessions))
	for _, session := range s.sessions {
		infos = append(infos, session.Info())
	}
	sortInfos(infos)
	return infos, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
