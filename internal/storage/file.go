package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xaenox/schedule-bot/internal/models"
	"go.uber.org/zap"
)

const (
	indexFileName = "sessions.json"
	sessionsDir   = "sessions"
)

// FileStorage keeps each session in sessions/<key>.json under root and an
// index of all sessions in sessions.json.
type FileStorage struct {
	root   string
	mu     sync.Mutex
	logger *zap.Logger
}

func NewFileStorage(root string, logger *zap.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(filepath.Join(root, sessionsDir), 0o755); err != nil {
		return nil, fmt.Errorf("error creating storage directory: %w", err)
	}
	return &FileStorage{root: root, logger: logger}, nil
}

func (s *FileStorage) sessionPath(sessionID string) string {
	return filepath.Join(s.root, sessionsDir, SessionKey(sessionID)+".json")
}

func (s *FileStorage) indexPath() string {
	return filepath.Join(s.root, indexFileName)
}

func (s *FileStorage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	data, err := os.ReadFile(s.sessionPath(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("error decoding session: %w", err)
	}
	return &session, nil
}

func (s *FileStorage) SaveSession(ctx context.Context, session *models.Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding session: %w", err)
	}
	if err := writeFileAtomic(s.sessionPath(session.SessionID), data); err != nil {
		return fmt.Errorf("error writing session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return err
	}
	index[session.SessionID] = session.Info()
	return s.saveIndex(index)
}

func (s *FileStorage) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	err := os.Remove(s.sessionPath(sessionID))
	deleted := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("error deleting session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return deleted, err
	}
	if _, ok := index[sessionID]; ok {
		delete(index, sessionID)
		deleted = true
		if err := s.saveIndex(index); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (s *FileStorage) ListSessions(ctx context.Context) ([]models.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	infos := make([]models.SessionInfo, 0, len(index))
	for id, info := range index {
		info.SessionID = id
		infos = append(infos, info)
	}
	sortInfos(infos)
	return infos, nil
}

func (s *FileStorage) Close() error {
	return nil
}

// loadIndex must be called with s.mu held. A corrupt index is logged and
// treated as empty so sessions stay writable.
func (s *FileStorage) loadIndex() (map[string]models.SessionInfo, error) {
	index := make(map[string]models.SessionInfo)

	data, err := os.ReadFile(s.indexPath())
	if errors.Is(err, os.ErrNotExist) {
		return index, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading sessions index: %w", err)
	}
	if err := json.Unmarshal(data, &index); err != nil {
		s.logger.Error("Failed to decode sessions index, starting empty",
			zap.Error(err),
			zap.String("path", s.indexPath()))
		return make(map[string]models.SessionInfo), nil
	}
	return index, nil
}

func (s *FileStorage) saveIndex(index map[string]models.SessionInfo) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding sessions index: %w", err)
	}
	if err := writeFileAtomic(s.indexPath(), data); err != nil {
		return fmt.Errorf("error writing sessions index: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
