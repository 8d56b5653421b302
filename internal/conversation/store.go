// Package conversation keeps the per-session message history and derives
// context and facts from it.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/schedule-bot/internal/keylock"
	"github.com/xaenox/schedule-bot/internal/models"
	"github.com/xaenox/schedule-bot/internal/storage"
	"go.uber.org/zap"
)

const (
	DefaultContextMessages = 10
	DefaultSearchLimit     = 5
)

// Store serialises read-modify-write cycles per session inside the process.
// Writers in other processes sharing the same storage are not coordinated.
type Store struct {
	storage storage.Storage
	logger  *zap.Logger
	now     func() time.Time

	locks *keylock.Locks
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(st storage.Storage, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		storage: st,
		logger:  logger,
		now:     time.Now,
		locks:   keylock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) lock(sessionID string) func() {
	return s.locks.Lock(sessionID)
}

// load returns the stored session or a fresh, unsaved one with zero
// timestamps.
func (s *Store) load(ctx context.Context, sessionID string) (*models.Session, bool, error) {
	session, err := s.storage.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return &models.Session{SessionID: sessionID, Messages: []models.Message{}}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load session: %w", err)
	}
	return session, true, nil
}

// CreateSession returns the existing session or persists an empty one.
func (s *Store) CreateSession(ctx context.Context, sessionID string) (*models.Session, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	session, exists, err := s.load(ctx, sessionID)
	if err != nil || exists {
		return session, err
	}
	session.CreatedAt = s.now()
	session.UpdatedAt = session.CreatedAt
	if err := s.storage.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("Created conversation session", zap.String("session_id", sessionID))
	return session, nil
}

// AppendMessage adds a message to the session, creating the session first
// when it does not exist yet.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, role models.Role, content, messageType string, metadata map[string]string) (models.Message, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	session, _, err := s.load(ctx, sessionID)
	if err != nil {
		return models.Message{}, err
	}

	if messageType == "" {
		messageType = models.TypeText
	}
	msg := models.Message{
		Timestamp:   s.now(),
		Role:        role,
		Content:     content,
		MessageType: messageType,
	}
	if len(metadata) > 0 {
		msg.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			msg.Metadata[k] = v
		}
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = msg.Timestamp
	}
	session.Messages = append(session.Messages, msg)
	session.UpdatedAt = msg.Timestamp
	if err := s.storage.SaveSession(ctx, session); err != nil {
		return models.Message{}, fmt.Errorf("save session: %w", err)
	}

	s.logger.Debug("Added message",
		zap.String("session_id", sessionID),
		zap.String("role", string(role)),
		zap.String("message_type", messageType))
	return msg, nil
}

// History returns the last limit messages in order, or all of them when
// limit <= 0. An unknown session has an empty history.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	session, _, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return tail(session.Messages, limit), nil
}

// RecentContext renders the last count messages, DefaultContextMessages when
// count <= 0.
func (s *Store) RecentContext(ctx context.Context, sessionID string, count int) (string, error) {
	if count <= 0 {
		count = DefaultContextMessages
	}
	messages, err := s.History(ctx, sessionID, count)
	if err != nil {
		return "", err
	}
	return RenderContext(messages), nil
}

func (s *Store) ExtractFacts(ctx context.Context, sessionID string) (models.ExtractedFacts, error) {
	messages, err := s.History(ctx, sessionID, 0)
	if err != nil {
		return models.ExtractedFacts{}, err
	}
	return ExtractFacts(messages), nil
}

func (s *Store) Search(ctx context.Context, sessionID, query string, limit int) ([]models.SearchResult, error) {
	messages, err := s.History(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	return Search(messages, query, limit), nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	deleted, err := s.storage.DeleteSession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	if deleted {
		s.logger.Info("Deleted conversation session", zap.String("session_id", sessionID))
	}
	return deleted, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]models.SessionInfo, error) {
	infos, err := s.storage.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return infos, nil
}
