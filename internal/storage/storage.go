package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"

	"github.com/xaenox/schedule-bot/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// Storage durably holds one record per conversation session plus an index
// used for listing. Records are read and written whole.
type Storage interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
	ListSessions(ctx context.Context) ([]models.SessionInfo, error)
	Close() error
}

// SessionKey derives the storage key of a session id. Hashing keeps unsafe
// characters out of file names and database keys.
func SessionKey(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])
}

// sortInfos orders sessions most recently updated first.
func sortInfos(infos []models.SessionInfo) {
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].UpdatedAt.Equal(infos[j].UpdatedAt) {
			return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
		}
		return infos[i].SessionID < infos[j].SessionID
	})
}
