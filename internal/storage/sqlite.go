package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xaenox/schedule-bot/internal/models"
)

// SQLiteStorage mirrors PostgresStorage on a local SQLite database.
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dsn string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return storage, nil
}

func (s *SQLiteStorage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversation_sessions (
			session_key TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			record TEXT NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_sessions_updated_at ON conversation_sessions(updated_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var record string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM conversation_sessions WHERE session_key = ?`,
		SessionKey(sessionID),
	).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(record), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *SQLiteStorage) SaveSession(ctx context.Context, session *models.Session) error {
	record, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_sessions (session_key, session_id, record, message_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET
			record = excluded.record,
			message_count = excluded.message_count,
			updated_at = excluded.updated_at`,
		SessionKey(session.SessionID),
		session.SessionID,
		string(record),
		len(session.Messages),
		session.CreatedAt.UTC(),
		session.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_sessions WHERE session_key = ?`,
		SessionKey(sessionID),
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

func (s *SQLiteStorage) ListSessions(ctx context.Context) ([]models.SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, created_at, updated_at, message_count FROM conversation_sessions`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	infos := []models.SessionInfo{}
	for rows.Next() {
		var info models.SessionInfo
		if err := rows.Scan(&info.SessionID, &info.CreatedAt, &info.UpdatedAt, &info.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortInfos(infos)
	return infos, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
