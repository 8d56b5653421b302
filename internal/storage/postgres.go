package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/xaenox/schedule-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresStorage keeps one JSONB record per session. The index columns
// are kept next to the record so listing never decodes messages.
type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db}

	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM conversation_sessions WHERE session_key = $1`,
		SessionKey(sessionID),
	).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(record, &session); err != nil {
		return nil, fmt.Errorf("error decoding session: %w", err)
	}
	return &session, nil
}

func (s *PostgresStorage) SaveSession(ctx context.Context, session *models.Session) error {
	record, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("error encoding session: %w", err)
	}

	query := `
		INSERT INTO conversation_sessions (session_key, session_id, record, message_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_key) DO UPDATE
		SET record = EXCLUDED.record,
			message_count = EXCLUDED.message_count,
			updated_at = EXCLUDED.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		SessionKey(session.SessionID),
		session.SessionID,
		record,
		len(session.Messages),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_sessions WHERE session_key = $1`,
		SessionKey(sessionID),
	)
	if err != nil {
		return false, fmt.Errorf("error deleting session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting affected rows: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStorage) ListSessions(ctx context.Context) ([]models.SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, created_at, updated_at, message_count
		FROM conversation_sessions
		ORDER BY updated_at DESC, session_id`)
	if err != nil {
		return nil, fmt.Errorf("error listing sessions: %w", err)
	}
	defer rows.Close()

	var infos []models.SessionInfo
	for rows.Next() {
		var info models.SessionInfo
		if err := rows.Scan(&info.SessionID, &info.CreatedAt, &info.UpdatedAt, &info.MessageCount); err != nil {
			return nil, fmt.Errorf("error scanning session: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return infos, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
