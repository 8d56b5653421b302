package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/xaenox/schedule-bot/internal/models"
)

const (
	sessionKeyPrefix = "conv:session:"
	sessionIndexKey  = "conv:sessions"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStorage stores each session record as a JSON string and keeps the
// index in a single hash keyed by session id. A zero TTL keeps records
// forever.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStorage(config RedisConfig) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return NewRedisStorageWithClient(client, config.TTL), nil
}

func NewRedisStorageWithClient(client *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, ttl: ttl}
}

func (s *RedisStorage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+SessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("error decoding session: %w", err)
	}
	return &session, nil
}

func (s *RedisStorage) SaveSession(ctx context.Context, session *models.Session) error {
	record, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("error encoding session: %w", err)
	}
	info, err := json.Marshal(session.Info())
	if err != nil {
		return fmt.Errorf("error encoding session info: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKeyPrefix+SessionKey(session.SessionID), record, s.ttl)
		pipe.HSet(ctx, sessionIndexKey, session.SessionID, info)
		return nil
	})
	if err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}

func (s *RedisStorage) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, sessionKeyPrefix+SessionKey(sessionID))
		pipe.HDel(ctx, sessionIndexKey, sessionID)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("error deleting session: %w", err)
	}
	return removed.Val() > 0, nil
}

// ListSessions reads the index hash. With a TTL set, entries whose record
// has expired are pruned from the index.
func (s *RedisStorage) ListSessions(ctx context.Context) ([]models.SessionInfo, error) {
	entries, err := s.client.HGetAll(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("error listing sessions: %w", err)
	}

	infos := make([]models.SessionInfo, 0, len(entries))
	for id, raw := range entries {
		if s.ttl > 0 {
			exists, err := s.client.Exists(ctx, sessionKeyPrefix+SessionKey(id)).Result()
			if err != nil {
				return nil, fmt.Errorf("error checking session: %w", err)
			}
			if exists == 0 {
				s.client.HDel(ctx, sessionIndexKey, id)
				continue
			}
		}

		var info models.SessionInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			return nil, fmt.Errorf("error decoding session info: %w", err)
		}
		info.SessionID = id
		infos = append(infos, info)
	}
	sortInfos(infos)
	return infos, nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
