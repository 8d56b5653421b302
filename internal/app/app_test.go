package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/schedule-bot/internal/agent"
	"github.com/xaenox/schedule-bot/internal/classifier"
	"github.com/xaenox/schedule-bot/internal/storage"
	"github.com/xaenox/schedule-bot/pkg/config"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Storage.Driver = "memory"
	return cfg
}

func TestNewStorageDrivers(t *testing.T) {
	logger := zap.NewNop()

	st, err := NewStorage(config.StorageConfig{Driver: "memory"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStorage{}, st)

	st, err = NewStorage(config.StorageConfig{Driver: "file", Path: t.TempDir()}, logger)
	require.NoError(t, err)
	assert.IsType(t, &storage.FileStorage{}, st)

	st, err = NewStorage(config.StorageConfig{Driver: "sqlite", Path: t.TempDir()}, logger)
	require.NoError(t, err)
	assert.IsType(t, &storage.SQLiteStorage{}, st)
	require.NoError(t, st.Close())

	_, err = NewStorage(config.StorageConfig{Driver: "cassandra"}, logger)
	assert.Error(t, err)
}

func TestNewClassifier(t *testing.T) {
	assert.IsType(t, &classifier.SimpleClassifier{}, NewClassifier(config.OpenAIConfig{}, zap.NewNop()))
	assert.IsType(t, &classifier.GPTClassifier{}, NewClassifier(config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-3.5-turbo"}, zap.NewNop()))
}

func TestNewWiresOrchestrator(t *testing.T) {
	a, err := New(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	res := a.Orchestrator.HandleTurn(context.Background(), "s1", "ciao")
	assert.Equal(t, agent.OutcomeChat, res.Outcome)

	infos, err := a.Store.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestNewRejectsBadTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.Timezone = "Mars/Olympus"
	_, err := New(cfg, zap.NewNop())
	assert.Error(t, err)
}
