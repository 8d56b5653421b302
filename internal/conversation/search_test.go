package conversation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/schedule-bot/internal/models"
)

func TestRelevance(t *testing.T) {
	assert.Equal(t, 1.0, Relevance("Vorrei una Consulenza fiscale", "consulenza fiscale"))
	assert.Equal(t, 0.5, Relevance("Vorrei una consulenza", "consulenza fiscale"))
	assert.Equal(t, 0.0, Relevance("Buongiorno", "consulenza fiscale"))
	assert.Equal(t, 0.0, Relevance("Buongiorno", "   "))
}

func TestSearchOrderingAndContext(t *testing.T) {
	messages := make([]models.Message, 0, 8)
	contents := []string{
		"ciao",
		"vorrei una consulenza",
		"per quando?",
		"consulenza fiscale domani",
		"alle 10?",
		"va bene",
		"fiscale urgente",
		"grazie",
	}
	for _, c := range contents {
		messages = append(messages, models.Message{Role: models.RoleUser, Content: c})
	}

	results := Search(messages, "consulenza fiscale", 10)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Position)
	assert.Equal(t, 1.0, results[0].RelevanceScore)
	assert.Len(t, results[0].Context, 5)
	assert.Equal(t, "vorrei una consulenza", results[0].Context[0].Content)
	assert.Equal(t, 8, results[0].TotalMessages)

	// Ties keep conversation order.
	results = Search(messages, "CONSULENZA", 10)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Position)
	assert.Len(t, results[0].Context, 4)
	assert.Equal(t, 3, results[1].Position)

	limited := Search(messages, "consulenza", 1)
	require.Len(t, limited, 1)
	assert.Equal(t, 1, limited[0].Position)

	assert.Empty(t, Search(messages, "  ", 10))
}

func TestSearchRequiresWholeQuery(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleUser, Content: "consulenza fiscale giovedì"},
		{Role: models.RoleUser, Content: "solo una consulenza"},
	}

	results := Search(messages, "consulenza fiscale", 5)
	require.Len(t, results, 1)
	assert.Equal(t, "consulenza fiscale giovedì", results[0].Message.Content)
}

func TestStoreSearchDefaultLimit(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	for i := 0; i < 8; i++ {
		_, err := store.AppendMessage(ctx, "s", models.RoleUser, fmt.Sprintf("promemoria %d", i), "", nil)
		require.NoError(t, err)
	}

	results, err := store.Search(ctx, "s", "promemoria", 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultSearchLimit)

	results, err = store.Search(ctx, "missing", "promemoria", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}
