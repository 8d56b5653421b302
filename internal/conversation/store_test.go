package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/schedule-bot/internal/models"
	"github.com/xaenox/schedule-bot/internal/storage"
	"go.uber.org/zap"
)

// stepClock advances one minute on every call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := current
		current = current.Add(time.Minute)
		return t
	}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	start := time.Date(2025, 1, 20, 9, 30, 0, 0, time.UTC)
	return NewStore(storage.NewMemoryStorage(), zap.NewNop(), WithClock(stepClock(start)))
}

func TestHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, n := range []int{0, 1, 2, 7, 25} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			store := newStore(t)
			id := fmt.Sprintf("round-%d", n)
			for i := 0; i < n; i++ {
				role := models.RoleUser
				if i%2 == 1 {
					role = models.RoleAssistant
				}
				_, err := store.AppendMessage(ctx, id, role, fmt.Sprintf("messaggio %d", i), models.TypeText, nil)
				require.NoError(t, err)
			}

			history, err := store.History(ctx, id, n)
			require.NoError(t, err)
			require.Len(t, history, n)
			for i, msg := range history {
				assert.Equal(t, fmt.Sprintf("messaggio %d", i), msg.Content)
			}
		})
	}
}

func TestHistoryLimitKeepsNewest(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	for i := 0; i < 5; i++ {
		_, err := store.AppendMessage(ctx, "s", models.RoleUser, fmt.Sprint(i), "", nil)
		require.NoError(t, err)
	}

	history, err := store.History(ctx, "s", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "3", history[0].Content)
	assert.Equal(t, "4", history[1].Content)
	assert.Equal(t, models.TypeText, history[1].MessageType)

	all, err := store.History(ctx, "s", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestAppendCreatesSession(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	history, err := store.History(ctx, "new", 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = store.AppendMessage(ctx, "new", models.RoleUser, "ciao", models.TypeText, nil)
	require.NoError(t, err)

	infos, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "new", infos[0].SessionID)
	assert.Equal(t, 1, infos[0].MessageCount)
}

func TestCreateSessionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	first, err := store.CreateSession(ctx, "s")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, "s", models.RoleUser, "ciao", "", nil)
	require.NoError(t, err)

	again, err := store.CreateSession(ctx, "s")
	require.NoError(t, err)
	assert.True(t, first.CreatedAt.Equal(again.CreatedAt))
	assert.Len(t, again.Messages, 1)
}

func TestAppendCopiesMetadata(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	meta := map[string]string{"service_type": "consulenza"}

	_, err := store.AppendMessage(ctx, "s", models.RoleUser, "ciao", "", meta)
	require.NoError(t, err)
	meta["service_type"] = "altro"

	history, err := store.History(ctx, "s", 0)
	require.NoError(t, err)
	assert.Equal(t, "consulenza", history[0].Metadata["service_type"])
}

func TestRecentContext(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	text, err := store.RecentContext(ctx, "s", 10)
	require.NoError(t, err)
	assert.Equal(t, NoContext, text)

	_, err = store.AppendMessage(ctx, "s", models.RoleUser, "Vorrei un appuntamento", "", nil)
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, "s", models.RoleAssistant, "Per quando?", "", nil)
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, "s", models.RoleUser, "Domani", "", nil)
	require.NoError(t, err)

	text, err = store.RecentContext(ctx, "s", 2)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		ContextHeader,
		"[09:31] Assistente: Per quando?",
		"[09:32] Utente: Domani",
		ContextFooter,
	}, "\n"), text)
}

func TestEnrich(t *testing.T) {
	assert.Equal(t, NoContext+"\n\n\nMESSAGGIO ATTUALE: ciao", Enrich(NoContext, "ciao"))
}

func TestExtractFactsIsReplayable(t *testing.T) {
	ctx := context.Background()
	turns := []struct {
		role     models.Role
		content  string
		msgType  string
		metadata map[string]string
	}{
		{models.RoleUser, "Ciao, mi chiamo mario rossi", models.TypeText, nil},
		{models.RoleAssistant, "Piacere Mario! Come posso aiutarti?", models.TypeText, nil},
		{models.RoleUser, "Vorrei una consulenza domani alle 10, scrivimi a mario@example.com.", models.TypeText, map[string]string{MetaServiceType: "consulenza"}},
		{models.RoleSystem, "✅ Appuntamento creato", models.TypeAppointmentCreated, map[string]string{"event_id": "e1", MetaServiceType: "consulenza"}},
		{models.RoleUser, "E poi una revisione documenti", models.TypeText, map[string]string{MetaServiceType: "revisione_documenti"}},
		{models.RoleSystem, "✅ Appuntamento creato", models.TypeAppointmentCreated, map[string]string{"event_id": "e2"}},
	}

	replay := func(id string) models.ExtractedFacts {
		store := newStore(t)
		for _, turn := range turns {
			_, err := store.AppendMessage(ctx, id, turn.role, turn.content, turn.msgType, turn.metadata)
			require.NoError(t, err)
		}
		facts, err := store.ExtractFacts(ctx, id)
		require.NoError(t, err)
		return facts
	}

	first := replay("one")
	second := replay("two")
	assert.Equal(t, first, second)

	assert.Equal(t, "Mario", first.UserName)
	assert.Equal(t, "mario@example.com", first.UserEmail)
	assert.Equal(t, []string{"consulenza", "revisione_documenti"}, first.ServiceTypes)
	assert.Equal(t, 2, first.AppointmentCount)
	assert.Equal(t, "e2", first.LastAppointment["event_id"])
}

func TestExtractFactsEmptySession(t *testing.T) {
	facts, err := newStore(t).ExtractFacts(context.Background(), "none")
	require.NoError(t, err)
	assert.Empty(t, facts.UserName)
	assert.Empty(t, facts.UserEmail)
	assert.Empty(t, facts.ServiceTypes)
	assert.Zero(t, facts.AppointmentCount)
	assert.Nil(t, facts.LastAppointment)
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	_, err := store.AppendMessage(ctx, "s", models.RoleUser, "ciao", "", nil)
	require.NoError(t, err)

	deleted, err := store.DeleteSession(ctx, "s")
	require.NoError(t, err)
	assert.True(t, deleted)

	history, err := store.History(ctx, "s", 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	deleted, err = store.DeleteSession(ctx, "s")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestConcurrentAppendsSameSession(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.AppendMessage(ctx, "shared", models.RoleUser, fmt.Sprint(i), "", nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := store.History(ctx, "shared", 0)
	require.NoError(t, err)
	assert.Len(t, history, writers)
	assert.Zero(t, store.locks.Len())
}
