package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/schedule-bot/internal/calendar"
	"github.com/xaenox/schedule-bot/internal/classifier"
	"github.com/xaenox/schedule-bot/internal/conversation"
	"github.com/xaenox/schedule-bot/internal/models"
	"github.com/xaenox/schedule-bot/internal/parser"
	"github.com/xaenox/schedule-bot/internal/storage"
	"github.com/xaenox/schedule-bot/internal/temporal"
	"github.com/xaenox/schedule-bot/internal/validator"
	"go.uber.org/zap"
)

type fakeBooker struct {
	calls int
	last  models.EventRequest
	err   error
}

func (f *fakeBooker) CreateEvent(_ context.Context, req models.EventRequest) (models.BookingResult, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return models.BookingResult{}, f.err
	}
	return models.BookingResult{EventID: "evt-1", ExternalLink: "https://calendar.example/evt-1"}, nil
}

type failingStorage struct{ storage.MemoryStorage }

func (*failingStorage) SaveSession(context.Context, *models.Session) error {
	return errors.New("disk full")
}

var rome = mustLoad("Europe/Rome")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Monday 20 January 2025, 09:00 in Rome.
var monday = time.Date(2025, 1, 20, 9, 0, 0, 0, rome)

type harness struct {
	orch  *Orchestrator
	store *conversation.Store
}

func newHarness(t *testing.T, st storage.Storage, oracle validator.AvailabilityOracle, booker Booker) harness {
	t.Helper()
	clock := func() time.Time { return monday }

	resolver, err := temporal.NewResolver("Europe/Rome", temporal.WithClock(clock))
	require.NoError(t, err)

	store := conversation.NewStore(st, zap.NewNop(), conversation.WithClock(clock))
	orch := New(
		store,
		parser.New(resolver, classifier.NewSimpleClassifier()),
		validator.New(oracle, zap.NewNop()),
		booker,
		Config{Policy: models.DefaultPolicy(), ContextMessages: 10},
		zap.NewNop(),
		WithClock(clock),
	)
	return harness{orch: orch, store: store}
}

func (h harness) history(t *testing.T, sessionID string) []models.Message {
	t.Helper()
	msgs, err := h.store.History(context.Background(), sessionID, 0)
	require.NoError(t, err)
	return msgs
}

func TestBookingWithoutEmailNeverCallsBooker(t *testing.T) {
	booker := &fakeBooker{}
	h := newHarness(t, storage.NewMemoryStorage(), nil, booker)

	res := h.orch.HandleTurn(context.Background(), "s1", "Vorrei prenotare una consulenza giovedì alle 15:00")

	assert.Equal(t, OutcomeEmailRequired, res.Outcome)
	assert.Equal(t, ReplyEmailRequired, res.Reply)
	assert.Zero(t, booker.calls)
	require.NotNil(t, res.Request)
	assert.Equal(t, "2025-01-23", res.Request.Date)
	assert.Equal(t, "15:00", res.Request.Time)
	assert.Nil(t, res.Validation)

	msgs := h.history(t, "s1")
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "consulenza", msgs[0].Metadata[conversation.MetaServiceType])
	assert.Equal(t, models.TypeEmailRequired, msgs[1].MessageType)
	assert.Equal(t, "Vorrei prenotare una consulenza giovedì alle 15:00", msgs[1].Metadata[MetaRawText])
}

func TestEmailAfterGateResumesBooking(t *testing.T) {
	ctx := context.Background()
	booker := &fakeBooker{}
	h := newHarness(t, storage.NewMemoryStorage(), nil, booker)

	first := h.orch.HandleTurn(ctx, "s1", "Vorrei prenotare una consulenza giovedì alle 15:00")
	require.Equal(t, OutcomeEmailRequired, first.Outcome)

	res := h.orch.HandleTurn(ctx, "s1", "certo, mario.rossi@example.com")

	require.Equal(t, OutcomeBooked, res.Outcome)
	assert.Equal(t, 1, booker.calls)
	assert.Equal(t, "mario.rossi@example.com", booker.last.AttendeeEmail)
	assert.Equal(t, "consulenza - mario.rossi", booker.last.Title)
	assert.True(t, booker.last.Start.Equal(time.Date(2025, 1, 23, 15, 0, 0, 0, rome)))
	assert.Equal(t, 60, booker.last.DurationMinutes)

	facts, err := h.store.ExtractFacts(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, facts.AppointmentCount)
	assert.Equal(t, "evt-1", facts.LastAppointment[MetaEventID])
	assert.Equal(t, "mario.rossi@example.com", facts.UserEmail)
}

func TestEmailReplyWithBookingWordsResumesHeldRequest(t *testing.T) {
	ctx := context.Background()
	booker := &fakeBooker{}
	h := newHarness(t, storage.NewMemoryStorage(), nil, booker)

	first := h.orch.HandleTurn(ctx, "s1", "Vorrei prenotare una consulenza giovedì alle 15:00")
	require.Equal(t, OutcomeEmailRequired, first.Outcome)

	res := h.orch.HandleTurn(ctx, "s1", "Ecco la mail per l'appuntamento: mario.rossi@example.com")

	require.Equal(t, OutcomeBooked, res.Outcome)
	assert.Equal(t, 1, booker.calls)
	assert.Equal(t, "mario.rossi@example.com", booker.last.AttendeeEmail)
	assert.True(t, booker.last.Start.Equal(time.Date(2025, 1, 23, 15, 0, 0, 0, rome)))
}

func TestBookingRecordsAppointment(t *testing.T) {
	booker := &fakeBooker{}
	h := newHarness(t, storage.NewMemoryStorage(), nil, booker)

	res := h.orch.HandleTurn(context.Background(), "s1", "Sono Luca, prenota una consulenza domani alle 10, email luca@example.com")

	require.Equal(t, OutcomeBooked, res.Outcome)
	require.NotNil(t, res.Booking)
	assert.Equal(t, "evt-1", res.Booking.EventID)
	assert.Equal(t, 1, booker.calls)
	assert.Equal(t, "consulenza - Luca", booker.last.Title)
	assert.Contains(t, res.Reply, "Luca")
	assert.Contains(t, res.Reply, "martedì 21/01/2025 alle 10:00")
	assert.Contains(t, res.Reply, "https://calendar.example/evt-1")

	msgs := h.history(t, "s1")
	require.Len(t, msgs, 3)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleSystem, msgs[1].Role)
	assert.Equal(t, models.TypeAppointmentCreated, msgs[1].MessageType)
	assert.True(t, strings.HasPrefix(msgs[1].Content, "✅ Appuntamento creato: consulenza - Luca per Luca il 2025-01-21T10:00:00"))
	assert.Equal(t, "luca@example.com", msgs[1].Metadata[MetaClientEmail])
	assert.Equal(t, "60", msgs[1].Metadata[MetaDurationMinutes])
	assert.Equal(t, models.RoleAssistant, msgs[2].Role)
	assert.Equal(t, res.Reply, msgs[2].Content)
}

func TestInvalidRequestSurfacesErrors(t *testing.T) {
	booker := &fakeBooker{}
	h := newHarness(t, storage.NewMemoryStorage(), nil, booker)

	res := h.orch.HandleTurn(context.Background(), "s1", "prenota una consulenza sabato alle 20 luca@example.com")

	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Zero(t, booker.calls)
	require.NotNil(t, res.Validation)
	assert.Len(t, res.Validation.Errors, 2)
	for _, e := range res.Validation.Errors {
		assert.Contains(t, res.Reply, e)
	}

	msgs := h.history(t, "s1")
	require.Len(t, msgs, 2)
	assert.Equal(t, models.TypeValidationFailed, msgs[1].MessageType)
}

func TestBookingFailureIsReported(t *testing.T) {
	booker := &fakeBooker{err: errors.New("calendar down")}
	h := newHarness(t, storage.NewMemoryStorage(), nil, booker)

	res := h.orch.HandleTurn(context.Background(), "s1", "prenota una riunione domani alle 11 anna@example.com")

	assert.Equal(t, OutcomeBookingFailed, res.Outcome)
	assert.Equal(t, ReplyBookingFailed, res.Reply)
	assert.Equal(t, 1, booker.calls)
	assert.Nil(t, res.Booking)

	msgs := h.history(t, "s1")
	require.Len(t, msgs, 2)
	assert.Equal(t, models.TypeBookingFailed, msgs[1].MessageType)

	facts, err := h.store.ExtractFacts(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, facts.AppointmentCount)
}

func TestEmailFromEarlierTurn(t *testing.T) {
	ctx := context.Background()
	booker := &fakeBooker{}
	h := newHarness(t, storage.NewMemoryStorage(), nil, booker)

	chat := h.orch.HandleTurn(ctx, "s1", "Ciao, mi chiamo giulia, la mia mail è giulia@example.com")
	require.Equal(t, OutcomeChat, chat.Outcome)
	assert.Zero(t, booker.calls)

	res := h.orch.HandleTurn(ctx, "s1", "prenota un colloquio mercoledì alle 11:30")
	require.Equal(t, OutcomeBooked, res.Outcome)
	assert.Equal(t, "giulia@example.com", booker.last.AttendeeEmail)
	assert.Equal(t, "colloquio - Giulia", booker.last.Title)
	assert.Equal(t, 30, booker.last.DurationMinutes)
}

func TestChatAndDateRequired(t *testing.T) {
	ctx := context.Background()
	booker := &fakeBooker{}
	h := newHarness(t, storage.NewMemoryStorage(), nil, booker)

	res := h.orch.HandleTurn(ctx, "s1", "buongiorno")
	assert.Equal(t, OutcomeChat, res.Outcome)
	assert.Nil(t, res.Request)

	res = h.orch.HandleTurn(ctx, "s1", "vorrei un appuntamento")
	assert.Equal(t, OutcomeDateRequired, res.Outcome)
	assert.Equal(t, ReplyDateRequired, res.Reply)

	assert.Zero(t, booker.calls)
	assert.Len(t, h.history(t, "s1"), 4)
}

func TestDoubleBookingAcrossSessionsConflicts(t *testing.T) {
	ctx := context.Background()
	cal := calendar.NewLocalCalendar(zap.NewNop())
	h := newHarness(t, storage.NewMemoryStorage(), cal, cal)

	first := h.orch.HandleTurn(ctx, "a", "prenota una consulenza domani alle 10 a@example.com")
	require.Equal(t, OutcomeBooked, first.Outcome)
	assert.Contains(t, first.Booking.ExternalLink, "calendar.google.com")

	second := h.orch.HandleTurn(ctx, "b", "prenota una consulenza domani alle 10:30 b@example.com")
	assert.Equal(t, OutcomeInvalid, second.Outcome)
	assert.Equal(t, []string{validator.ErrConflict}, second.Validation.Errors)
	assert.Len(t, cal.Events(), 1)
}

func TestPersistenceFailureStillReplies(t *testing.T) {
	booker := &fakeBooker{}
	h := newHarness(t, &failingStorage{}, nil, booker)

	res := h.orch.HandleTurn(context.Background(), "s1", "prenota una consulenza domani alle 10 x@example.com")

	assert.Equal(t, OutcomeBooked, res.Outcome)
	assert.NotEmpty(t, res.Reply)
	assert.Equal(t, 1, booker.calls)
}

func TestIsBookingIntent(t *testing.T) {
	assert.True(t, IsBookingIntent("Vorrei PRENOTARE"))
	assert.True(t, IsBookingIntent("fissami un appuntamento"))
	assert.True(t, IsBookingIntent("book a meeting"))
	assert.True(t, IsBookingIntent("l'appuntamento di domani"))
	assert.False(t, IsBookingIntent("ciao, come stai?"))
	assert.False(t, IsBookingIntent("ti scrivo su facebook"))
	assert.False(t, IsBookingIntent("ho perso il notebook"))
}
