package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/schedule-bot/internal/models"
	"go.uber.org/zap"
)

// busyAt reports a conflict for any slot overlapping the interval.
type busyAt struct{ busy models.Interval }

func (b busyAt) IsBusy(_ context.Context, start, end time.Time) (models.Availability, error) {
	if b.busy.Overlaps(models.Interval{Start: start, End: end}) {
		return models.Availability{Conflicts: []models.Interval{b.busy}}, nil
	}
	return models.Availability{Available: true}, nil
}

func TestFreeSlotsWholeDay(t *testing.T) {
	v := New(nil, zap.NewNop())
	day := time.Date(2025, 1, 20, 0, 0, 0, 0, rome)

	slots, err := v.FreeSlots(context.Background(), day, 30, 0, models.DefaultPolicy())
	require.NoError(t, err)
	require.Len(t, slots, 18)
	assert.Equal(t, "09:00", slots[0].Format("15:04"))
	assert.Equal(t, "17:30", slots[len(slots)-1].Format("15:04"))
}

func TestFreeSlotsSkipsBusy(t *testing.T) {
	busy := models.Interval{
		Start: time.Date(2025, 1, 20, 10, 0, 0, 0, rome),
		End:   time.Date(2025, 1, 20, 11, 0, 0, 0, rome),
	}
	v := New(busyAt{busy: busy}, zap.NewNop())

	slots, err := v.FreeSlots(context.Background(), busy.Start, 60, time.Hour, models.DefaultPolicy())
	require.NoError(t, err)

	var starts []string
	for _, s := range slots {
		starts = append(starts, s.Format("15:04"))
	}
	assert.Equal(t, []string{"09:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00", "17:00"}, starts)
}

func TestFreeSlotsClosedDayAndErrors(t *testing.T) {
	v := New(nil, zap.NewNop())
	saturday := time.Date(2025, 1, 25, 0, 0, 0, 0, rome)

	slots, err := v.FreeSlots(context.Background(), saturday, 30, 0, models.DefaultPolicy())
	require.NoError(t, err)
	assert.Empty(t, slots)

	_, err = v.FreeSlots(context.Background(), saturday, 5, 0, models.DefaultPolicy())
	assert.ErrorIs(t, err, ErrInvalidDuration)

	failing := New(&fakeOracle{err: errors.New("down")}, zap.NewNop())
	_, err = failing.FreeSlots(context.Background(), time.Date(2025, 1, 20, 0, 0, 0, 0, rome), 30, 0, models.DefaultPolicy())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidDuration)
}
