package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/schedule-bot/internal/models"
)

const DefaultSlotStep = 30 * time.Minute

var ErrInvalidDuration = errors.New("invalid duration")

// FreeSlots lists the start times on day, every step, where an appointment
// of durationMinutes fits inside business hours and the oracle reports the
// slot free. Closed days have no slots.
func (v *Validator) FreeSlots(ctx context.Context, day time.Time, durationMinutes int, step time.Duration, policy models.Policy) ([]time.Time, error) {
	if durationMinutes < MinDurationMinutes || durationMinutes > MaxDurationMinutes {
		return nil, fmt.Errorf("%w %d", ErrInvalidDuration, durationMinutes)
	}
	if step <= 0 {
		step = DefaultSlotStep
	}

	slots := []time.Time{}
	if !policy.IsWorkingDay(ISOWeekday(day)) {
		return slots, nil
	}

	length := time.Duration(durationMinutes) * time.Minute
	open := time.Date(day.Year(), day.Month(), day.Day(), policy.OpeningHour, 0, 0, 0, day.Location())
	closing := time.Date(day.Year(), day.Month(), day.Day(), policy.ClosingHour, 0, 0, 0, day.Location())

	for start := open; !start.Add(length).After(closing); start = start.Add(step) {
		if v.oracle != nil {
			availability, err := v.oracle.IsBusy(ctx, start, start.Add(length))
			if err != nil {
				return nil, fmt.Errorf("check availability: %w", err)
			}
			if !availability.Available || len(availability.Conflicts) > 0 {
				continue
			}
		}
		slots = append(slots, start)
	}
	return slots, nil
}
