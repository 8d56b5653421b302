// Package validator checks appointment requests against business rules.
package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/xaenox/schedule-bot/internal/models"
	"go.uber.org/zap"
)

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 480
)

const (
	ErrOutsideHours = "Orario non lavorativo. Ufficio aperto %02d:00-%02d:00"
	ErrClosedDay    = "Giorno non lavorativo. Controlla i giorni lavorativi disponibili."
	ErrDuration     = "Durata non valida. Minimo 15 minuti, massimo 8 ore"
	ErrConflict     = "Orario non disponibile - conflitto con altro appuntamento"

	WarnEndsAfterClosing = "L'appuntamento termina alle %s, dopo la chiusura delle %02d:00"
	WarnAvailability     = "Impossibile verificare la disponibilità del calendario"
)

type AvailabilityOracle interface {
	IsBusy(ctx context.Context, start, end time.Time) (models.Availability, error)
}

type Validator struct {
	oracle AvailabilityOracle
	logger *zap.Logger
}

// New returns a validator. A nil oracle disables the conflict check.
func New(oracle AvailabilityOracle, logger *zap.Logger) *Validator {
	return &Validator{oracle: oracle, logger: logger}
}

// Validate evaluates every rule and collects all violations. The conflict
// check runs only when the three static rules pass.
func (v *Validator) Validate(ctx context.Context, req models.AppointmentRequest, policy models.Policy) models.ValidationResult {
	result := models.ValidationResult{
		BusinessHoursValid: true,
		WorkingDayValid:    true,
		DurationValid:      true,
		Errors:             []string{},
		Warnings:           []string{},
	}

	start := req.Start
	minuteOfDay := start.Hour()*60 + start.Minute()
	if minuteOfDay < policy.OpeningHour*60 || minuteOfDay >= policy.ClosingHour*60 {
		result.BusinessHoursValid = false
		result.Errors = append(result.Errors, fmt.Sprintf(ErrOutsideHours, policy.OpeningHour, policy.ClosingHour))
	}

	if !policy.IsWorkingDay(ISOWeekday(start)) {
		result.WorkingDayValid = false
		result.Errors = append(result.Errors, ErrClosedDay)
	}

	if req.DurationMinutes < MinDurationMinutes || req.DurationMinutes > MaxDurationMinutes {
		result.DurationValid = false
		result.Errors = append(result.Errors, ErrDuration)
	}

	result.Valid = result.BusinessHoursValid && result.WorkingDayValid && result.DurationValid
	if !result.Valid {
		return result
	}

	// Only the start instant is held to business hours; an overrun is reported
	// but does not invalidate the request.
	closing := time.Date(start.Year(), start.Month(), start.Day(), policy.ClosingHour, 0, 0, 0, start.Location())
	if end := req.End(); end.After(closing) {
		result.Warnings = append(result.Warnings, fmt.Sprintf(WarnEndsAfterClosing, end.Format("15:04"), policy.ClosingHour))
	}

	if v.oracle == nil {
		return result
	}

	availability, err := v.oracle.IsBusy(ctx, start, req.End())
	if err != nil {
		v.logger.Warn("Availability check failed, skipping conflict check",
			zap.Error(err),
			zap.Time("start", start),
			zap.Int("duration_minutes", req.DurationMinutes))
		result.Warnings = append(result.Warnings, WarnAvailability)
		return result
	}

	if !availability.Available || len(availability.Conflicts) > 0 {
		result.Valid = false
		result.Errors = append(result.Errors, ErrConflict)
	}

	return result
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(t time.Time) int {
	if wd := t.Weekday(); wd != time.Sunday {
		return int(wd)
	}
	return 7
}
