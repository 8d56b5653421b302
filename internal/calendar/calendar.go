// Package calendar is an in-process appointment ledger. It answers
// availability queries and records bookings, producing a Google Calendar
// template link for every event.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/schedule-bot/internal/models"
	"go.uber.org/zap"
)

const templateURL = "https://calendar.google.com/calendar/render"

var (
	ErrSlotTaken    = errors.New("slot already booked")
	ErrInvalidEvent = errors.New("invalid event")
)

type Event struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	AttendeeEmail string    `json:"attendee_email,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Link          string    `json:"link"`
}

func (e Event) interval() models.Interval {
	return models.Interval{Start: e.Start, End: e.End, Reason: e.Title}
}

type LocalCalendar struct {
	mu     sync.RWMutex
	events []Event
	logger *zap.Logger
}

func NewLocalCalendar(logger *zap.Logger) *LocalCalendar {
	return &LocalCalendar{logger: logger}
}

// IsBusy reports the events overlapping [start, end).
func (c *LocalCalendar) IsBusy(ctx context.Context, start, end time.Time) (models.Availability, error) {
	if err := ctx.Err(); err != nil {
		return models.Availability{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	conflicts := c.conflicts(start, end)
	return models.Availability{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// conflicts must be called with c.mu held.
func (c *LocalCalendar) conflicts(start, end time.Time) []models.Interval {
	slot := models.Interval{Start: start, End: end}
	var out []models.Interval
	for _, e := range c.events {
		if iv := e.interval(); iv.Overlaps(slot) {
			out = append(out, iv)
		}
	}
	return out
}

// CreateEvent records the event unless another one already holds the slot.
func (c *LocalCalendar) CreateEvent(ctx context.Context, req models.EventRequest) (models.BookingResult, error) {
	if err := ctx.Err(); err != nil {
		return models.BookingResult{}, err
	}
	if req.Title == "" || req.DurationMinutes <= 0 || req.Start.IsZero() {
		return models.BookingResult{}, fmt.Errorf("%w: title, start and a positive duration are required", ErrInvalidEvent)
	}

	end := req.Start.Add(time.Duration(req.DurationMinutes) * time.Minute)

	c.mu.Lock()
	defer c.mu.Unlock()

	if conflicts := c.conflicts(req.Start, end); len(conflicts) > 0 {
		return models.BookingResult{}, fmt.Errorf("%w: %s", ErrSlotTaken, conflicts[0].Reason)
	}

	id := uuid.NewString()
	event := Event{
		ID:            id,
		Title:         req.Title,
		Description:   req.Description,
		AttendeeEmail: req.AttendeeEmail,
		Start:         req.Start,
		End:           end,
		Link:          TemplateLink(id, req.Title, req.Start, end),
	}
	c.events = append(c.events, event)
	sort.Slice(c.events, func(i, j int) bool { return c.events[i].Start.Before(c.events[j].Start) })

	c.logger.Info("Created calendar event",
		zap.String("event_id", id),
		zap.String("title", req.Title),
		zap.Time("start", req.Start),
		zap.Int("duration_minutes", req.DurationMinutes))

	return models.BookingResult{EventID: id, ExternalLink: event.Link}, nil
}

// Events returns a copy of the ledger ordered by start time.
func (c *LocalCalendar) Events() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// TemplateLink builds a Google Calendar "add event" link for the slot.
// Times are written in the event's own location.
func TemplateLink(eventID, title string, start, end time.Time) string {
	const layout = "20060102T150405"
	params := url.Values{}
	params.Set("action", "TEMPLATE")
	params.Set("text", title)
	params.Set("dates", start.Format(layout)+"/"+end.Format(layout))
	params.Set("details", "Evento creato da ScheduleAI Assistant\n\nID Evento: "+eventID)
	return templateURL + "?" + params.Encode()
}
