package models

import "time"

// AppointmentRequest is the structured reading of one inbound message.
type AppointmentRequest struct {
	RawText         string    `json:"raw_text"`
	Date            string    `json:"resolved_date"`
	Time            string    `json:"resolved_time"`
	Start           time.Time `json:"start"`
	Timezone        string    `json:"timezone"`
	Service         string    `json:"canonical_service"`
	DurationMinutes int       `json:"duration_minutes"`
	Confidence      float64   `json:"confidence"`
	DateMatched     bool      `json:"date_matched"`
}

// End returns the instant the requested slot finishes.
func (r AppointmentRequest) End() time.Time {
	return r.Start.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// Policy holds the business rules a request is validated against.
// Working days use 1=Monday .. 7=Sunday.
type Policy struct {
	OpeningHour int   `json:"opening_hour"`
	ClosingHour int   `json:"closing_hour"`
	WorkingDays []int `json:"working_days"`
}

func DefaultPolicy() Policy {
	return Policy{
		OpeningHour: 9,
		ClosingHour: 18,
		WorkingDays: []int{1, 2, 3, 4, 5},
	}
}

// IsWorkingDay reports whether the ISO weekday (1=Monday) is open for bookings.
func (p Policy) IsWorkingDay(isoWeekday int) bool {
	for _, d := range p.WorkingDays {
		if d == isoWeekday {
			return true
		}
	}
	return false
}

type ValidationResult struct {
	Valid              bool     `json:"valid"`
	BusinessHoursValid bool     `json:"business_hours_valid"`
	WorkingDayValid    bool     `json:"working_day_valid"`
	DurationValid      bool     `json:"duration_valid"`
	Errors             []string `json:"errors"`
	Warnings           []string `json:"warnings"`
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason,omitempty"`
}

// Overlaps reports whether two half-open intervals share any instant.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Availability is the answer of an availability oracle for one range.
type Availability struct {
	Available bool       `json:"available"`
	Conflicts []Interval `json:"conflicts"`
}

// EventRequest describes a calendar event to create.
type EventRequest struct {
	Title           string    `json:"title"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	AttendeeEmail   string    `json:"attendee_email,omitempty"`
	Description     string    `json:"description"`
}

// BookingResult is returned by a booking collaborator on success.
type BookingResult struct {
	EventID      string `json:"event_id"`
	ExternalLink string `json:"external_link"`
}

// Service describes an entry of the service catalogue.
type Service struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration"`
}
