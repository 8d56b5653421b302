// Package agent runs one conversation turn: it enriches the message with
// prior context, decides whether it is a booking request, gates on the
// attendee email, validates the slot and books it exactly once.
package agent

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/xaenox/schedule-bot/internal/conversation"
	"github.com/xaenox/schedule-bot/internal/models"
	"go.uber.org/zap"
)

type Outcome string

const (
	OutcomeChat          Outcome = "chat"
	OutcomeDateRequired  Outcome = "date_required"
	OutcomeEmailRequired Outcome = "email_required"
	OutcomeInvalid       Outcome = "invalid"
	OutcomeBooked        Outcome = "booked"
	OutcomeBookingFailed Outcome = "booking_failed"
)

// Metadata keys written on gate and booking messages.
const (
	MetaRawText         = "raw_text"
	MetaEventID         = "event_id"
	MetaTitle           = "title"
	MetaClientName      = "client_name"
	MetaClientEmail     = "client_email"
	MetaStartTime       = "start_time"
	MetaDurationMinutes = "duration_minutes"
	MetaCalendarLink    = "calendar_link"
)

type Parser interface {
	ParseAt(ctx context.Context, text string, ref time.Time) (models.AppointmentRequest, error)
}

type Validator interface {
	Validate(ctx context.Context, req models.AppointmentRequest, policy models.Policy) models.ValidationResult
}

type Booker interface {
	CreateEvent(ctx context.Context, req models.EventRequest) (models.BookingResult, error)
}

type TurnResult struct {
	Reply      string                     `json:"reply"`
	Outcome    Outcome                    `json:"outcome"`
	Request    *models.AppointmentRequest `json:"request,omitempty"`
	Validation *models.ValidationResult   `json:"validation,omitempty"`
	Booking    *models.BookingResult      `json:"booking,omitempty"`
}

type Config struct {
	Policy          models.Policy
	ContextMessages int
}

type Orchestrator struct {
	store     *conversation.Store
	parser    Parser
	validator Validator
	booker    Booker
	config    Config
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(store *conversation.Store, parser Parser, validator Validator, booker Booker, config Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if config.ContextMessages <= 0 {
		config.ContextMessages = conversation.DefaultContextMessages
	}
	o := &Orchestrator{
		store:     store,
		parser:    parser,
		validator: validator,
		booker:    booker,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// reply is the assistant message recorded at the end of a turn.
type reply struct {
	text     string
	msgType  string
	metadata map[string]string
}

// HandleTurn never fails: collaborator and persistence failures are logged
// and turned into a reply.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, text string) TurnResult {
	logger := o.logger.With(zap.String("session_id", sessionID))
	ref := o.now()

	history, err := o.store.History(ctx, sessionID, 0)
	if err != nil {
		logger.Error("Failed to load conversation history", zap.Error(err))
	}
	recent := history
	if n := o.config.ContextMessages; len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	enriched := conversation.Enrich(conversation.RenderContext(recent), text)
	facts := conversation.ExtractFacts(history)

	email, hasEmail := conversation.ExtractEmail(enriched)
	if !hasEmail && facts.UserEmail != "" {
		email, hasEmail = facts.UserEmail, true
	}

	requestText, requestRef := text, ref
	booking := IsBookingIntent(text)
	gate, gated := pendingGate(history)
	gated = gated && hasEmail
	if !booking && gated {
		requestText, requestRef = gate.Metadata[MetaRawText], gate.Timestamp
		booking = true
		logger.Info("Resuming request held for missing email")
	}

	if !booking {
		o.recordUser(ctx, logger, sessionID, text, nil)
		r := reply{text: ChatReply(text, facts.UserName), msgType: models.TypeText}
		o.finish(ctx, logger, sessionID, r)
		return TurnResult{Reply: r.text, Outcome: OutcomeChat}
	}

	req, err := o.parser.ParseAt(ctx, requestText, requestRef)
	if gated && requestText == text && (err != nil || !req.DateMatched) {
		// The email reply mentions booking but carries no date of its own.
		requestText = gate.Metadata[MetaRawText]
		req, err = o.parser.ParseAt(ctx, requestText, gate.Timestamp)
		logger.Info("Resuming request held for missing email")
	}
	if err != nil || !req.DateMatched {
		if err != nil {
			logger.Info("Could not resolve a date", zap.Error(err))
		}
		o.recordUser(ctx, logger, sessionID, text, nil)
		r := reply{text: ReplyDateRequired, msgType: models.TypeText}
		o.finish(ctx, logger, sessionID, r)
		return TurnResult{Reply: r.text, Outcome: OutcomeDateRequired}
	}
	result := TurnResult{Request: &req}
	o.recordUser(ctx, logger, sessionID, text, map[string]string{conversation.MetaServiceType: req.Service})

	if !hasEmail {
		r := reply{
			text:    ReplyEmailRequired,
			msgType: models.TypeEmailRequired,
			metadata: map[string]string{
				MetaRawText:                  requestText,
				conversation.MetaServiceType: req.Service,
			},
		}
		o.finish(ctx, logger, sessionID, r)
		result.Reply, result.Outcome = r.text, OutcomeEmailRequired
		return result
	}

	validation := o.validator.Validate(ctx, req, o.config.Policy)
	result.Validation = &validation
	if !validation.Valid {
		r := reply{text: invalidReply(validation.Errors), msgType: models.TypeValidationFailed}
		o.finish(ctx, logger, sessionID, r)
		result.Reply, result.Outcome = r.text, OutcomeInvalid
		return result
	}

	clientName := facts.UserName
	if clientName == "" {
		if name, ok := conversation.ExtractName(text); ok {
			clientName = name
		} else {
			clientName = strings.SplitN(email, "@", 2)[0]
		}
	}

	event := models.EventRequest{
		Title:           req.Service + " - " + clientName,
		Start:           req.Start,
		DurationMinutes: req.DurationMinutes,
		AttendeeEmail:   email,
		Description:     "Appuntamento per " + req.Service + "\nCliente: " + clientName + "\nEmail: " + email,
	}
	booked, err := o.booker.CreateEvent(ctx, event)
	if err != nil {
		logger.Error("Failed to create calendar event",
			zap.Error(err),
			zap.Time("start", req.Start),
			zap.String("service", req.Service))
		r := reply{text: ReplyBookingFailed, msgType: models.TypeBookingFailed}
		o.finish(ctx, logger, sessionID, r)
		result.Reply, result.Outcome = r.text, OutcomeBookingFailed
		return result
	}
	result.Booking = &booked

	startISO := req.Start.Format(time.RFC3339)
	o.appendMessage(ctx, logger, sessionID, models.RoleSystem, "✅ Appuntamento creato: "+event.Title+" per "+clientName+" il "+startISO, models.TypeAppointmentCreated, map[string]string{
		MetaEventID:                  booked.EventID,
		MetaTitle:                    event.Title,
		MetaClientName:               clientName,
		MetaClientEmail:              email,
		conversation.MetaServiceType: req.Service,
		MetaStartTime:                startISO,
		MetaDurationMinutes:          strconv.Itoa(req.DurationMinutes),
		MetaCalendarLink:             booked.ExternalLink,
	})

	r := reply{text: bookedReply(clientName, req, booked, validation.Warnings), msgType: models.TypeText}
	o.finish(ctx, logger, sessionID, r)
	result.Reply, result.Outcome = r.text, OutcomeBooked
	logger.Info("Appointment booked",
		zap.String("event_id", booked.EventID),
		zap.Time("start", req.Start),
		zap.String("service", req.Service))
	return result
}

func (o *Orchestrator) recordUser(ctx context.Context, logger *zap.Logger, sessionID, text string, metadata map[string]string) {
	o.appendMessage(ctx, logger, sessionID, models.RoleUser, text, models.TypeText, metadata)
}

func (o *Orchestrator) finish(ctx context.Context, logger *zap.Logger, sessionID string, r reply) {
	o.appendMessage(ctx, logger, sessionID, models.RoleAssistant, r.text, r.msgType, r.metadata)
}

func (o *Orchestrator) appendMessage(ctx context.Context, logger *zap.Logger, sessionID string, role models.Role, content, msgType string, metadata map[string]string) {
	if _, err := o.store.AppendMessage(ctx, sessionID, role, content, msgType, metadata); err != nil {
		logger.Error("Failed to record message", zap.Error(err), zap.String("role", string(role)))
	}
}

// pendingGate returns the last message when it asked for an email.
func pendingGate(history []models.Message) (models.Message, bool) {
	if len(history) == 0 {
		return models.Message{}, false
	}
	last := history[len(history)-1]
	if last.MessageType != models.TypeEmailRequired || last.Metadata[MetaRawText] == "" {
		return models.Message{}, false
	}
	return last, true
}
