// Package server exposes the scheduling core over HTTP and WebSocket.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/xaenox/schedule-bot/internal/agent"
	"github.com/xaenox/schedule-bot/internal/conversation"
	"github.com/xaenox/schedule-bot/internal/keylock"
	"github.com/xaenox/schedule-bot/internal/models"
	"go.uber.org/zap"
)

type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID, text string) agent.TurnResult
}

type RequestParser interface {
	Parse(ctx context.Context, text, reference string) (models.AppointmentRequest, error)
}

type RuleValidator interface {
	Validate(ctx context.Context, req models.AppointmentRequest, policy models.Policy) models.ValidationResult
	FreeSlots(ctx context.Context, day time.Time, durationMinutes int, step time.Duration, policy models.Policy) ([]time.Time, error)
}

type Deps struct {
	Turns    TurnHandler
	Store    *conversation.Store
	Parser   RequestParser
	Rules    RuleValidator
	Policy   models.Policy
	Location *time.Location
	Version  string
}

type Handler struct {
	turns    TurnHandler
	store    *conversation.Store
	parser   RequestParser
	rules    RuleValidator
	policy   models.Policy
	loc      *time.Location
	version  string
	locks    *keylock.Locks
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		turns:   deps.Turns,
		store:   deps.Store,
		parser:  deps.Parser,
		rules:   deps.Rules,
		policy:  deps.Policy,
		loc:     loc,
		version: deps.Version,
		locks:   keylock.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	e.POST("/chat", h.Chat)
	e.GET("/ws", h.HandleWebSocket)

	e.POST("/parse", h.Parse)
	e.POST("/validate", h.Validate)
	e.GET("/slots", h.Slots)
	e.GET("/services", h.Services)

	e.GET("/sessions", h.ListSessions)
	e.GET("/sessions/:session_id/history", h.GetHistory)
	e.GET("/sessions/:session_id/context", h.GetContext)
	e.GET("/sessions/:session_id/facts", h.GetFacts)
	e.GET("/sessions/:session_id/search", h.SearchHistory)
	e.DELETE("/sessions/:session_id", h.DeleteSession)
}

// Health handles GET /health.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.version,
	})
}

// requestValidator plugs go-playground/validator into echo's c.Validate.
type requestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() echo.Validator {
	return &requestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// bindAndValidate returns a response-ready error message or "".
func bindAndValidate(c echo.Context, req interface{}) string {
	if err := c.Bind(req); err != nil {
		return "invalid request body"
	}
	if err := c.Validate(req); err != nil {
		return err.Error()
	}
	return ""
}
