package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/xaenox/schedule-bot/internal/agent"
	"github.com/xaenox/schedule-bot/internal/classifier"
	"github.com/xaenox/schedule-bot/internal/models"
	"github.com/xaenox/schedule-bot/internal/temporal"
	"github.com/xaenox/schedule-bot/internal/validator"
	"go.uber.org/zap"
)

type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" validate:"required"`
}

type ChatResponse struct {
	SessionID string `json:"session_id"`
	agent.TurnResult
}

// Chat handles POST /chat. A missing session id starts a new session.
func (h *Handler) Chat(c echo.Context) error {
	var req ChatRequest
	if msg := bindAndValidate(c, &req); msg != "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
	}
	if req.SessionID == "" {
		req.SessionID = "web-" + uuid.NewString()
	}

	result := h.turn(c.Request().Context(), req.SessionID, req.Message)
	return c.JSON(http.StatusOK, ChatResponse{SessionID: req.SessionID, TurnResult: result})
}

type ParseRequest struct {
	Text      string `json:"text" validate:"required"`
	Reference string `json:"reference"`
}

// Parse handles POST /parse.
func (h *Handler) Parse(c echo.Context) error {
	var req ParseRequest
	if msg := bindAndValidate(c, &req); msg != "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
	}

	parsed, err := h.parser.Parse(c.Request().Context(), req.Text, req.Reference)
	switch {
	case errors.Is(err, temporal.ErrInvalidReference):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid reference date"})
	case errors.Is(err, temporal.ErrUnanchored):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "no date found in text"})
	case err != nil:
		h.logger.Error("Failed to parse request", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to parse request"})
	}
	return c.JSON(http.StatusOK, parsed)
}

type ValidateRequest struct {
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string `json:"time" validate:"required,datetime=15:04"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=1"`
	Service         string `json:"service"`
}

// Validate handles POST /validate.
func (h *Handler) Validate(c echo.Context) error {
	var req ValidateRequest
	if msg := bindAndValidate(c, &req); msg != "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, h.loc)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid date or time"})
	}

	result := h.rules.Validate(c.Request().Context(), models.AppointmentRequest{
		Date:            req.Date,
		Time:            req.Time,
		Start:           start,
		Timezone:        h.loc.String(),
		Service:         req.Service,
		DurationMinutes: req.DurationMinutes,
		DateMatched:     true,
	}, h.policy)
	return c.JSON(http.StatusOK, result)
}

type SlotsResponse struct {
	Date            string   `json:"date"`
	DurationMinutes int      `json:"duration_minutes"`
	Slots           []string `json:"slots"`
}

// Slots handles GET /slots?date=YYYY-MM-DD&duration=N&service=S&step=M.
// The duration defaults to the service's duration, then to one hour.
func (h *Handler) Slots(c echo.Context) error {
	day, err := time.ParseInLocation("2006-01-02", c.QueryParam("date"), h.loc)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
	}

	duration := 60
	if d, ok := classifier.DefaultDuration(c.QueryParam("service")); ok {
		duration = d
	}
	if v := c.QueryParam("duration"); v != "" {
		if duration, err = strconv.Atoi(v); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid duration"})
		}
	}

	step := time.Duration(0)
	if v := c.QueryParam("step"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid step"})
		}
		step = time.Duration(minutes) * time.Minute
	}

	slots, err := h.rules.FreeSlots(c.Request().Context(), day, duration, step, h.policy)
	if errors.Is(err, validator.ErrInvalidDuration) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid duration"})
	}
	if err != nil {
		h.logger.Error("Failed to list free slots", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "availability check failed"})
	}

	resp := SlotsResponse{Date: day.Format("2006-01-02"), DurationMinutes: duration, Slots: make([]string, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, s.Format("15:04"))
	}
	return c.JSON(http.StatusOK, resp)
}

// Services handles GET /services.
func (h *Handler) Services(c echo.Context) error {
	return c.JSON(http.StatusOK, classifier.Services())
}
