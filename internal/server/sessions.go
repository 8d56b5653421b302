package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/xaenox/schedule-bot/internal/models"
	"go.uber.org/zap"
)

// intQuery reads an optional integer query parameter.
func intQuery(c echo.Context, name string, def int) (int, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ListSessions handles GET /sessions.
func (h *Handler) ListSessions(c echo.Context) error {
	sessions, err := h.store.ListSessions(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list sessions"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// GetHistory handles GET /sessions/:session_id/history?limit=N.
func (h *Handler) GetHistory(c echo.Context) error {
	sessionID := c.Param("session_id")
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
	}

	messages, err := h.store.History(c.Request().Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("Failed to get history", zap.Error(err), zap.String("session_id", sessionID))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get history"})
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"messages":   messages,
	})
}

// GetContext handles GET /sessions/:session_id/context?count=N.
func (h *Handler) GetContext(c echo.Context) error {
	sessionID := c.Param("session_id")
	count, ok := intQuery(c, "count", 0)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid count"})
	}

	rendered, err := h.store.RecentContext(c.Request().Context(), sessionID, count)
	if err != nil {
		h.logger.Error("Failed to render context", zap.Error(err), zap.String("session_id", sessionID))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get context"})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"session_id": sessionID,
		"context":    rendered,
	})
}

// GetFacts handles GET /sessions/:session_id/facts.
func (h *Handler) GetFacts(c echo.Context) error {
	sessionID := c.Param("session_id")
	facts, err := h.store.ExtractFacts(c.Request().Context(), sessionID)
	if err != nil {
		h.logger.Error("Failed to extract facts", zap.Error(err), zap.String("session_id", sessionID))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get facts"})
	}
	return c.JSON(http.StatusOK, facts)
}

// SearchHistory handles GET /sessions/:session_id/search?q=...&limit=N.
func (h *Handler) SearchHistory(c echo.Context) error {
	sessionID := c.Param("session_id")
	query := c.QueryParam("q")
	if query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "q is required"})
	}
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
	}

	results, err := h.store.Search(c.Request().Context(), sessionID, query, limit)
	if err != nil {
		h.logger.Error("Failed to search history", zap.Error(err), zap.String("session_id", sessionID))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to search history"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"query":      query,
		"results":    results,
	})
}

// DeleteSession handles DELETE /sessions/:session_id.
func (h *Handler) DeleteSession(c echo.Context) error {
	sessionID := c.Param("session_id")

	unlock := h.locks.Lock(sessionID)
	defer unlock()

	deleted, err := h.store.DeleteSession(c.Request().Context(), sessionID)
	if err != nil {
		h.logger.Error("Failed to delete session", zap.Error(err), zap.String("session_id", sessionID))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete session"})
	}
	if !deleted {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	return c.NoContent(http.StatusNoContent)
}
