package server

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/xaenox/schedule-bot/internal/agent"
	"go.uber.org/zap"
)

const maxMessageSize = 64 * 1024

type wsError struct {
	Error string `json:"error"`
}

// turn runs one conversation turn while holding the session lock.
func (h *Handler) turn(ctx context.Context, sessionID, text string) agent.TurnResult {
	unlock := h.locks.Lock(sessionID)
	defer unlock()
	return h.turns.HandleTurn(ctx, sessionID, text)
}

// HandleWebSocket handles GET /ws. Each text frame is a ChatRequest and is
// answered with a ChatResponse before the next frame is read. Frames without
// a session id use the id assigned to the connection.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade WebSocket", zap.Error(err))
		return err
	}
	defer ws.Close()
	ws.SetReadLimit(maxMessageSize)

	connSession := "ws-" + uuid.NewString()
	logger := h.logger.With(zap.String("connection_session", connSession))
	logger.Info("WebSocket connected")

	ctx := c.Request().Context()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket error", zap.Error(err))
			}
			break
		}

		var req ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if werr := ws.WriteJSON(wsError{Error: "invalid JSON message"}); werr != nil {
				break
			}
			continue
		}
		if strings.TrimSpace(req.Message) == "" {
			if werr := ws.WriteJSON(wsError{Error: "message is required"}); werr != nil {
				break
			}
			continue
		}
		if req.SessionID == "" {
			req.SessionID = connSession
		}

		result := h.turn(ctx, req.SessionID, req.Message)
		if err := ws.WriteJSON(ChatResponse{SessionID: req.SessionID, TurnResult: result}); err != nil {
			logger.Warn("Failed to write message", zap.Error(err))
			break
		}
	}

	logger.Info("WebSocket disconnected")
	return nil
}
