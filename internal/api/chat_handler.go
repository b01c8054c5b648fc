package api

import (
	"alcyxob/workout-chat/internal/domain"
	"alcyxob/workout-chat/internal/service"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChatHandler struct {
	chatService service.ChatService
	logger      *zap.Logger
}

func NewChatHandler(chatService service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, logger: logger}
}

// Stream godoc
// @Summary Generate workouts for one chat turn
// @Description Streams status, workout_progress and complete (or error) events as text/event-stream.
// @Tags Chat
// @Accept json
// @Produce text/event-stream
// @Security BearerAuth
// @Param turn body domain.ChatTurnRequest true "Chat turn"
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 429 {object} gin.H "Daily message limit reached"
// @Router /workout-chat/stream [post]
func (h *ChatHandler) Stream(c *gin.Context) {
	var req domain.ChatTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	userID, ok := userObjectID(c)
	if !ok {
		return
	}

	sink := &sseSink{c: c}
	if err := h.chatService.StreamTurn(c.Request.Context(), userID, req, sink); err != nil {
		if sink.started {
			h.logger.Warn("Chat stream ended with error", zap.Error(err))
			return
		}
		writeServiceError(c, h.logger, err, "Failed to start chat turn.")
	}
}

// sseSink writes events to the response. Headers are committed on the first
// event, so errors before it can still be sent as JSON.
type sseSink struct {
	c       *gin.Context
	started bool
}

func (s *sseSink) Send(event string, payload any) error {
	if err := s.c.Request.Context().Err(); err != nil {
		return err
	}
	if !s.started {
		h := s.c.Writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.c.Status(http.StatusOK)
		s.started = true
	}
	before := len(s.c.Errors)
	s.c.SSEvent(event, payload)
	if len(s.c.Errors) > before {
		return s.c.Errors.Last().Err
	}
	s.c.Writer.Flush()
	return nil
}
