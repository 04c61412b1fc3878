package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"douniyaconnect/internal/service"
	apperrors "douniyaconnect/pkg/errors"
	"douniyaconnect/pkg/logger"
)

type ChatHandler struct {
	chatService service.ChatService
	log         logger.Logger
}

func NewChatHandler(chatService service.ChatService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		log:         log,
	}
}

type CreateConversationRequest struct {
	Name           string      `json:"name"`
	IsGroup        bool        `json:"is_group"`
	ParticipantIDs []uuid.UUID `json:"participant_ids" binding:"required"`
}

type SendMessageRequest struct {
	Content         string `json:"content"`
	Type            string `json:"type" binding:"required"`
	FileURL         string `json:"file_url"`
	FileName        string `json:"file_name"`
	ParentMessageID *int64 `json:"parent_message_id"`
}

type MarkAsReadRequest struct {
	MessageIDs []int64 `json:"message_ids"`
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	username := c.GetString("username")

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	summary, err := h.chatService.CreateConversation(c.Request.Context(), username, req.Name, req.IsGroup, req.ParticipantIDs)
	if err != nil {
		h.log.Warn("Failed to create conversation", "error", err, "username", username)
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, summary)
}

func (h *ChatHandler) GetConversations(c *gin.Context) {
	username := c.GetString("username")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	summaries, err := h.chatService.GetConversations(c.Request.Context(), username, limit, offset)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summaries)
}

func (h *ChatHandler) SearchConversations(c *gin.Context) {
	username := c.GetString("username")
	term := c.Query("q")

	summaries, err := h.chatService.SearchConversations(c.Request.Context(), username, term)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summaries)
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	username := c.GetString("username")

	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.chatService.GetMessages(c.Request.Context(), username, conversationID, limit, offset)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, messages)
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	username := c.GetString("username")

	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	message, err := h.chatService.SendMessage(
		c.Request.Context(), username, conversationID,
		req.Content, req.Type, req.FileURL, req.FileName, req.ParentMessageID,
	)
	if err != nil {
		h.log.Warn("Failed to send message", "error", err, "username", username, "conversation_id", conversationID)
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, message)
}

// MarkAsRead marks the whole conversation read when message_ids is empty,
// otherwise only the listed messages.
func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	username := c.GetString("username")

	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	// An empty body means "mark everything read".
	var req MarkAsReadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
	}

	if err := h.chatService.MarkAsRead(c.Request.Context(), username, conversationID, req.MessageIDs); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
