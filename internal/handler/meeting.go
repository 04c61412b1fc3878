package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"douniyaconnect/internal/service"
	apperrors "douniyaconnect/pkg/errors"
	"douniyaconnect/pkg/logger"
)

type MeetingHandler struct {
	meetingService service.MeetingService
	log            logger.Logger
}

func NewMeetingHandler(meetingService service.MeetingService, log logger.Logger) *MeetingHandler {
	return &MeetingHandler{
		meetingService: meetingService,
		log:            log,
	}
}

type CreateMeetingRequest struct {
	Title          string      `json:"title" binding:"required"`
	Description    string      `json:"description"`
	StartsAt       time.Time   `json:"starts_at" binding:"required"`
	EndsAt         time.Time   `json:"ends_at" binding:"required"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

type RespondMeetingRequest struct {
	Accept bool `json:"accept"`
}

func (h *MeetingHandler) Create(c *gin.Context) {
	username := c.GetString("username")

	var req CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	meeting, err := h.meetingService.Create(c.Request.Context(), username, service.CreateMeetingInput{
		Title:          req.Title,
		Description:    req.Description,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		h.log.Warn("Failed to create meeting", "error", err, "username", username)
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, meeting)
}

func (h *MeetingHandler) List(c *gin.Context) {
	username := c.GetString("username")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	meetings, err := h.meetingService.GetMeetings(c.Request.Context(), username, limit, offset)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, meetings)
}

func (h *MeetingHandler) Respond(c *gin.Context) {
	username := c.GetString("username")

	meetingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting ID"})
		return
	}

	var req RespondMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.meetingService.Respond(c.Request.Context(), username, meetingID, req.Accept); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *MeetingHandler) JoinToken(c *gin.Context) {
	username := c.GetString("username")

	meetingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting ID"})
		return
	}

	token, err := h.meetingService.JoinToken(c.Request.Context(), username, meetingID)
	if err != nil {
		h.log.Warn("Failed to issue join token", "error", err, "username", username, "meeting_id", meetingID)
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, token)
}
