package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"douniyaconnect/internal/service"
	apperrors "douniyaconnect/pkg/errors"
	"douniyaconnect/pkg/logger"
)

type UserHandler struct {
	userService service.UserService
	log         logger.Logger
}

func NewUserHandler(userService service.UserService, log logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		log:         log,
	}
}

type CreateEmployeeRequest struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Position  string `json:"position"`
}

func (h *UserHandler) Me(c *gin.Context) {
	username := c.GetString("username")

	user, err := h.userService.GetByUsername(c.Request.Context(), username)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Search(c *gin.Context) {
	username := c.GetString("username")
	term := c.Query("q")

	contacts, err := h.userService.SearchContacts(c.Request.Context(), username, term)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, contacts)
}

func (h *UserHandler) CreateEmployee(c *gin.Context) {
	username := c.GetString("username")

	var req CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	employee, err := h.userService.CreateEmployee(c.Request.Context(), username, service.CreateEmployeeInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Position:  req.Position,
	})
	if err != nil {
		h.log.Warn("Employee invitation failed", "error", err, "requester", username)
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"employee":         employee,
		"invitation_token": employee.InvitationToken,
	})
}
