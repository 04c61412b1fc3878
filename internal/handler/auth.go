package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"douniyaconnect/internal/service"
	apperrors "douniyaconnect/pkg/errors"
	"douniyaconnect/pkg/logger"
)

type AuthHandler struct {
	authService service.AuthService
	userService service.UserService
	log         logger.Logger
}

func NewAuthHandler(authService service.AuthService, userService service.UserService, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		log:         log,
	}
}

type RegisterEnterpriseRequest struct {
	Username       string `json:"username" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	CompanyName    string `json:"company_name" binding:"required"`
	Sector         string `json:"sector"`
	RegistryNumber string `json:"registry_number"`
}

type RegisterIndividualRequest struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Sector    string `json:"sector"`
	Position  string `json:"position"`
}

type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type AcceptInvitationRequest struct {
	Token    string `json:"token" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *AuthHandler) RegisterEnterprise(c *gin.Context) {
	var req RegisterEnterpriseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid registration request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.authService.RegisterEnterprise(c.Request.Context(), service.RegisterEnterpriseInput{
		Username:       req.Username,
		Email:          req.Email,
		Password:       req.Password,
		CompanyName:    req.CompanyName,
		Sector:         req.Sector,
		RegistryNumber: req.RegistryNumber,
	})
	if err != nil {
		h.log.Warn("Enterprise registration failed", "error", err, "email", req.Email)
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) RegisterIndividual(c *gin.Context) {
	var req RegisterIndividualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid registration request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.authService.RegisterIndividual(c.Request.Context(), service.RegisterIndividualInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Sector:    req.Sector,
		Position:  req.Position,
	})
	if err != nil {
		h.log.Warn("Individual registration failed", "error", err, "email", req.Email)
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		h.log.Warn("Login failed", "error", err, "login", req.Login)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *AuthHandler) AcceptInvitation(c *gin.Context) {
	var req AcceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	token, err := uuid.Parse(req.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invitation token"})
		return
	}

	user, err := h.userService.AcceptInvitation(c.Request.Context(), token, req.Username, req.Password)
	if err != nil {
		h.log.Warn("Invitation acceptance failed", "error", err)
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, user)
}
