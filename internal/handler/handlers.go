package handler

import (
	"douniyaconnect/internal/config"
	"douniyaconnect/internal/repository"
	"douniyaconnect/internal/service"
	"douniyaconnect/internal/ws"
	"douniyaconnect/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	User      *UserHandler
	Chat      *ChatHandler
	Meeting   *MeetingHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, repos *repository.Repositories, hub *ws.Hub, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(cfg),
		Auth:      NewAuthHandler(services.Auth, services.User, log),
		User:      NewUserHandler(services.User, log),
		Chat:      NewChatHandler(services.Chat, log),
		Meeting:   NewMeetingHandler(services.Meeting, log),
		WebSocket: NewWebSocketHandler(hub, services.Auth, services.Chat, repos.Presence, log),
	}
}
