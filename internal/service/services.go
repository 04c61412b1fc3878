package service

import (
	"douniyaconnect/internal/config"
	"douniyaconnect/internal/repository"
	"douniyaconnect/pkg/logger"
)

type Services struct {
	Auth      AuthService
	User      UserService
	Chat      ChatService
	Meeting   MeetingService
	RateLimit RateLimitService
}

func NewServices(repos *repository.Repositories, notifier Notifier, cfg *config.Config, log logger.Logger) *Services {
	return &Services{
		Auth:      NewAuthService(repos.User, cfg.JWT, log),
		User:      NewUserService(repos.User, repos.Presence, log),
		Chat:      NewChatService(repos.Conversation, repos.Message, repos.User, repos.Presence, notifier, log),
		Meeting:   NewMeetingService(repos.Meeting, repos.User, cfg.LiveKit, log),
		RateLimit: NewRateLimitService(repos.RateLimit, cfg.RateLimit, log),
	}
}
