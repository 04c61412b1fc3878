package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"douniyaconnect/pkg/logger"
)

type Repositories struct {
	User         UserRepository
	Conversation ConversationRepository
	Message      MessageRepository
	Meeting      MeetingRepository
	Presence     PresenceRepository
	RateLimit    RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db, log),
		Conversation: NewConversationRepository(db, log),
		Message:      NewMessageRepository(db, log),
		Meeting:      NewMeetingRepository(db, log),
		Presence:     NewPresenceRepository(rdb, log),
		RateLimit:    NewRateLimitRepository(rdb, log),
	}
}
