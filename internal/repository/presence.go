package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"douniyaconnect/pkg/logger"
)

// Presence TTL: a connected client refreshes its key on every ping cycle,
// so a crashed connection goes offline within this window.
const presenceTTL = 90 * time.Second

type PresenceRepository interface {
	SetOnline(ctx context.Context, username string) error
	Refresh(ctx context.Context, username string) error
	SetOffline(ctx context.Context, username string) error
	IsOnline(ctx context.Context, username string) (bool, error)
}

type presenceRepository struct {
	rdb *redis.Client
	log logger.Logger
}

func NewPresenceRepository(rdb *redis.Client, log logger.Logger) PresenceRepository {
	return &presenceRepository{rdb: rdb, log: log}
}

func presenceKey(username string) string {
	return "presence:user:" + username
}

func (r *presenceRepository) SetOnline(ctx context.Context, username string) error {
	err := r.rdb.Set(ctx, presenceKey(username), "1", presenceTTL).Err()
	if err != nil {
		r.log.Error("Failed to set presence", "error", err, "username", username)
	}
	return err
}

func (r *presenceRepository) Refresh(ctx context.Context, username string) error {
	err := r.rdb.Expire(ctx, presenceKey(username), presenceTTL).Err()
	if err != nil {
		r.log.Warn("Failed to refresh presence", "error", err, "username", username)
	}
	return err
}

func (r *presenceRepository) SetOffline(ctx context.Context, username string) error {
	err := r.rdb.Del(ctx, presenceKey(username)).Err()
	if err != nil {
		r.log.Warn("Failed to clear presence", "error", err, "username", username)
	}
	return err
}

func (r *presenceRepository) IsOnline(ctx context.Context, username string) (bool, error) {
	n, err := r.rdb.Exists(ctx, presenceKey(username)).Result()
	if err != nil {
		r.log.Error("Failed to check presence", "error", err, "username", username)
		return false, err
	}
	return n > 0, nil
}
