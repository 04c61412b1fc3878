package service

import (
	"context"
	"time"

	"douniyaconnect/internal/config"
	"douniyaconnect/internal/repository"
	"douniyaconnect/pkg/logger"
)

type RateLimitService interface {
	// Allow reports whether the caller identified by key may proceed and
	// how many requests remain in the current window.
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
	Limit() int
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	requests      int
	window        time.Duration
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, cfg config.RateLimitConfig, log logger.Logger) RateLimitService {
	requests := cfg.Requests
	if requests <= 0 {
		requests = 100
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}

	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		requests:      requests,
		window:        window,
		log:           log,
	}
}

func (s *rateLimitService) Limit() int {
	return s.requests
}

func (s *rateLimitService) Allow(ctx context.Context, key string) (bool, int, error) {
	allowed, err := s.rateLimitRepo.CheckLimit(ctx, key, s.requests, s.window)
	if err != nil {
		return false, 0, err
	}
	if !allowed {
		return false, 0, nil
	}

	count, err := s.rateLimitRepo.Increment(ctx, key, s.window)
	if err != nil {
		// Counting failed; let the request through rather than block on Redis.
		s.log.Error("Rate limit increment failed", "error", err, "key", key)
	}

	remaining := s.requests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, nil
}
