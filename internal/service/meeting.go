package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"

	"douniyaconnect/internal/config"
	"douniyaconnect/internal/domain"
	"douniyaconnect/internal/repository"
	apperrors "douniyaconnect/pkg/errors"
	"douniyaconnect/pkg/logger"
)

type CreateMeetingInput struct {
	Title          string
	Description    string
	StartsAt       time.Time
	EndsAt         time.Time
	ParticipantIDs []uuid.UUID
}

type JoinTokenResponse struct {
	Token    string `json:"token"`
	URL      string `json:"url"`
	RoomName string `json:"room_name"`
}

type MeetingService interface {
	Create(ctx context.Context, username string, input CreateMeetingInput) (*domain.Meeting, error)
	GetMeetings(ctx context.Context, username string, limit, offset int) ([]*domain.Meeting, error)
	Respond(ctx context.Context, username string, meetingID int64, accept bool) error
	JoinToken(ctx context.Context, username string, meetingID int64) (*JoinTokenResponse, error)
}

type meetingService struct {
	meetingRepo repository.MeetingRepository
	userRepo    repository.UserRepository
	cfg         config.LiveKitConfig
	log         logger.Logger
}

func NewMeetingService(meetingRepo repository.MeetingRepository, userRepo repository.UserRepository, cfg config.LiveKitConfig, log logger.Logger) MeetingService {
	return &meetingService{
		meetingRepo: meetingRepo,
		userRepo:    userRepo,
		cfg:         cfg,
		log:         log,
	}
}

func (s *meetingService) Create(ctx context.Context, username string, input CreateMeetingInput) (*domain.Meeting, error) {
	organizer, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrBadRequest)
	}
	if !input.EndsAt.After(input.StartsAt) {
		return nil, fmt.Errorf("%w: meeting must end after it starts", apperrors.ErrBadRequest)
	}

	for _, id := range input.ParticipantIDs {
		if id == organizer.ID {
			continue
		}
		if _, err := s.userRepo.GetByID(ctx, id); err != nil {
			return nil, fmt.Errorf("%w: participant %s", apperrors.ErrUserNotFound, id)
		}
	}

	meeting := &domain.Meeting{
		Title:       title,
		Description: input.Description,
		RoomName:    "meeting-" + uuid.NewString(),
		OrganizerID: organizer.ID,
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
		Status:      domain.MeetingPlanned,
	}

	if err := s.meetingRepo.Create(ctx, meeting, input.ParticipantIDs); err != nil {
		return nil, err
	}

	s.log.Info("Meeting created", "meeting_id", meeting.ID, "organizer", username, "participants", len(input.ParticipantIDs))
	return meeting, nil
}

func (s *meetingService) GetMeetings(ctx context.Context, username string, limit, offset int) ([]*domain.Meeting, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.meetingRepo.FindForUser(ctx, user.ID, limit, offset)
}

func (s *meetingService) Respond(ctx context.Context, username string, meetingID int64, accept bool) error {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	if _, err := s.meetingRepo.GetByID(ctx, meetingID); err != nil {
		return err
	}

	status := domain.ParticipantDeclined
	if accept {
		status = domain.ParticipantAccepted
	}

	return s.meetingRepo.SetParticipantStatus(ctx, meetingID, user.ID, status)
}

func (s *meetingService) JoinToken(ctx context.Context, username string, meetingID int64) (*JoinTokenResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	meeting, err := s.meetingRepo.GetByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	member, err := s.meetingRepo.IsParticipant(ctx, meetingID, user.ID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperrors.ErrForbidden
	}

	at := auth.NewAccessToken(s.cfg.APIKey, s.cfg.APISecret)
	canPublish := true
	canSubscribe := true
	grant := &auth.VideoGrant{
		RoomJoin:     true,
		Room:         meeting.RoomName,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}

	at.AddGrant(grant).
		SetIdentity(user.ID.String()).
		SetName(user.DisplayName()).
		SetValidFor(time.Hour)

	token, err := at.ToJWT()
	if err != nil {
		s.log.Error("Failed to generate LiveKit token", "error", err, "meeting_id", meetingID)
		return nil, apperrors.ErrInternalServer
	}

	if err := s.meetingRepo.SetParticipantStatus(ctx, meetingID, user.ID, domain.ParticipantPresent); err != nil {
		s.log.Warn("Failed to mark participant present", "error", err, "meeting_id", meetingID)
	}

	return &JoinTokenResponse{Token: token, URL: s.cfg.URL, RoomName: meeting.RoomName}, nil
}
