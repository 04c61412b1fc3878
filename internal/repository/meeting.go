package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"douniyaconnect/internal/domain"
	apperrors "douniyaconnect/pkg/errors"
	"douniyaconnect/pkg/logger"
)

type MeetingRepository interface {
	Create(ctx context.Context, meeting *domain.Meeting, participantIDs []uuid.UUID) error
	GetByID(ctx context.Context, id int64) (*domain.Meeting, error)
	FindForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Meeting, error)
	GetParticipants(ctx context.Context, meetingID int64) ([]*domain.MeetingParticipant, error)
	IsParticipant(ctx context.Context, meetingID int64, userID uuid.UUID) (bool, error)
	SetParticipantStatus(ctx context.Context, meetingID int64, userID uuid.UUID, status domain.ParticipantStatus) error
}

type meetingRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMeetingRepository(db *pgxpool.Pool, log logger.Logger) MeetingRepository {
	return &meetingRepository{db: db, log: log}
}

func (r *meetingRepository) Create(ctx context.Context, meeting *domain.Meeting, participantIDs []uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO meetings (title, description, room_name, organizer_id, starts_at, ends_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, meeting.Title, meeting.Description, meeting.RoomName, meeting.OrganizerID,
		meeting.StartsAt, meeting.EndsAt, meeting.Status,
	).Scan(&meeting.ID, &meeting.CreatedAt)

	if err != nil {
		r.log.Error("Failed to create meeting", "error", err)
		return fmt.Errorf("failed to create meeting: %w", err)
	}

	// Organizer is always an accepted participant.
	if _, err := tx.Exec(ctx, `
		INSERT INTO meeting_participants (meeting_id, user_id, status)
		VALUES ($1, $2, $3)
	`, meeting.ID, meeting.OrganizerID, domain.ParticipantAccepted); err != nil {
		return fmt.Errorf("failed to add organizer: %w", err)
	}

	for _, userID := range participantIDs {
		if userID == meeting.OrganizerID {
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO meeting_participants (meeting_id, user_id, status)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, meeting.ID, userID, domain.ParticipantInvited); err != nil {
			return fmt.Errorf("failed to add participant: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *meetingRepository) GetByID(ctx context.Context, id int64) (*domain.Meeting, error) {
	meeting := &domain.Meeting{}
	err := r.db.QueryRow(ctx, `
		SELECT id, title, description, room_name, organizer_id, starts_at, ends_at, status, created_at
		FROM meetings
		WHERE id = $1
	`, id).Scan(
		&meeting.ID, &meeting.Title, &meeting.Description, &meeting.RoomName,
		&meeting.OrganizerID, &meeting.StartsAt, &meeting.EndsAt, &meeting.Status, &meeting.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMeetingNotFound
		}
		r.log.Error("Failed to get meeting", "error", err, "meeting_id", id)
		return nil, err
	}

	return meeting, nil
}

func (r *meetingRepository) FindForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Meeting, error) {
	rows, err := r.db.Query(ctx, `
		SELECT m.id, m.title, m.description, m.room_name, m.organizer_id, m.starts_at, m.ends_at, m.status, m.created_at
		FROM meetings m
		JOIN meeting_participants mp ON mp.meeting_id = m.id
		WHERE mp.user_id = $1
		ORDER BY m.starts_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to list meetings", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	var meetings []*domain.Meeting
	for rows.Next() {
		meeting := &domain.Meeting{}
		err := rows.Scan(
			&meeting.ID, &meeting.Title, &meeting.Description, &meeting.RoomName,
			&meeting.OrganizerID, &meeting.StartsAt, &meeting.EndsAt, &meeting.Status, &meeting.CreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan meeting", "error", err)
			return nil, err
		}
		meetings = append(meetings, meeting)
	}

	return meetings, rows.Err()
}

func (r *meetingRepository) GetParticipants(ctx context.Context, meetingID int64) ([]*domain.MeetingParticipant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT meeting_id, user_id, status
		FROM meeting_participants
		WHERE meeting_id = $1
		ORDER BY user_id
	`, meetingID)
	if err != nil {
		r.log.Error("Failed to get meeting participants", "error", err, "meeting_id", meetingID)
		return nil, err
	}
	defer rows.Close()

	var participants []*domain.MeetingParticipant
	for rows.Next() {
		p := &domain.MeetingParticipant{}
		if err := rows.Scan(&p.MeetingID, &p.UserID, &p.Status); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

func (r *meetingRepository) IsParticipant(ctx context.Context, meetingID int64, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM meeting_participants
			WHERE meeting_id = $1 AND user_id = $2
		)
	`, meetingID, userID).Scan(&exists)

	if err != nil {
		r.log.Error("Failed to check meeting participant", "error", err, "meeting_id", meetingID)
		return false, err
	}

	return exists, nil
}

func (r *meetingRepository) SetParticipantStatus(ctx context.Context, meetingID int64, userID uuid.UUID, status domain.ParticipantStatus) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE meeting_participants
		SET status = $3
		WHERE meeting_id = $1 AND user_id = $2
	`, meetingID, userID, status)

	if err != nil {
		r.log.Error("Failed to set participant status", "error", err, "meeting_id", meetingID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
