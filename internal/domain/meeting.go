package domain

import (
	"time"

	"github.com/google/uuid"
)

type MeetingStatus string

const (
	MeetingPlanned  MeetingStatus = "planned"
	MeetingOngoing  MeetingStatus = "ongoing"
	MeetingFinished MeetingStatus = "finished"
)

type ParticipantStatus string

const (
	ParticipantInvited  ParticipantStatus = "invited"
	ParticipantAccepted ParticipantStatus = "accepted"
	ParticipantDeclined ParticipantStatus = "declined"
	ParticipantPresent  ParticipantStatus = "present"
)

type Meeting struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	RoomName    string        `json:"room_name"`
	OrganizerID uuid.UUID     `json:"organizer_id"`
	StartsAt    time.Time     `json:"starts_at"`
	EndsAt      time.Time     `json:"ends_at"`
	Status      MeetingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

type MeetingParticipant struct {
	MeetingID int64             `json:"meeting_id"`
	UserID    uuid.UUID         `json:"user_id"`
	Status    ParticipantStatus `json:"status"`
}
