package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventNewMessage     = "NEW_MESSAGE"
	EventUserTyping     = "USER_TYPING"
	EventUserStopTyping = "USER_STOP_TYPING"
	EventUserOnline     = "USER_ONLINE"
	EventUserOffline    = "USER_OFFLINE"
)

// ChatNotification is the payload pushed over the websocket. Message is only
// set for NEW_MESSAGE; typing and presence events are ephemeral and never
// stored.
type ChatNotification struct {
	Type           string       `json:"type"`
	ConversationID int64        `json:"conversation_id,omitempty"`
	Message        *MessageView `json:"message,omitempty"`
	UserID         uuid.UUID    `json:"user_id,omitempty"`
	Username       string       `json:"username,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
}
