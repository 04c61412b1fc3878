package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	IsGroup      bool        `json:"is_group"`
	CreatedBy    uuid.UUID   `json:"created_by"`
	Participants []uuid.UUID `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// PairKey builds the canonical key for a private conversation between two
// users. The unique index on conversations(pair_key) makes the
// one-private-conversation-per-pair invariant hold under concurrent creates.
func PairKey(a, b uuid.UUID) string {
	sa, sb := a.String(), b.String()
	if sa > sb {
		sa, sb = sb, sa
	}
	return sa + ":" + sb
}

type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
	MessageTypeFile  MessageType = "FILE"
	MessageTypeAudio MessageType = "AUDIO"
	MessageTypeVideo MessageType = "VIDEO"
)

// ParseMessageType rejects anything outside the known set; there is
// deliberately no silent default.
func ParseMessageType(s string) (MessageType, error) {
	switch MessageType(strings.ToUpper(strings.TrimSpace(s))) {
	case MessageTypeText:
		return MessageTypeText, nil
	case MessageTypeImage:
		return MessageTypeImage, nil
	case MessageTypeFile:
		return MessageTypeFile, nil
	case MessageTypeAudio:
		return MessageTypeAudio, nil
	case MessageTypeVideo:
		return MessageTypeVideo, nil
	default:
		return "", fmt.Errorf("unknown message type %q", s)
	}
}

type Message struct {
	ID              int64       `json:"id"`
	ConversationID  int64       `json:"conversation_id"`
	SenderID        uuid.UUID   `json:"sender_id"`
	Content         string      `json:"content"`
	Type            MessageType `json:"type"`
	FileURL         *string     `json:"file_url,omitempty"`
	FileName        *string     `json:"file_name,omitempty"`
	ParentMessageID *int64      `json:"parent_message_id,omitempty"`
	IsRead          bool        `json:"is_read"`
	IsEdited        bool        `json:"is_edited"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	ReadAt          *time.Time  `json:"read_at,omitempty"`
}

// MessageView is the message as returned to clients, with sender and parent
// context resolved.
type MessageView struct {
	Message
	SenderName           string  `json:"sender_name"`
	SenderAvatar         string  `json:"sender_avatar"`
	ParentMessageContent *string `json:"parent_message_content,omitempty"`
}

// ParticipantView is a conversation member as rendered in summaries.
type ParticipantView struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`
	Role     Role      `json:"role"`
	IsOnline bool      `json:"is_online"`
}

// ConversationSummary is the per-viewer projection of a conversation: for a
// private 1:1 the name and avatar are the other participant's, never the
// stored values. Computed at mapping time, never persisted.
type ConversationSummary struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	IsGroup      bool              `json:"is_group"`
	Avatar       string            `json:"avatar"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	LastMessage  *MessageView      `json:"last_message,omitempty"`
	UnreadCount  int64             `json:"unread_count"`
	Participants []ParticipantView `json:"participants"`
	IsOnline     bool              `json:"is_online"`
}
