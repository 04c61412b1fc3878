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

const messageColumns = `id, conversation_id, sender_id, content, type, file_url, file_name,
	       parent_message_id, is_read, is_edited, created_at, updated_at, read_at`

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id int64) (*domain.Message, error)
	PageByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]*domain.Message, error)
	CountUnread(ctx context.Context, conversationID int64, userID uuid.UUID) (int64, error)
	FindUnread(ctx context.Context, conversationID int64, userID uuid.UUID) ([]*domain.Message, error)
	MarkAllRead(ctx context.Context, conversationID int64, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, messageID int64, userID uuid.UUID) (bool, error)
	FindLast(ctx context.Context, conversationID int64) (*domain.Message, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (
			conversation_id, sender_id, content, type, file_url, file_name, parent_message_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		msg.ConversationID, msg.SenderID, msg.Content, msg.Type,
		msg.FileURL, msg.FileName, msg.ParentMessageID,
	).Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt)

	if err != nil {
		r.log.Error("Failed to create message", "error", err, "conversation_id", msg.ConversationID)
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	msg := &domain.Message{}
	err := r.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id).Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type,
		&msg.FileURL, &msg.FileName, &msg.ParentMessageID,
		&msg.IsRead, &msg.IsEdited, &msg.CreatedAt, &msg.UpdatedAt, &msg.ReadAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.log.Error("Failed to get message", "error", err, "message_id", id)
		return nil, err
	}

	return msg, nil
}

func (r *messageRepository) scanMessages(rows pgx.Rows) ([]*domain.Message, error) {
	defer rows.Close()

	var msgs []*domain.Message
	for rows.Next() {
		msg := &domain.Message{}
		err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type,
			&msg.FileURL, &msg.FileName, &msg.ParentMessageID,
			&msg.IsRead, &msg.IsEdited, &msg.CreatedAt, &msg.UpdatedAt, &msg.ReadAt,
		)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}

// PageByConversation returns messages newest first; id breaks created_at
// ties so pages stay stable.
func (r *messageRepository) PageByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		r.log.Error("Failed to page messages", "error", err, "conversation_id", conversationID)
		return nil, err
	}

	return r.scanMessages(rows)
}

func (r *messageRepository) CountUnread(ctx context.Context, conversationID int64, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE
	`, conversationID, userID).Scan(&count)

	if err != nil {
		r.log.Error("Failed to count unread", "error", err, "conversation_id", conversationID)
		return 0, err
	}

	return count, nil
}

func (r *messageRepository) FindUnread(ctx context.Context, conversationID int64, userID uuid.UUID) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE
		ORDER BY created_at ASC, id ASC
	`, conversationID, userID)
	if err != nil {
		r.log.Error("Failed to find unread", "error", err, "conversation_id", conversationID)
		return nil, err
	}

	return r.scanMessages(rows)
}

// MarkAllRead flips every unread message not sent by userID in a single
// statement, so a send landing mid-call is either fully counted or left for
// the next call, never half-updated.
func (r *messageRepository) MarkAllRead(ctx context.Context, conversationID int64, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE, read_at = NOW()
		WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE
	`, conversationID, userID)

	if err != nil {
		r.log.Error("Failed to mark all read", "error", err, "conversation_id", conversationID)
		return 0, err
	}

	return tag.RowsAffected(), nil
}

// MarkRead flips one message if it exists, was not sent by userID and is
// still unread. Returns false when nothing changed.
func (r *messageRepository) MarkRead(ctx context.Context, messageID int64, userID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE, read_at = NOW()
		WHERE id = $1 AND sender_id <> $2 AND is_read = FALSE
	`, messageID, userID)

	if err != nil {
		r.log.Error("Failed to mark read", "error", err, "message_id", messageID)
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func (r *messageRepository) FindLast(ctx context.Context, conversationID int64) (*domain.Message, error) {
	msg := &domain.Message{}
	err := r.db.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, conversationID).Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type,
		&msg.FileURL, &msg.FileName, &msg.ParentMessageID,
		&msg.IsRead, &msg.IsEdited, &msg.CreatedAt, &msg.UpdatedAt, &msg.ReadAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("Failed to find last message", "error", err, "conversation_id", conversationID)
		return nil, err
	}

	return msg, nil
}
