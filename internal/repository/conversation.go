package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"douniyaconnect/internal/domain"
	apperrors "douniyaconnect/pkg/errors"
	"douniyaconnect/pkg/logger"
)

// ErrPairExists reports a concurrent create of the same private
// conversation; the caller re-reads the winner instead of failing.
var ErrPairExists = errors.New("private conversation for this pair already exists")

type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id int64) (*domain.Conversation, error)
	FindForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Conversation, error)
	FindPrivate(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error)
	IsParticipant(ctx context.Context, conversationID int64, userID uuid.UUID) (bool, error)
	SearchByName(ctx context.Context, userID uuid.UUID, term string) ([]*domain.Conversation, error)
	Touch(ctx context.Context, conversationID int64) error
}

type conversationRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewConversationRepository(db *pgxpool.Pool, log logger.Logger) ConversationRepository {
	return &conversationRepository{db: db, log: log}
}

// Create inserts the conversation and its participant set in one
// transaction. For a 2-party private conversation the canonical pair key is
// stored; the partial unique index turns a lost race into ErrPairExists.
func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var pairKey *string
	if !conv.IsGroup && len(conv.Participants) == 2 {
		key := domain.PairKey(conv.Participants[0], conv.Participants[1])
		pairKey = &key
	}

	now := time.Now()
	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (name, is_group, pair_key, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, created_at, updated_at
	`, conv.Name, conv.IsGroup, pairKey, conv.CreatedBy, now).
		Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrPairExists
		}
		r.log.Error("Failed to create conversation", "error", err)
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	for _, userID := range conv.Participants {
		if _, err := tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id)
			VALUES ($1, $2)
		`, conv.ID, userID); err != nil {
			r.log.Error("Failed to add participant", "error", err, "conversation_id", conv.ID, "user_id", userID)
			return fmt.Errorf("failed to add participant: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *conversationRepository) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	conv := &domain.Conversation{}
	err := r.db.QueryRow(ctx, `
		SELECT id, name, is_group, created_by, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`, id).Scan(&conv.ID, &conv.Name, &conv.IsGroup, &conv.CreatedBy, &conv.CreatedAt, &conv.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		r.log.Error("Failed to get conversation", "error", err, "conversation_id", id)
		return nil, err
	}

	conv.Participants, err = r.participants(ctx, id)
	if err != nil {
		return nil, err
	}

	return conv, nil
}

func (r *conversationRepository) participants(ctx context.Context, conversationID int64) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id FROM conversation_participants
		WHERE conversation_id = $1
		ORDER BY user_id
	`, conversationID)
	if err != nil {
		r.log.Error("Failed to load participants", "error", err, "conversation_id", conversationID)
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *conversationRepository) scanConversations(ctx context.Context, rows pgx.Rows) ([]*domain.Conversation, error) {
	defer rows.Close()

	var convs []*domain.Conversation
	for rows.Next() {
		conv := &domain.Conversation{}
		err := rows.Scan(&conv.ID, &conv.Name, &conv.IsGroup, &conv.CreatedBy, &conv.CreatedAt, &conv.UpdatedAt)
		if err != nil {
			r.log.Error("Failed to scan conversation", "error", err)
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, conv := range convs {
		var err error
		conv.Participants, err = r.participants(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
	}

	return convs, nil
}

func (r *conversationRepository) FindForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Conversation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.name, c.is_group, c.created_by, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE cp.user_id = $1
		ORDER BY c.updated_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to list conversations", "error", err, "user_id", userID)
		return nil, err
	}

	return r.scanConversations(ctx, rows)
}

func (r *conversationRepository) FindPrivate(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		SELECT id FROM conversations
		WHERE is_group = FALSE AND pair_key = $1
	`, domain.PairKey(userA, userB)).Scan(&id)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("Failed to find private conversation", "error", err)
		return nil, err
	}

	return r.GetByID(ctx, id)
}

func (r *conversationRepository) IsParticipant(ctx context.Context, conversationID int64, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		)
	`, conversationID, userID).Scan(&exists)

	if err != nil {
		r.log.Error("Failed to check participant", "error", err, "conversation_id", conversationID)
		return false, err
	}

	return exists, nil
}

func (r *conversationRepository) SearchByName(ctx context.Context, userID uuid.UUID, term string) ([]*domain.Conversation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.name, c.is_group, c.created_by, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE cp.user_id = $1 AND c.name ILIKE '%' || $2 || '%'
		ORDER BY c.updated_at DESC
	`, userID, term)
	if err != nil {
		r.log.Error("Failed to search conversations", "error", err, "user_id", userID)
		return nil, err
	}

	return r.scanConversations(ctx, rows)
}

func (r *conversationRepository) Touch(ctx context.Context, conversationID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations SET updated_at = NOW() WHERE id = $1
	`, conversationID)
	if err != nil {
		r.log.Error("Failed to touch conversation", "error", err, "conversation_id", conversationID)
	}
	return err
}
