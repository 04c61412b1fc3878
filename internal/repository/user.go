package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"douniyaconnect/internal/domain"
	apperrors "douniyaconnect/pkg/errors"
	"douniyaconnect/pkg/logger"
)

const userColumns = `id, username, email, password_hash, role,
	       company_name, sector, registry_number,
	       first_name, last_name, position,
	       enterprise_id, invitation_token, is_active, created_at, updated_at`

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByInvitationToken(ctx context.Context, token uuid.UUID) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	SearchByName(ctx context.Context, term string, limit int) ([]*domain.User, error)
	CreateSession(ctx context.Context, session *domain.UserSession) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.UserSession, error)
	RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) error
}

type userRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewUserRepository(db *pgxpool.Pool, log logger.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (
			id, username, email, password_hash, role,
			company_name, sector, registry_number,
			first_name, last_name, position,
			enterprise_id, invitation_token, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		user.ID, user.Username, strings.ToLower(user.Email), user.PasswordHash, user.Role,
		user.CompanyName, user.Sector, user.RegistryNumber,
		user.FirstName, user.LastName, user.Position,
		user.EnterpriseID, user.InvitationToken, user.IsActive, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.log.Warn("User already exists", "username", user.Username, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: username or email taken", apperrors.ErrUserAlreadyExists)
		}
		r.log.Error("Failed to create user", "error", err, "username", user.Username)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *userRepository) getBy(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	user := &domain.User{}
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role,
		&user.CompanyName, &user.Sector, &user.RegistryNumber,
		&user.FirstName, &user.LastName, &user.Position,
		&user.EnterpriseID, &user.InvitationToken, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		r.log.Error("Failed to get user", "error", err)
		return nil, err
	}

	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getBy(ctx, "username = $1", username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (r *userRepository) GetByInvitationToken(ctx context.Context, token uuid.UUID) (*domain.User, error) {
	return r.getBy(ctx, "invitation_token = $1", token)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET username = $2, email = $3, password_hash = $4,
		    company_name = $5, sector = $6, registry_number = $7,
		    first_name = $8, last_name = $9, position = $10,
		    invitation_token = $11, is_active = $12, updated_at = $13
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		user.ID, user.Username, strings.ToLower(user.Email), user.PasswordHash,
		user.CompanyName, user.Sector, user.RegistryNumber,
		user.FirstName, user.LastName, user.Position,
		user.InvitationToken, user.IsActive, time.Now(),
	).Scan(&user.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: username or email taken", apperrors.ErrUserAlreadyExists)
		}
		r.log.Error("Failed to update user", "error", err, "user_id", user.ID)
		return err
	}

	return nil
}

func (r *userRepository) SearchByName(ctx context.Context, term string, limit int) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_active = TRUE AND (
			company_name ILIKE '%' || $1 || '%'
			OR first_name || ' ' || last_name ILIKE '%' || $1 || '%'
			OR username ILIKE '%' || $1 || '%'
		)
		ORDER BY username
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, term, limit)
	if err != nil {
		r.log.Error("Failed to search users", "error", err)
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user := &domain.User{}
		err := rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role,
			&user.CompanyName, &user.Sector, &user.RegistryNumber,
			&user.FirstName, &user.LastName, &user.Position,
			&user.EnterpriseID, &user.InvitationToken, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan user", "error", err)
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (r *userRepository) CreateSession(ctx context.Context, session *domain.UserSession) error {
	query := `
		INSERT INTO user_sessions (id, user_id, refresh_token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query,
		session.ID, session.UserID, session.RefreshTokenHash, session.CreatedAt, session.ExpiresAt,
	)

	if err != nil {
		r.log.Error("Failed to create session", "error", err)
		return err
	}

	return nil
}

func (r *userRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.UserSession, error) {
	query := `
		SELECT id, user_id, refresh_token_hash, created_at, expires_at, revoked_at, revoked_reason
		FROM user_sessions
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`

	session := &domain.UserSession{}
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(
		&session.ID, &session.UserID, &session.RefreshTokenHash,
		&session.CreatedAt, &session.ExpiresAt, &session.RevokedAt, &session.RevokedReason,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrInvalidToken
		}
		r.log.Error("Failed to get session", "error", err)
		return nil, err
	}

	return session, nil
}

func (r *userRepository) RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) error {
	query := `
		UPDATE user_sessions
		SET revoked_at = NOW(), revoked_reason = $2
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, sessionID, reason)
	if err != nil {
		r.log.Error("Failed to revoke session", "error", err)
		return err
	}

	return nil
}
