package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"douniyaconnect/internal/domain"
	"douniyaconnect/internal/repository"
	apperrors "douniyaconnect/pkg/errors"
	"douniyaconnect/pkg/logger"
)

type CreateEmployeeInput struct {
	Email     string
	FirstName string
	LastName  string
	Position  string
}

// ContactView is the directory entry shown in search results.
type ContactView struct {
	ID       uuid.UUID   `json:"id"`
	Username string      `json:"username"`
	Name     string      `json:"name"`
	Avatar   string      `json:"avatar"`
	Role     domain.Role `json:"role"`
	Sector   *string     `json:"sector,omitempty"`
	IsOnline bool        `json:"is_online"`
}

type UserService interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	SearchContacts(ctx context.Context, requester, term string) ([]*ContactView, error)
	CreateEmployee(ctx context.Context, requester string, input CreateEmployeeInput) (*domain.User, error)
	AcceptInvitation(ctx context.Context, token uuid.UUID, username, password string) (*domain.User, error)
}

type userService struct {
	userRepo     repository.UserRepository
	presenceRepo repository.PresenceRepository
	log          logger.Logger
}

func NewUserService(userRepo repository.UserRepository, presenceRepo repository.PresenceRepository, log logger.Logger) UserService {
	return &userService{userRepo: userRepo, presenceRepo: presenceRepo, log: log}
}

func (s *userService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) SearchContacts(ctx context.Context, requester, term string) ([]*ContactView, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []*ContactView{}, nil
	}

	users, err := s.userRepo.SearchByName(ctx, term, 25)
	if err != nil {
		return nil, err
	}

	contacts := make([]*ContactView, 0, len(users))
	for _, user := range users {
		if user.Username == requester {
			continue
		}

		online, err := s.presenceRepo.IsOnline(ctx, user.Username)
		if err != nil {
			s.log.Warn("Failed to check presence", "error", err, "username", user.Username)
		}

		name := user.DisplayName()
		contacts = append(contacts, &ContactView{
			ID:       user.ID,
			Username: user.Username,
			Name:     name,
			Avatar:   domain.Initials(name),
			Role:     user.Role,
			Sector:   user.Sector,
			IsOnline: online,
		})
	}

	return contacts, nil
}

// CreateEmployee provisions an inactive employee account tied to the
// requesting enterprise and returns it with the invitation token set.
// The account cannot log in until AcceptInvitation completes it.
func (s *userService) CreateEmployee(ctx context.Context, requester string, input CreateEmployeeInput) (*domain.User, error) {
	enterprise, err := s.userRepo.GetByUsername(ctx, requester)
	if err != nil {
		return nil, err
	}
	if enterprise.Role != domain.RoleEnterprise {
		return nil, fmt.Errorf("%w: only enterprise accounts can invite employees", apperrors.ErrForbidden)
	}

	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("%w: first and last name are required", apperrors.ErrBadRequest)
	}

	token := uuid.New()
	employee := &domain.User{
		ID:              uuid.New(),
		Username:        "invited-" + token.String()[:8],
		Email:           input.Email,
		Role:            domain.RoleEmployee,
		FirstName:       &firstName,
		LastName:        &lastName,
		EnterpriseID:    &enterprise.ID,
		InvitationToken: &token,
		IsActive:        false,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if input.Position != "" {
		employee.Position = &input.Position
	}

	if err := s.userRepo.Create(ctx, employee); err != nil {
		return nil, err
	}

	s.log.Info("Employee invited", "enterprise_id", enterprise.ID, "employee_id", employee.ID, "email", employee.Email)
	return employee, nil
}

func (s *userService) AcceptInvitation(ctx context.Context, token uuid.UUID, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", apperrors.ErrBadRequest)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", apperrors.ErrBadRequest)
	}

	employee, err := s.userRepo.GetByInvitationToken(ctx, token)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("Failed to hash password", "error", err)
		return nil, apperrors.ErrInternalServer
	}

	employee.Username = username
	employee.PasswordHash = string(hash)
	employee.InvitationToken = nil
	employee.IsActive = true

	if err := s.userRepo.Update(ctx, employee); err != nil {
		return nil, err
	}

	s.log.Info("Invitation accepted", "employee_id", employee.ID, "username", employee.Username)

	employee.PasswordHash = ""
	return employee, nil
}
