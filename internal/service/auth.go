package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"douniyaconnect/internal/config"
	"douniyaconnect/internal/domain"
	"douniyaconnect/internal/repository"
	apperrors "douniyaconnect/pkg/errors"
	"douniyaconnect/pkg/jwt"
	"douniyaconnect/pkg/logger"
)

type RegisterEnterpriseInput struct {
	Username       string
	Email          string
	Password       string
	CompanyName    string
	Sector         string
	RegistryNumber string
}

type RegisterIndividualInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Sector    string
	Position  string
}

type LoginResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthService interface {
	RegisterEnterprise(ctx context.Context, input RegisterEnterpriseInput) (*domain.User, error)
	RegisterIndividual(ctx context.Context, input RegisterIndividualInput) (*domain.User, error)
	Login(ctx context.Context, login, password string) (*LoginResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*domain.User, error)
}

type authService struct {
	userRepo   repository.UserRepository
	jwtCfg     config.JWTConfig
	accessMgr  *jwt.Manager
	refreshMgr *jwt.Manager
	log        logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		userRepo:   userRepo,
		jwtCfg:     jwtCfg,
		accessMgr:  jwt.NewManager(jwtCfg.AccessSecret, jwtCfg.Issuer),
		refreshMgr: jwt.NewManager(jwtCfg.RefreshSecret, jwtCfg.Issuer),
		log:        log,
	}
}

func (s *authService) RegisterEnterprise(ctx context.Context, input RegisterEnterpriseInput) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	companyName := strings.TrimSpace(input.CompanyName)
	if companyName == "" {
		return nil, fmt.Errorf("%w: company name is required", apperrors.ErrBadRequest)
	}

	user := &domain.User{
		ID:          uuid.New(),
		Username:    username,
		Email:       input.Email,
		Role:        domain.RoleEnterprise,
		CompanyName: &companyName,
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if input.Sector != "" {
		user.Sector = &input.Sector
	}
	if input.RegistryNumber != "" {
		user.RegistryNumber = &input.RegistryNumber
	}

	return s.register(ctx, user, input.Password)
}

func (s *authService) RegisterIndividual(ctx context.Context, input RegisterIndividualInput) (*domain.User, error) {
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("%w: first and last name are required", apperrors.ErrBadRequest)
	}

	user := &domain.User{
		ID:        uuid.New(),
		Username:  strings.TrimSpace(input.Username),
		Email:     input.Email,
		Role:      domain.RoleIndividual,
		FirstName: &firstName,
		LastName:  &lastName,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if input.Sector != "" {
		user.Sector = &input.Sector
	}
	if input.Position != "" {
		user.Position = &input.Position
	}

	return s.register(ctx, user, input.Password)
}

func (s *authService) register(ctx context.Context, user *domain.User, password string) (*domain.User, error) {
	if user.Username == "" {
		return nil, fmt.Errorf("%w: username is required", apperrors.ErrBadRequest)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", apperrors.ErrBadRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("Failed to hash password", "error", err)
		return nil, apperrors.ErrInternalServer
	}
	user.PasswordHash = string(hash)

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("User registered", "user_id", user.ID, "username", user.Username, "role", user.Role)

	user.PasswordHash = ""
	return user, nil
}

// Login accepts either the username or the email address.
func (s *authService) Login(ctx context.Context, login, password string) (*LoginResponse, error) {
	login = strings.TrimSpace(login)

	user, err := s.userRepo.GetByUsername(ctx, login)
	if err != nil {
		user, err = s.userRepo.GetByEmail(ctx, login)
	}
	if err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	access, refresh, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Info("User logged in", "user_id", user.ID, "username", user.Username)

	user.PasswordHash = ""
	return &LoginResponse{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, err := s.refreshMgr.Parse(refreshToken)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	session, err := s.userRepo.GetSessionByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return nil, apperrors.ErrInvalidToken
	}

	// Rotation: the presented token is single use.
	if err := s.userRepo.RevokeSession(ctx, session.ID, "rotated"); err != nil {
		return nil, err
	}

	access, refresh, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*domain.User, error) {
	claims, err := s.accessMgr.Parse(tokenString)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	if !user.IsActive {
		return nil, apperrors.ErrInvalidToken
	}

	return user, nil
}

func (s *authService) issueTokens(ctx context.Context, user *domain.User) (string, string, error) {
	access, err := s.accessMgr.Generate(user.ID, user.Username, string(user.Role), s.jwtCfg.AccessTTL)
	if err != nil {
		s.log.Error("Failed to generate access token", "error", err)
		return "", "", apperrors.ErrInternalServer
	}

	refresh, err := s.refreshMgr.Generate(user.ID, user.Username, string(user.Role), s.jwtCfg.RefreshTTL)
	if err != nil {
		s.log.Error("Failed to generate refresh token", "error", err)
		return "", "", apperrors.ErrInternalServer
	}

	session := &domain.UserSession{
		ID:               uuid.New(),
		UserID:           user.ID,
		RefreshTokenHash: hashToken(refresh),
		CreatedAt:        time.Now(),
		ExpiresAt:        time.Now().Add(s.jwtCfg.RefreshTTL),
	}
	if err := s.userRepo.CreateSession(ctx, session); err != nil {
		return "", "", err
	}

	return access, refresh, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
