package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"pharmacy-service/internal/model"
	"pharmacy-service/internal/repository"
	"pharmacy-service/pkg/apperror"
	"pharmacy-service/pkg/jwtutil"
	"pharmacy-service/pkg/logger"
	"pharmacy-service/prometheus"
)

// AuthResult is returned by login and registration
type AuthResult struct {
	User         *model.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"-"`
}

// RegisterInput holds the fields of a new customer account
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthService issues and refreshes credentials
type AuthService struct {
	users repository.UserRepository
	jwt   *jwtutil.JWTUtil
	log   *zap.Logger
}

func NewAuthService(users repository.UserRepository, jwt *jwtutil.JWTUtil, log *zap.Logger) *AuthService {
	return &AuthService{users: users, jwt: jwt, log: log}
}

// Login checks credentials and issues an access and a refresh token
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	log := logger.FromStdContext(ctx, s.log)
	prometheus.RecordAuthAttempt()

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("Login for unknown email", zap.String("email", email))
			prometheus.RecordAuthError("user_not_found")
			return nil, apperror.Unauthorized("Invalid email or password")
		}
		return nil, err
	}

	if !user.PasswordMatches(password) {
		log.Warn("Invalid password", zap.String("email", email))
		prometheus.RecordAuthError("invalid_password")
		return nil, apperror.Unauthorized("Invalid email or password")
	}

	if user.IsBlocked || user.Status != model.UserStatusActive {
		log.Warn("Login for blocked account", zap.Uint("user_id", user.ID))
		prometheus.RecordAuthError("blocked")
		return nil, apperror.Forbidden("Your account is blocked")
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	prometheus.RecordAuthSuccess()
	log.Info("User logged in", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	return result, nil
}

// Register creates a customer account and logs it in
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	log := logger.FromStdContext(ctx, s.log)

	exists, err := s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperror.Conflict("User with this email already exists")
	}

	user := &model.User{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
		Role:     model.RoleCustomer,
		Status:   model.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("User with this email already exists")
		}
		return nil, err
	}

	log.Info("User registered", zap.Uint("user_id", user.ID), zap.String("email", user.Email))
	return s.issue(user)
}

// Refresh verifies a refresh token and issues a new access token
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	log := logger.FromStdContext(ctx, s.log)

	if refreshToken == "" {
		return "", apperror.Unauthorized("Refresh token is required")
	}
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		log.Warn("Invalid refresh token", zap.Error(err))
		prometheus.RecordAuthError("invalid_refresh_token")
		return "", apperror.Unauthorized("Invalid or expired refresh token")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperror.Unauthorized("User not found")
		}
		return "", err
	}
	if user.IsDeleted {
		return "", apperror.Unauthorized("User not found")
	}
	if user.IsBlocked {
		return "", apperror.Forbidden("Your account is blocked")
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return "", apperror.Internal(err, "Failed to generate token")
	}
	return token, nil
}

// ChangePassword replaces the password after checking the old one
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	log := logger.FromStdContext(ctx, s.log)

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return notFound(err, "User not found")
	}
	if !user.PasswordMatches(oldPassword) {
		return apperror.BadRequest("Old password is incorrect")
	}

	user.Password = newPassword
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	log.Info("Password changed", zap.Uint("user_id", user.ID))
	return nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	access, err := s.jwt.GenerateAccessToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, apperror.Internal(err, "Failed to generate token")
	}
	refresh, err := s.jwt.GenerateRefreshToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, apperror.Internal(err, "Failed to generate token")
	}
	return &AuthResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}
