package service

import (
	"context"

	"go.uber.org/zap"

	"pharmacy-service/internal/model"
	"pharmacy-service/internal/repository"
	"pharmacy-service/pkg/apperror"
	"pharmacy-service/pkg/logger"
	"pharmacy-service/pkg/query"
)

type UserService struct {
	users repository.UserRepository
	log   *zap.Logger
}

func NewUserService(users repository.UserRepository, log *zap.Logger) *UserService {
	return &UserService{users: users, log: log}
}

// Me returns the caller's profile
func (s *UserService) Me(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	if user.IsDeleted {
		return nil, apperror.NotFound("User not found")
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, p query.Params) ([]model.User, query.Meta, error) {
	users, total, err := s.users.List(ctx, p)
	if err != nil {
		return nil, query.Meta{}, err
	}
	return users, query.NewMeta(p, total), nil
}

// SetBlocked blocks or unblocks a user. Admin accounts cannot be blocked.
func (s *UserService) SetBlocked(ctx context.Context, id uint, blocked bool) (*model.User, error) {
	log := logger.FromStdContext(ctx, s.log)

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	if user.IsDeleted {
		return nil, apperror.NotFound("User not found")
	}
	if user.Role == model.RoleAdmin && blocked {
		return nil, apperror.Forbidden("Admin accounts cannot be blocked")
	}

	user.IsBlocked = blocked
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	log.Info("User block status changed", zap.Uint("user_id", user.ID), zap.Bool("is_blocked", blocked))
	return user, nil
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil || exists {
		return err
	}
	admin := &model.User{
		Name:     "Admin",
		Email:    email,
		Password: password,
		Role:     model.RoleAdmin,
		Status:   model.UserStatusActive,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return err
	}
	s.log.Info("Seeded admin account", zap.String("email", email))
	return nil
}
