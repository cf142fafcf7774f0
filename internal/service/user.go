package service

import (
	"context"

	"go.uber.org/zap"

	"taskmanager/internal/apperr"
	"taskmanager/internal/models"
	"taskmanager/internal/policy"
	"taskmanager/internal/repository"
	"taskmanager/pkg/logger"
)

// UserService backs the assignee picker: admins may assign to anyone, so
// they see everyone; regular users only ever see themselves.
type UserService struct {
	users repository.UserStore
}

func NewUserService(users repository.UserStore) *UserService {
	return &UserService{users: users}
}

func (s *UserService) List(ctx context.Context, req policy.Requester) ([]models.User, error) {
	if !req.IsAdmin() {
		u, err := s.users.FindByID(ctx, req.ID)
		if err != nil {
			logger.ErrorLogger.Error("Error fetching user", zap.Int("user_id", req.ID), zap.Error(err))
			return nil, apperr.Internal("Error fetching users", err)
		}
		return []models.User{u}, nil
	}
	users, err := s.users.List(ctx)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching users", zap.Error(err))
		return nil, apperr.Internal("Error fetching users", err)
	}
	return users, nil
}
