package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-orz/orz"
	"github.com/google/uuid"
	"github.com/vendops/vendwatch/internal/models"
	"github.com/vendops/vendwatch/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrUserNotFound = orz.NewError(404, "用户不存在")

// UserService 通知目标用户管理
type UserService struct {
	logger *zap.Logger
	*repo.UserRepo
	*orz.Service
}

func NewUserService(logger *zap.Logger, db *gorm.DB) *UserService {
	return &UserService{
		logger:   logger,
		Service:  orz.NewService(db),
		UserRepo: repo.NewUserRepo(db),
	}
}

type UserRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Email      string `json:"email" validate:"omitempty,email"`
	ChatTarget string `json:"chatTarget" validate:"max=100"`
	IsAdmin    bool   `json:"isAdmin"`
}

func (s *UserService) CreateUser(ctx context.Context, req *UserRequest) (*models.User, error) {
	user := &models.User{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Email:      req.Email,
		ChatTarget: req.ChatTarget,
		IsAdmin:    req.IsAdmin,
		CreatedAt:  time.Now().UnixMilli(),
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, id string, req *UserRequest) (*models.User, error) {
	user, err := s.UserRepo.FindById(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user.Name = req.Name
	user.Email = req.Email
	user.ChatTarget = req.ChatTarget
	user.IsAdmin = req.IsAdmin
	if err := s.UserRepo.Save(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	return s.UserRepo.DeleteById(ctx, id)
}
