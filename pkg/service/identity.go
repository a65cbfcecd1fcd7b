package service

import (
	"context"
	"time"

	"github.com/example/articleshop/pkg/apperror"
	"github.com/example/articleshop/pkg/models"
	"github.com/example/articleshop/pkg/repository"
	"go.uber.org/zap"
)

type IdentityService struct {
	users  repository.UserStore
	logger *zap.Logger
	now    func() time.Time
}

func NewIdentityService(users repository.UserStore, logger *zap.Logger) *IdentityService {
	return &IdentityService{users: users, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (s *IdentityService) RegisterUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	if err := validateStruct(in, ""); err != nil {
		return nil, err
	}

	user := &models.User{
		ID:                models.NewID(),
		ExternalSubjectID: in.ExternalSubjectID,
		Email:             in.Email,
		CreatedAt:         s.now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return user, nil
}

// FindBySubject looks the user up by exact identity-provider subject.
func (s *IdentityService) FindBySubject(ctx context.Context, subject string) (*models.User, error) {
	if subject == "" {
		return nil, apperror.ValidationFailed("externalSubjectId", "externalSubjectId is required")
	}
	return s.users.FindUserBySubject(ctx, subject)
}

func (s *IdentityService) GetUser(ctx context.Context, id string) (*models.User, error) {
	if err := requireID("userId", id); err != nil {
		return nil, err
	}
	return s.users.FindUser(ctx, id)
}

func (s *IdentityService) DeleteUser(ctx context.Context, id string) error {
	if err := requireID("userId", id); err != nil {
		return err
	}
	return s.users.DeleteUser(ctx, id)
}
