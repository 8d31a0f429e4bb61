package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Shivanand-hulikatti/event-registration/internal/metrics"
	"github.com/Shivanand-hulikatti/event-registration/internal/model"
	"github.com/Shivanand-hulikatti/event-registration/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	msgNameEmailRequired = "Name and email are required"
	msgEmailInvalid      = "Valid email is required"
	msgUserExists        = "User already exists"
)

// UserService creates users. There is no update or delete.
type UserService struct {
	users    UserStore
	logger   zerolog.Logger
	validate *validator.Validate
}

// NewUserService constructs a UserService.
func NewUserService(users UserStore, logger zerolog.Logger) *UserService {
	return &UserService{
		users:    users,
		logger:   logger.With().Str("component", "users").Logger(),
		validate: newValidator(),
	}
}

// RegisterUser creates a user identified by email. Emails are compared
// trimmed and lower-cased.
func (s *UserService) RegisterUser(ctx context.Context, req model.RegisterUserRequest) (*model.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.validate.Struct(req); err != nil {
		return nil, validation(firstInvalidField(err), msgNameEmailRequired)
	}
	if err := s.validate.Var(req.Email, "email"); err != nil {
		return nil, validation("email", msgEmailInvalid)
	}

	_, err := s.users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return nil, conflict(msgUserExists, repository.ErrEmailTaken)
	case !errors.Is(err, repository.ErrNotFound):
		logFor(ctx, s.logger).Error().Err(err).Str("component", "users").Msg("lookup user failed")
		return nil, internal("User registration failed", err)
	}

	user, err := s.users.Create(ctx, req.Name, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, conflict(msgUserExists, err)
		}
		logFor(ctx, s.logger).Error().Err(err).Str("component", "users").Msg("create user failed")
		return nil, internal("User registration failed", err)
	}
	metrics.UsersCreated.Inc()
	return user, nil
}
