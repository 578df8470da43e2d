// Package service contains the business logic layer: user lifecycle, the
// analysis orchestrator, payment reconciliation and the support inbox.
//
// Services accept primitives and return domain models and apperror values;
// they know nothing about HTTP. Handlers translate both directions. Every
// service takes its repositories as interfaces so tests can substitute
// in-memory mocks.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/editorial-bot/internal/model"
	"github.com/sakif/editorial-bot/internal/repository"
)

// UserService handles user lifecycle and balance reads.
type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger,
	}
}

// Ensure creates the user on first contact (with the signup credit) and
// refreshes display metadata afterwards. Returns true when the user is new.
// Called for every inbound event, so it must stay cheap on the hot path.
func (s *UserService) Ensure(ctx context.Context, user *model.User) (bool, error) {
	created, err := s.users.Ensure(ctx, user)
	if err != nil {
		s.logger.Error("failed to ensure user",
			slog.Int64("userId", user.ID),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("ensuring user: %w", err)
	}

	if created {
		s.logger.Info("new user registered",
			slog.Int64("userId", user.ID),
			slog.String("username", user.Username),
			slog.Int("signupCredits", repository.SignupCredits),
		)
	}

	return created, nil
}

// Balance returns the user's current credit balance. A user the store has
// never seen reads as 0.
func (s *UserService) Balance(ctx context.Context, userID int64) (int, error) {
	balance, err := s.users.Credits(ctx, userID)
	if err != nil {
		s.logger.Error("failed to read balance",
			slog.Int64("userId", userID),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("reading balance: %w", err)
	}
	return balance, nil
}

// Touch stamps the user's last activity. Failures are logged and swallowed —
// an activity timestamp is never worth failing a user event over.
func (s *UserService) Touch(ctx context.Context, userID int64) {
	if err := s.users.TouchActivity(ctx, userID); err != nil {
		s.logger.Warn("failed to stamp activity",
			slog.Int64("userId", userID),
			slog.String("error", err.Error()),
		)
	}
}

// Get returns the full user row.
func (s *UserService) Get(ctx context.Context, userID int64) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}
