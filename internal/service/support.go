package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/editorial-bot/internal/apperror"
	"github.com/sakif/editorial-bot/internal/model"
	"github.com/sakif/editorial-bot/internal/repository"
)

// MaxSupportMessageLength bounds a single support inquiry.
const MaxSupportMessageLength = 4000

// SupportService stores user inquiries and serves the operator inbox.
type SupportService struct {
	support repository.SupportRepository
	logger  *slog.Logger
}

func NewSupportService(support repository.SupportRepository, logger *slog.Logger) *SupportService {
	return &SupportService{
		support: support,
		logger:  logger,
	}
}

// Submit records a support inquiry from a user.
func (s *SupportService) Submit(ctx context.Context, userID int64, message string) (*model.SupportMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperror.ValidationFailed("message", "support message is required")
	}
	if len(message) > MaxSupportMessageLength {
		return nil, apperror.ValidationFailed("message",
			fmt.Sprintf("support message must be %d characters or less", MaxSupportMessageLength))
	}

	m := &model.SupportMessage{
		UserID:  userID,
		Message: message,
		Status:  model.SupportStatusNew,
	}
	if err := s.support.Create(ctx, m); err != nil {
		s.logger.Error("failed to store support message",
			slog.Int64("userId", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("storing support message: %w", err)
	}

	s.logger.Info("support message received",
		slog.String("id", m.ID),
		slog.Int64("userId", userID),
	)

	return m, nil
}

// Inbox lists inquiries, optionally filtered by status (empty means all).
func (s *SupportService) Inbox(ctx context.Context, status string) ([]model.SupportMessage, error) {
	if status != "" && status != model.SupportStatusNew && status != model.SupportStatusHandled {
		return nil, apperror.ValidationFailed("status",
			fmt.Sprintf("unknown support status %q", status))
	}
	return s.support.List(ctx, status)
}

// SetStatus marks an inquiry new or handled.
func (s *SupportService) SetStatus(ctx context.Context, id, status string) error {
	if status != model.SupportStatusNew && status != model.SupportStatusHandled {
		return apperror.ValidationFailed("status",
			fmt.Sprintf("unknown support status %q", status))
	}

	if err := s.support.SetStatus(ctx, id, status); err != nil {
		return err
	}

	s.logger.Info("support message status changed",
		slog.String("id", id),
		slog.String("status", status),
	)
	return nil
}
