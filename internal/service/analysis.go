package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/editorial-bot/internal/apperror"
	"github.com/sakif/editorial-bot/internal/completion"
	"github.com/sakif/editorial-bot/internal/gate"
	"github.com/sakif/editorial-bot/internal/model"
	"github.com/sakif/editorial-bot/internal/repository"
)

// RoleCatalog resolves an analysis role key to its prompt. *config.Config
// satisfies this.
type RoleCatalog interface {
	RoleByKey(key string) (model.Role, bool)
}

// AnalysisResult is the outcome of one billed analysis.
type AnalysisResult struct {
	Text       string
	TokensUsed int
	// Remaining is the balance after the spend, best effort — a failed
	// re-read reports the pre-spend balance minus one.
	Remaining int
}

// AnalysisService orchestrates the analysis flow: gate, balance check,
// completion call, atomic spend, audit record.
type AnalysisService struct {
	users     repository.UserRepository
	analyses  repository.AnalysisRepository
	gate      *gate.Gate
	completer completion.Completer
	roles     RoleCatalog
	logger    *slog.Logger
}

func NewAnalysisService(
	users repository.UserRepository,
	analyses repository.AnalysisRepository,
	g *gate.Gate,
	completer completion.Completer,
	roles RoleCatalog,
	logger *slog.Logger,
) *AnalysisService {
	return &AnalysisService{
		users:     users,
		analyses:  analyses,
		gate:      g,
		completer: completer,
		roles:     roles,
		logger:    logger,
	}
}

var errEmptyCompletion = errors.New("completion returned an empty result")

// Analyze runs one analysis for the user under the given role.
//
// The ordering is deliberate: the gate and the balance read happen before
// the long completion call, and the credit is spent only after a non-empty
// result arrives. No lock is held across the completion call, which opens a
// narrow race: the balance can reach 0 between the read and the spend. In
// that case the result is discarded and an error returned — the user loses
// a completion call but never a credit, and no unbilled analysis is ever
// delivered. The anomaly is logged at Error level for manual follow-up.
func (s *AnalysisService) Analyze(ctx context.Context, userID int64, roleKey, text string) (*AnalysisResult, error) {
	role, ok := s.roles.RoleByKey(roleKey)
	if !ok {
		return nil, apperror.ValidationFailed("role",
			fmt.Sprintf("unknown analysis role %q", roleKey))
	}

	if err := s.gate.Validate(text); err != nil {
		return nil, err
	}

	balance, err := s.users.Credits(ctx, userID)
	if err != nil {
		s.logger.Error("failed to read balance before analysis",
			slog.Int64("userId", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("reading balance: %w", err)
	}
	if balance < 1 {
		return nil, apperror.InsufficientCredits(balance)
	}

	result, err := s.completer.Complete(ctx, role.Prompt, text)
	if err != nil {
		s.logger.Error("completion call failed",
			slog.Int64("userId", userID),
			slog.String("role", roleKey),
			slog.String("error", err.Error()),
		)
		return nil, apperror.External("completion", err)
	}
	if result.Text == "" {
		s.logger.Warn("completion returned empty result",
			slog.Int64("userId", userID),
			slog.String("role", roleKey),
		)
		return nil, apperror.External("completion", errEmptyCompletion)
	}

	spent, err := s.users.SpendCredit(ctx, userID)
	if err != nil {
		s.logger.Error("failed to spend credit",
			slog.Int64("userId", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("spending credit: %w", err)
	}
	if !spent {
		// The balance raced to 0 while the completion call was in flight.
		// Discard the result rather than deliver an unbilled analysis.
		s.logger.Error("completion succeeded but credit spend failed, result discarded",
			slog.Int64("userId", userID),
			slog.String("role", roleKey),
			slog.Int("balanceBeforeCall", balance),
		)
		return nil, &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: "could not bill the analysis; no credit was spent",
		}
	}

	record := &model.Analysis{
		UserID:     userID,
		Role:       roleKey,
		TextLength: len(text),
		TokensUsed: result.TokensUsed,
	}
	if err := s.analyses.Create(ctx, record); err != nil {
		// The credit is spent and the result is good — deliver it anyway,
		// the audit trail just has a hole.
		s.logger.Error("failed to persist analysis record",
			slog.Int64("userId", userID),
			slog.String("error", err.Error()),
		)
	}

	remaining, err := s.users.Credits(ctx, userID)
	if err != nil {
		remaining = balance - 1
	}

	s.logger.Info("analysis completed",
		slog.Int64("userId", userID),
		slog.String("role", roleKey),
		slog.Int("textLength", len(text)),
		slog.Int("tokensUsed", result.TokensUsed),
		slog.Int("remaining", remaining),
	)

	return &AnalysisResult{
		Text:       result.Text,
		TokensUsed: result.TokensUsed,
		Remaining:  remaining,
	}, nil
}

// History returns the user's recent analysis records.
func (s *AnalysisService) History(ctx context.Context, userID int64, limit int) ([]model.Analysis, error) {
	return s.analyses.ListByUser(ctx, userID, limit)
}
