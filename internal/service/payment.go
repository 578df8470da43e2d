package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/editorial-bot/internal/apperror"
	"github.com/sakif/editorial-bot/internal/model"
	"github.com/sakif/editorial-bot/internal/payment"
	"github.com/sakif/editorial-bot/internal/repository"
)

// TariffCatalog resolves a tariff key to its price and credit count.
// *config.Config satisfies this.
type TariffCatalog interface {
	TariffByKey(key string) (model.Tariff, bool)
}

// Charge is a freshly created pending payment plus the checkout URL the
// user should be sent to.
type Charge struct {
	Token   string
	URL     string
	Amount  float64
	Credits int
}

// PaymentService drives the payment lifecycle: charge creation, status
// polling, idempotent completion and the reconciliation sweep.
type PaymentService struct {
	payments  repository.PaymentRepository
	provider  payment.Provider
	tariffs   TariffCatalog
	namespace string
	receiver  string
	logger    *slog.Logger
}

func NewPaymentService(
	payments repository.PaymentRepository,
	provider payment.Provider,
	tariffs TariffCatalog,
	namespace, receiver string,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		payments:  payments,
		provider:  provider,
		tariffs:   tariffs,
		namespace: namespace,
		receiver:  receiver,
		logger:    logger,
	}
}

// CreateCharge validates the tariff, persists a pending payment record and
// asks the provider for a checkout URL.
//
// The pending record is written before the provider call: if the call then
// fails the record stays pending forever, which is harmless — a charge the
// user never saw can never be paid, so the sweep will never complete it.
func (s *PaymentService) CreateCharge(ctx context.Context, userID int64, tariffKey string) (*Charge, error) {
	tariff, ok := s.tariffs.TariffByKey(tariffKey)
	if !ok {
		return nil, apperror.ValidationFailed("tariff",
			fmt.Sprintf("unknown tariff %q", tariffKey))
	}
	if s.receiver == "" {
		s.logger.Error("payment receiver wallet is not configured")
		return nil, apperror.Unavailable("payments are not configured")
	}

	token := payment.GenerateToken(s.namespace, userID, tariffKey)

	p := &model.Payment{
		Token:          token,
		UserID:         userID,
		Amount:         tariff.Price,
		CreditsGranted: tariff.Credits,
		Status:         model.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		s.logger.Error("failed to persist pending payment",
			slog.Int64("userId", userID),
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("persisting pending payment: %w", err)
	}

	url, err := s.provider.CreateCharge(ctx, payment.ChargeRequest{
		Token:  token,
		Amount: tariff.Price,
		Title:  tariff.Label,
	})
	if err != nil {
		s.logger.Error("provider charge creation failed",
			slog.Int64("userId", userID),
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		return nil, apperror.External("payment provider", err)
	}

	s.logger.Info("charge created",
		slog.Int64("userId", userID),
		slog.String("tariff", tariffKey),
		slog.String("token", token),
		slog.Float64("amount", tariff.Price),
	)

	return &Charge{
		Token:   token,
		URL:     url,
		Amount:  tariff.Price,
		Credits: tariff.Credits,
	}, nil
}

// GetByToken returns the local payment record for a token.
func (s *PaymentService) GetByToken(ctx context.Context, token string) (*model.Payment, error) {
	return s.payments.GetByToken(ctx, token)
}

// PollStatus asks the provider whether the charge behind token has been
// paid. Pure read — the payment record is never touched here.
func (s *PaymentService) PollStatus(ctx context.Context, token string) (bool, *payment.Operation, error) {
	ops, err := s.provider.ListOperations(ctx, token)
	if err != nil {
		return false, nil, apperror.External("payment provider", err)
	}

	for i := range ops {
		op := &ops[i]
		if op.Label == token &&
			op.Status == payment.OperationStatusSuccess &&
			op.Direction == payment.OperationDirectionIn {
			return true, op, nil
		}
	}
	return false, nil, nil
}

// Complete performs the idempotent pending → completed transition and the
// credit grant. Returns true only when this call did the transition; a
// duplicate confirmation (second tap, concurrent sweep) returns false with
// no side effects.
func (s *PaymentService) Complete(ctx context.Context, token string) (*model.Payment, bool, error) {
	p, completed, err := s.payments.Complete(ctx, token)
	if err != nil {
		s.logger.Error("payment completion failed",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		return nil, false, fmt.Errorf("completing payment: %w", err)
	}

	if completed {
		s.logger.Info("payment completed, credits granted",
			slog.String("token", token),
			slog.Int64("userId", p.UserID),
			slog.Int("creditsGranted", p.CreditsGranted),
		)
	}

	return p, completed, nil
}

// SweepPending polls the provider's recent operation history and completes
// every successful inbound operation whose label is one of our payment
// tokens. Safe to run on a timer and concurrently with user-triggered
// confirmations: both paths funnel into the same idempotent Complete.
// Returns the tokens this sweep actually completed.
func (s *PaymentService) SweepPending(ctx context.Context) ([]string, error) {
	ops, err := s.provider.ListOperations(ctx, "")
	if err != nil {
		return nil, apperror.External("payment provider", err)
	}

	var completed []string
	for _, op := range ops {
		if op.Status != payment.OperationStatusSuccess || op.Direction != payment.OperationDirectionIn {
			continue
		}
		if _, err := payment.ParseToken(s.namespace, op.Label); err != nil {
			// Unrelated wallet traffic.
			continue
		}

		_, done, err := s.Complete(ctx, op.Label)
		if err != nil {
			s.logger.Error("sweep failed to complete payment",
				slog.String("token", op.Label),
				slog.String("error", err.Error()),
			)
			continue
		}
		if done {
			completed = append(completed, op.Label)
		}
	}

	if len(completed) > 0 {
		s.logger.Info("reconciliation sweep completed payments",
			slog.Int("count", len(completed)),
		)
	}

	return completed, nil
}

// ListByStatus returns payments in the given status; empty means all.
func (s *PaymentService) ListByStatus(ctx context.Context, status string) ([]model.Payment, error) {
	return s.payments.ListByStatus(ctx, status)
}
