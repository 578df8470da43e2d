// Package repository defines the storage interfaces the service layer
// programs against. The sqlite subpackage is the production implementation;
// tests substitute in-memory mocks.
package repository

import (
	"context"

	"github.com/sakif/editorial-bot/internal/model"
)

// SignupCredits is granted once, when a user row is first created.
// Preserved as-is from the original behavior; there is no rate limiting on
// identity creation, so this is a known (accepted) abuse vector — identity
// issuance belongs to the chat transport.
const SignupCredits = 1

// UserRepository owns user rows and the credit ledger.
//
// SpendCredit and GrantCredits are the ledger's only mutation primitives and
// must be atomic per user: two concurrent spends against a balance of 1 may
// succeed at most once, and the balance can never go negative.
type UserRepository interface {
	// Ensure creates the user with the signup credit if no row exists yet.
	// Returns true when a new row was created. Display metadata is refreshed
	// on existing rows.
	Ensure(ctx context.Context, user *model.User) (bool, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// Credits returns the current balance; a missing user reads as 0.
	Credits(ctx context.Context, id int64) (int, error)
	// SpendCredit atomically decrements the balance by 1 only when it is
	// positive. Returns whether the decrement happened.
	SpendCredit(ctx context.Context, id int64) (bool, error)
	// GrantCredits atomically adds amount (> 0) to the balance.
	GrantCredits(ctx context.Context, id int64, amount int) error
	// TouchActivity stamps last_activity; called on every inbound event.
	TouchActivity(ctx context.Context, id int64) error
}

// PaymentRepository owns payment lifecycle records keyed by token.
type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByToken(ctx context.Context, token string) (*model.Payment, error)
	ListByStatus(ctx context.Context, status string) ([]model.Payment, error)
	// Complete performs the idempotent pending → completed transition AND the
	// credit grant to the owning user as one atomic unit. Returns the payment
	// and true only if this call performed the transition; an unknown or
	// already-completed token is a no-op returning false.
	Complete(ctx context.Context, token string) (*model.Payment, bool, error)
}

// AnalysisRepository appends audit records for successfully billed analyses.
type AnalysisRepository interface {
	Create(ctx context.Context, a *model.Analysis) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.Analysis, error)
}

// SupportRepository stores user support inquiries for the operator inbox.
type SupportRepository interface {
	Create(ctx context.Context, m *model.SupportMessage) error
	List(ctx context.Context, status string) ([]model.SupportMessage, error)
	SetStatus(ctx context.Context, id, status string) error
}
