package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/editorial-bot/internal/apperror"
	"github.com/sakif/editorial-bot/internal/model"
	"github.com/sakif/editorial-bot/internal/repository"
)

// compile-time check that *PaymentStore implements repository.PaymentRepository
var _ repository.PaymentRepository = (*PaymentStore)(nil)

// PaymentStore owns payment lifecycle records keyed by their unique token.
type PaymentStore struct {
	conn *sql.DB
}

// Create persists a fresh pending payment. The UNIQUE constraint on token
// rejects any token reuse.
func (s *PaymentStore) Create(ctx context.Context, p *model.Payment) error {
	if p.Status == "" {
		p.Status = model.PaymentStatusPending
	}
	p.CreatedAt = time.Now()

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO payments (token, user_id, amount, credits_granted, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Token, p.UserID, p.Amount, p.CreditsGranted, p.Status, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting payment %s: %w", p.Token, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: inserting payment %s: %w", p.Token, err)
	}
	p.ID = id
	return nil
}

// GetByToken retrieves a payment record by its token.
func (s *PaymentStore) GetByToken(ctx context.Context, token string) (*model.Payment, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, token, user_id, amount, credits_granted, status, created_at, completed_at
		 FROM payments WHERE token = ?`,
		token,
	)
	return scanPayment(row, token)
}

// ListByStatus returns payments with the given status, oldest first.
// An empty status lists everything.
func (s *PaymentStore) ListByStatus(ctx context.Context, status string) ([]model.Payment, error) {
	query := `SELECT id, token, user_id, amount, credits_granted, status, created_at, completed_at
		 FROM payments`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		var p model.Payment
		var completedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.Token, &p.UserID, &p.Amount, &p.CreditsGranted,
			&p.Status, &p.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning payment row: %w", err)
		}
		if completedAt.Valid {
			t := completedAt.Time
			p.CompletedAt = &t
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating payment rows: %w", err)
	}
	return payments, nil
}

// Complete performs the idempotent pending → completed transition and the
// credit grant as ONE transaction.
//
// This is the commit point of the payment flow. The guarded UPDATE
// (WHERE token = ? AND status = 'pending') decides the winner under
// concurrent confirmation attempts — duplicate taps, the background sweep,
// or both at once. Everyone else sees zero affected rows and returns false
// without touching the ledger. A crash anywhere before tx.Commit rolls back
// both mutations, so a completed payment always has its credits granted and
// a pending one never does.
//
// The UPDATE must be the transaction's first statement: it takes the write
// lock up front, so concurrent completers queue on busy_timeout and the
// losers see zero affected rows. A read-first transaction would open on a
// snapshot and the losers would fail with SQLITE_BUSY instead of returning
// false.
func (s *PaymentStore) Complete(ctx context.Context, token string) (*model.Payment, bool, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: beginning completion tx for %s: %w", token, err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, completed_at = ?
		 WHERE token = ? AND status = ?`,
		model.PaymentStatusCompleted, now, token, model.PaymentStatusPending,
	)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: completing payment %s: %w", token, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: completing payment %s: %w", token, err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT id, token, user_id, amount, credits_granted, status, created_at, completed_at
		 FROM payments WHERE token = ?`,
		token,
	)
	payment, err := scanPayment(row, token)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Unknown token: a no-op, not a fault. The sweep hits labels
			// that match our format but belong to other deployments.
			return nil, false, nil
		}
		return nil, false, err
	}
	if rows == 0 {
		// Already completed — somebody beat us to it.
		return payment, false, nil
	}

	// Grant inside the same transaction: status flip and ledger credit are
	// indivisible.
	gres, err := tx.ExecContext(ctx,
		`UPDATE users SET credits = credits + ? WHERE user_id = ?`,
		payment.CreditsGranted, payment.UserID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: granting credits for payment %s: %w", token, err)
	}
	grows, err := gres.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: granting credits for payment %s: %w", token, err)
	}
	if grows == 0 {
		// Owner row is gone — roll everything back rather than complete a
		// payment whose credits went nowhere.
		return nil, false, fmt.Errorf("sqlite: payment %s references missing user %d", token, payment.UserID)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("sqlite: committing completion of %s: %w", token, err)
	}

	// The row was re-read after the UPDATE, so payment already carries the
	// completed status and timestamp.
	return payment, true, nil
}

func scanPayment(row *sql.Row, token string) (*model.Payment, error) {
	var p model.Payment
	var completedAt sql.NullTime
	err := row.Scan(&p.ID, &p.Token, &p.UserID, &p.Amount, &p.CreditsGranted,
		&p.Status, &p.CreatedAt, &completedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("payment", token)
		}
		return nil, fmt.Errorf("sqlite: getting payment %s: %w", token, err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}
	return &p, nil
}
