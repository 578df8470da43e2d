package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/editorial-bot/internal/apperror"
	"github.com/sakif/editorial-bot/internal/model"
	"github.com/sakif/editorial-bot/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore is the user table plus the credit ledger.
type UserStore struct {
	conn *sql.DB
}

// Ensure creates the user with the free signup credit on first contact.
//
// ON CONFLICT DO NOTHING makes this safe under concurrent first contacts
// from the same user (e.g. a double-tapped /start): exactly one insert wins
// and the signup credit is granted once. For existing users we refresh the
// display metadata, since usernames change.
func (s *UserStore) Ensure(ctx context.Context, user *model.User) (bool, error) {
	now := time.Now()

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (user_id, username, first_name, last_name, credits, created_at, last_activity)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		user.ID, user.Username, user.FirstName, user.LastName,
		repository.SignupCredits, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: ensuring user %d: %w", user.ID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: ensuring user %d: %w", user.ID, err)
	}

	if rows == 0 {
		// Existing user: keep metadata current, leave the ledger alone.
		_, err = s.conn.ExecContext(ctx,
			`UPDATE users SET username = ?, first_name = ?, last_name = ? WHERE user_id = ?`,
			user.Username, user.FirstName, user.LastName, user.ID,
		)
		if err != nil {
			return false, fmt.Errorf("sqlite: refreshing user %d: %w", user.ID, err)
		}
		return false, nil
	}

	user.Credits = repository.SignupCredits
	user.CreatedAt = now
	user.LastActivity = now
	return true, nil
}

// GetByID retrieves a user. Returns apperror.ErrNotFound for unknown ids.
func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User

	err := s.conn.QueryRowContext(ctx,
		`SELECT user_id, username, first_name, last_name, credits, created_at, last_activity
		 FROM users WHERE user_id = ?`,
		id,
	).Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Credits, &u.CreatedAt, &u.LastActivity)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}

	return &u, nil
}

// Credits returns the current balance. A missing user reads as 0 — callers
// that need the distinction go through GetByID.
func (s *UserStore) Credits(ctx context.Context, id int64) (int, error) {
	var credits int
	err := s.conn.QueryRowContext(ctx,
		`SELECT credits FROM users WHERE user_id = ?`, id,
	).Scan(&credits)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("sqlite: reading credits for user %d: %w", id, err)
	}
	return credits, nil
}

// SpendCredit decrements the balance by 1 only when it is positive.
//
// The WHERE credits > 0 guard is the whole atomicity story: SQLite runs the
// UPDATE as one serialized step, so of two concurrent spends against a
// balance of 1 exactly one sees a positive balance. The row count tells us
// whether we were the one.
func (s *UserStore) SpendCredit(ctx context.Context, id int64) (bool, error) {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE users SET credits = credits - 1 WHERE user_id = ? AND credits > 0`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: spending credit for user %d: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: spending credit for user %d: %w", id, err)
	}
	return rows > 0, nil
}

// GrantCredits adds amount to the balance. The user must exist.
func (s *UserStore) GrantCredits(ctx context.Context, id int64, amount int) error {
	if amount <= 0 {
		return apperror.ValidationFailed("amount", "credit grant amount must be positive")
	}

	res, err := s.conn.ExecContext(ctx,
		`UPDATE users SET credits = credits + ? WHERE user_id = ?`,
		amount, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: granting %d credits to user %d: %w", amount, id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: granting credits to user %d: %w", id, err)
	}
	if rows == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

// TouchActivity stamps last_activity. A missing user is a silent no-op —
// every flow calls Ensure before this.
func (s *UserStore) TouchActivity(ctx context.Context, id int64) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE users SET last_activity = ? WHERE user_id = ?`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touching activity for user %d: %w", id, err)
	}
	return nil
}
