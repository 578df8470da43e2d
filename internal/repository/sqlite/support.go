package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/editorial-bot/internal/apperror"
	"github.com/sakif/editorial-bot/internal/model"
	"github.com/sakif/editorial-bot/internal/repository"
)

// compile-time check that *SupportStore implements repository.SupportRepository
var _ repository.SupportRepository = (*SupportStore)(nil)

// SupportStore holds user inquiries for the operator inbox.
type SupportStore struct {
	conn *sql.DB
}

// Create appends a new inquiry with status "new".
func (s *SupportStore) Create(ctx context.Context, m *model.SupportMessage) error {
	m.ID = xid.New().String()
	if m.Status == "" {
		m.Status = model.SupportStatusNew
	}
	m.CreatedAt = time.Now()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO support_messages (id, user_id, message, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Message, m.Status, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting support message for user %d: %w", m.UserID, err)
	}
	return nil
}

// List returns inquiries with the given status, oldest first (an inbox reads
// top-down). Empty status lists everything.
func (s *SupportStore) List(ctx context.Context, status string) ([]model.SupportMessage, error) {
	query := `SELECT id, user_id, message, status, created_at FROM support_messages`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing support messages: %w", err)
	}
	defer rows.Close()

	var messages []model.SupportMessage
	for rows.Next() {
		var m model.SupportMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Message, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning support message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating support message rows: %w", err)
	}
	return messages, nil
}

// SetStatus updates one inquiry's status.
func (s *SupportStore) SetStatus(ctx context.Context, id, status string) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE support_messages SET status = ? WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating support message %s: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating support message %s: %w", id, err)
	}
	if rows == 0 {
		return apperror.NotFound("support message", id)
	}
	return nil
}
