package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/editorial-bot/internal/model"
	"github.com/sakif/editorial-bot/internal/repository"
)

// compile-time check that *AnalysisStore implements repository.AnalysisRepository
var _ repository.AnalysisRepository = (*AnalysisStore)(nil)

// AnalysisStore is the append-only audit log of billed analyses.
type AnalysisStore struct {
	conn *sql.DB
}

// Create appends an audit row. The orchestrator calls this only after a
// credit was spent for the analysis.
func (s *AnalysisStore) Create(ctx context.Context, a *model.Analysis) error {
	a.ID = xid.New().String()
	a.CreatedAt = time.Now()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO analyses (id, user_id, role, text_length, tokens_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Role, a.TextLength, a.TokensUsed, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting analysis for user %d: %w", a.UserID, err)
	}
	return nil
}

// ListByUser returns a user's most recent analyses, newest first.
func (s *AnalysisStore) ListByUser(ctx context.Context, userID int64, limit int) ([]model.Analysis, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, role, text_length, tokens_used, created_at
		 FROM analyses WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing analyses for user %d: %w", userID, err)
	}
	defer rows.Close()

	var analyses []model.Analysis
	for rows.Next() {
		var a model.Analysis
		if err := rows.Scan(&a.ID, &a.UserID, &a.Role, &a.TextLength, &a.TokensUsed, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning analysis row: %w", err)
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating analysis rows: %w", err)
	}
	return analyses, nil
}
