package model

import "time"

// Analysis is an append-only audit record of one successful analysis.
//
// A row exists only if a credit was actually spent for it — the orchestrator
// writes it after the atomic spend, never before. TokensUsed is informational
// (billing is always exactly one credit regardless of token count).
type Analysis struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"userId"`
	Role       string    `json:"role"`
	TextLength int       `json:"textLength"`
	TokensUsed int       `json:"tokensUsed"`
	CreatedAt  time.Time `json:"createdAt"`
}
