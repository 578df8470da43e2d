// Package completion defines the external text-generation capability the
// orchestrator calls once per analysis.
package completion

import "context"

// Result is one completion outcome. Text may be empty on provider-side
// failure even when err is nil — the orchestrator treats an empty Text as a
// failed analysis and spends nothing. TokensUsed is informational (logging
// and audit), never billing.
type Result struct {
	Text       string
	TokensUsed int
}

// Completer is the opaque completion capability.
//
// Implementations make a long-latency network call; callers must never hold
// a ledger or store lock across Complete. The context carries the per-call
// timeout.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (*Result, error)
}
