// Package gate enforces the pre-flight limits on analysis input.
//
// The gate runs before any credit is read or spent and before any
// completion call is made — it is a pure precondition check with no side
// effects. Two ceilings apply: raw character count and estimated token
// count. The rejection reason always names which ceiling was hit and its
// numeric value, so the user knows what to trim.
package gate

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sakif/editorial-bot/internal/apperror"
)

// encodingName matches what the completion provider tokenizes with.
const encodingName = "cl100k_base"

// Gate validates analysis input against configured ceilings.
type Gate struct {
	maxChars  int
	maxTokens int
	logger    *slog.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// New creates a Gate. The tiktoken encoding is loaded lazily on first use;
// if it cannot be loaded the gate falls back to the chars/4 heuristic, which
// overestimates ASCII-heavy text slightly and keeps the ceiling safe.
func New(maxChars, maxTokens int, logger *slog.Logger) *Gate {
	return &Gate{
		maxChars:  maxChars,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Validate checks the text against both ceilings. A nil return means the
// text may proceed to the credit check and completion call.
func (g *Gate) Validate(text string) error {
	if len(text) == 0 {
		return apperror.ValidationFailed("text", "text is required")
	}

	if len(text) > g.maxChars {
		return apperror.ValidationFailed("text",
			fmt.Sprintf("text is too long: %d characters (maximum %d)", len(text), g.maxChars))
	}

	tokens := g.CountTokens(text)
	if tokens > g.maxTokens {
		return apperror.ValidationFailed("text",
			fmt.Sprintf("text has too many tokens: %d (maximum %d)", tokens, g.maxTokens))
	}

	return nil
}

// CountTokens estimates the token count of text. Used by Validate and for
// audit logging — never for billing, which is always 1 credit per analysis.
func (g *Gate) CountTokens(text string) int {
	g.once.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			g.logger.Warn("token encoding unavailable, using heuristic estimate",
				slog.String("encoding", encodingName),
				slog.String("error", err.Error()),
			)
			return
		}
		g.enc = enc
	})

	if g.enc == nil {
		// Heuristic from the days before a real tokenizer: ~4 chars/token.
		return len(text) / 4
	}
	return len(g.enc.Encode(text, nil, nil))
}
