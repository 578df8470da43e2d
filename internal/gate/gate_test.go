package gate

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/sakif/editorial-bot/internal/apperror"
)

func newTestGate(t *testing.T, maxChars, maxTokens int) *Gate {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(maxChars, maxTokens, logger)
}

func TestValidate_AcceptsShortText(t *testing.T) {
	g := newTestGate(t, 1000, 500)

	if err := g.Validate("A short paragraph that needs proofreading."); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_RejectsEmptyText(t *testing.T) {
	g := newTestGate(t, 1000, 500)

	err := g.Validate("")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Validate(\"\") error = %v, want ErrValidation", err)
	}
}

func TestValidate_CharCeiling(t *testing.T) {
	g := newTestGate(t, 100, 1000000)

	err := g.Validate(strings.Repeat("a", 101))
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
	// The reason must say WHICH ceiling was exceeded and its value.
	if !strings.Contains(err.Error(), "characters") || !strings.Contains(err.Error(), "100") {
		t.Errorf("reason = %q, want mention of the character ceiling and its limit", err.Error())
	}
}

func TestValidate_TokenCeiling(t *testing.T) {
	// Generous char ceiling, tiny token ceiling: only the token check fires.
	g := newTestGate(t, 1000000, 10)

	err := g.Validate(strings.Repeat("word ", 200))
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "tokens") {
		t.Errorf("reason = %q, want mention of the token ceiling", err.Error())
	}
}

func TestValidate_BelowBothCeilings(t *testing.T) {
	g := newTestGate(t, 10000, 5000)

	if err := g.Validate(strings.Repeat("calm prose. ", 50)); err != nil {
		t.Errorf("Validate() error = %v, want nil below both ceilings", err)
	}
}

func TestCountTokens_Positive(t *testing.T) {
	g := newTestGate(t, 1000, 500)

	n := g.CountTokens("hello editorial world")
	if n <= 0 {
		t.Errorf("CountTokens() = %d, want > 0", n)
	}
}
