// Package deepseek implements the completion capability against the
// DeepSeek chat-completions API (OpenAI-compatible wire format).
package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/editorial-bot/internal/completion"
)

// Config holds the client settings, loaded from configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// compile-time check that *Client implements completion.Completer
var _ completion.Completer = (*Client)(nil)

// Client is a non-streaming chat-completions client. The bot delivers whole
// replies (chunked by the presentation layer), so streaming buys nothing
// here.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New creates a DeepSeek client. A zero Timeout defaults to 2 minutes —
// editorial analyses of long texts are slow.
func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends one system+user exchange and returns the model's reply.
//
// An HTTP or decode failure returns a wrapped error and no result. A 200
// with an empty choice list returns a Result with empty Text — the caller
// decides what an empty completion means (here: analysis failed, spend
// nothing).
func (c *Client) Complete(ctx context.Context, systemPrompt, userText string) (*completion.Result, error) {
	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Analyze the following text:\n\n" + userText},
		},
		Stream:      false,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("deepseek: marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("deepseek: creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepseek: calling chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("deepseek: chat api returned %s: %s", resp.Status, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("deepseek: decoding chat response: %w", err)
	}

	result := &completion.Result{TokensUsed: parsed.Usage.TotalTokens}
	if len(parsed.Choices) > 0 {
		result.Text = parsed.Choices[0].Message.Content
	}

	c.logger.Debug("completion finished",
		slog.String("model", c.cfg.Model),
		slog.Int("promptTokens", parsed.Usage.PromptTokens),
		slog.Int("completionTokens", parsed.Usage.CompletionTokens),
		slog.Bool("empty", result.Text == ""),
	)

	return result, nil
}
