// Package yoomoney implements the payment provider against the YooMoney
// wallet API: quickpay forms for checkout and operation-history for
// reconciliation.
package yoomoney

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/editorial-bot/internal/payment"
)

const (
	quickpayURL = "https://yoomoney.ru/quickpay/confirm.xml"
	historyURL  = "https://yoomoney.ru/api/operation-history"
)

// Config holds the YooMoney client settings.
type Config struct {
	// Token is the OAuth access token used for operation-history calls.
	Token string
	// ReceiverWallet is the wallet number payments are sent to.
	ReceiverWallet string
	Timeout        time.Duration
}

var _ payment.Provider = (*Client)(nil)

// Client talks to the YooMoney wallet API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New creates a YooMoney client.
func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: timeout,
			// Quickpay answers with a redirect to the checkout page; we want
			// the Location header, not the page itself.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// CreateCharge submits a quickpay form and returns the checkout URL the user
// should be sent to. The charge token rides in the form's label field and
// comes back attached to the wallet operation once the user pays.
func (c *Client) CreateCharge(ctx context.Context, chargeReq payment.ChargeRequest) (string, error) {
	form := url.Values{}
	form.Set("receiver", c.cfg.ReceiverWallet)
	form.Set("quickpay-form", "shop")
	form.Set("paymentType", "SB")
	form.Set("targets", chargeReq.Title)
	form.Set("sum", strconv.FormatFloat(chargeReq.Amount, 'f', 2, 64))
	form.Set("label", chargeReq.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, quickpayURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("yoomoney: creating quickpay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("yoomoney: calling quickpay: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	// Quickpay 302s to the hosted checkout page.
	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusMovedPermanently {
		loc := resp.Header.Get("Location")
		if loc == "" {
			return "", fmt.Errorf("yoomoney: quickpay redirect without location")
		}
		return loc, nil
	}
	if resp.StatusCode == http.StatusOK {
		// Some form variants answer 200 with the final URL in the request.
		return resp.Request.URL.String(), nil
	}

	return "", fmt.Errorf("yoomoney: quickpay returned %s", resp.Status)
}

type historyResponse struct {
	Operations []struct {
		OperationID string  `json:"operation_id"`
		Status      string  `json:"status"`
		Direction   string  `json:"direction"`
		Label       string  `json:"label"`
		Amount      float64 `json:"amount"`
		Datetime    string  `json:"datetime"`
	} `json:"operations"`
	Error string `json:"error"`
}

// ListOperations fetches wallet history, optionally narrowed to one label.
func (c *Client) ListOperations(ctx context.Context, label string) ([]payment.Operation, error) {
	form := url.Values{}
	form.Set("records", "100")
	if label != "" {
		form.Set("label", label)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, historyURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("yoomoney: creating history request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yoomoney: calling operation-history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("yoomoney: operation-history returned %s: %s", resp.Status, string(body))
	}

	var parsed historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("yoomoney: decoding operation-history: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("yoomoney: operation-history error: %s", parsed.Error)
	}

	ops := make([]payment.Operation, 0, len(parsed.Operations))
	for _, op := range parsed.Operations {
		ops = append(ops, payment.Operation{
			OperationID: op.OperationID,
			Status:      op.Status,
			Direction:   op.Direction,
			Label:       op.Label,
			Amount:      op.Amount,
			Datetime:    op.Datetime,
		})
	}

	c.logger.Debug("fetched wallet operations",
		slog.String("label", label),
		slog.Int("count", len(ops)),
	)

	return ops, nil
}
