// Package payment defines the payment provider capability and the payment
// token format that ties provider operations back to users and tariffs.
package payment

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/editorial-bot/internal/apperror"
)

// TokenInfo is the data recovered from a payment token.
type TokenInfo struct {
	Namespace string
	UserID    int64
	TariffKey string
	IssuedAt  time.Time
}

// GenerateToken builds a payment token carrying the user, the tariff and an
// issue timestamp: <namespace>_<userID>_<tariffKey>_<unixTS>_<suffix>.
//
// The token doubles as the provider-side payment label, which is how the
// reconciliation sweep recognizes our operations among unrelated wallet
// traffic. The xid suffix keeps repeat purchases of the same tariff within
// one second distinct.
func GenerateToken(namespace string, userID int64, tariffKey string) string {
	return fmt.Sprintf("%s_%d_%s_%d_%s",
		namespace, userID, tariffKey, time.Now().Unix(), xid.New().String())
}

// ParseToken decodes a token produced by GenerateToken. Tokens from other
// namespaces or with a mangled shape return a validation error; the sweep
// uses this to skip wallet operations that are not ours.
func ParseToken(namespace, token string) (*TokenInfo, error) {
	parts := strings.Split(token, "_")
	if len(parts) != 5 {
		return nil, apperror.ValidationFailed("token",
			fmt.Sprintf("malformed payment token: %d segments, want 5", len(parts)))
	}
	if parts[0] != namespace {
		return nil, apperror.ValidationFailed("token",
			fmt.Sprintf("payment token namespace %q, want %q", parts[0], namespace))
	}

	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, apperror.ValidationFailed("token", "payment token user id is not a number")
	}

	ts, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return nil, apperror.ValidationFailed("token", "payment token timestamp is not a number")
	}

	return &TokenInfo{
		Namespace: parts[0],
		UserID:    userID,
		TariffKey: parts[2],
		IssuedAt:  time.Unix(ts, 0),
	}, nil
}
