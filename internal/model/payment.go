package model

import "time"

// Payment status values. A payment only ever moves pending → completed,
// and it does so at most once.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
)

// Payment is the local record of a purchase initiated through the external
// payment provider.
//
// Token is globally unique and doubles as the provider-visible label on the
// charge, which is how provider operations are matched back to local records.
// It encodes user id, tariff key, creation timestamp and a random suffix
// (see the payment package) — but this record, not the token, is the source
// of truth for Amount and CreditsGranted.
//
// INVARIANT: the pending → completed transition and the credit grant to the
// owning user happen in one atomic unit, exactly once per token. Once
// completed, the record is immutable.
type Payment struct {
	ID             int64      `json:"id"`
	Token          string     `json:"token"`
	UserID         int64      `json:"userId"`
	Amount         float64    `json:"amount"`
	CreditsGranted int        `json:"creditsGranted"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}
