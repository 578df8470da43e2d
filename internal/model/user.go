// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a chat user known to the service.
//
// Identity comes from the chat transport as an opaque numeric id — we never
// issue our own user ids. The row is created on first contact with one free
// credit and is never deleted.
//
// INVARIANT: Credits >= 0 at all times. Every mutation of Credits goes
// through the repository's atomic SpendCredit/GrantCredits — never through
// a read-modify-write in Go code, which would race under concurrent events
// from the same user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username,omitempty"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Credits      int       `json:"credits"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}
