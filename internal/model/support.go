package model

import "time"

// Support message status values.
const (
	SupportStatusNew     = "new"
	SupportStatusHandled = "handled"
)

// SupportMessage is an append-only inquiry submitted by a user from the
// support flow. Operators list and resolve them through the ops API.
type SupportMessage struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
