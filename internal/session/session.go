// Package session owns the per-user conversational state record.
//
// A session is deliberately tiny: which state the conversation is in and
// which analysis role, if any, the user has picked. It is ephemeral by
// contract — losing it (process restart with the memory store) just means
// the user lands back in the main menu. The Store interface exists so a
// durable backend can be swapped in without touching any call site; the
// redis implementation does exactly that.
package session

import "context"

// State is the conversational state of one user.
type State string

const (
	StateMainMenu        State = "main_menu"
	StateRoleSelection   State = "role_selection"
	StateAwaitingText    State = "awaiting_text"
	StateAwaitingSupport State = "awaiting_support_message"
)

// Session is the per-user state record. SelectedRole is only meaningful in
// StateAwaitingText.
type Session struct {
	State        State  `json:"state"`
	SelectedRole string `json:"selectedRole,omitempty"`
}

// Store looks up and persists sessions by user id.
//
// Get never fails on absence: a user without a session is simply in the
// main menu. Implementations must be safe for concurrent use — two events
// from the same user can arrive at once.
type Store interface {
	Get(ctx context.Context, userID int64) (Session, error)
	Put(ctx context.Context, userID int64, s Session) error
	// Reset drops the record, returning the user to the initial state.
	Reset(ctx context.Context, userID int64) error
}
