package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the user has no stored session.
var ErrNotFound = errors.New("session not found")

// MutateResult tells the store what to do with the session after a
// MutateFunc returns.
type MutateResult int

const (
	// LeaveSession stores nothing. It is the zero value, so a callback
	// bailing out with an error leaves the store untouched by default.
	LeaveSession MutateResult = iota
	// KeepSession writes the possibly modified session back.
	KeepSession
	// DropSession removes the session.
	DropSession
)

// MutateFunc runs under the user's lock. found reports whether a session
// existed; when it is false sess points at a zero session the callback may
// fill in and keep. The returned result is applied even when the callback
// also returns an error, so a single locked pass can both delete a session
// and report why.
type MutateFunc func(sess *Session, found bool) (MutateResult, error)

// Store persists sessions keyed by user ID. All methods are safe for
// concurrent use; operations on one user are serialized.
type Store interface {
	// Get returns a copy of the user's session, or ErrNotFound.
	Get(ctx context.Context, userID string) (Session, error)
	// Put inserts or replaces the user's session.
	Put(ctx context.Context, sess Session) error
	// Delete removes the user's session. Deleting an absent session is not
	// an error.
	Delete(ctx context.Context, userID string) error
	// Mutate runs fn atomically against the user's session.
	Mutate(ctx context.Context, userID string, fn MutateFunc) error
	// ActiveCount reports how many sessions are stored.
	ActiveCount(ctx context.Context) (int, error)
}

// Pruner is implemented by stores that can sweep expired sessions in bulk.
type Pruner interface {
	// PruneExpired removes every session whose deadline has passed as of
	// now and returns the removed sessions.
	PruneExpired(ctx context.Context, now time.Time) ([]Session, error)
}
