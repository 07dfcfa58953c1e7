// Package storage defines the persistence contracts for user records, birth
// date facts, and broadcast subscriptions. Implementations live in
// subpackages; consumers depend on the interfaces here.
package storage

import (
	"context"
	"errors"
	"time"

	"astra/internal/astro"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// UserRecord stores one user's saved birth date together with the derived
// values that every reading starts from.
type UserRecord struct {
	UserID    string
	BirthDate astro.BirthDate
	Sign      astro.Sign
	LifePath  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fact is one short fact tied to a birth day, or a general one when Day is
// zero.
type Fact struct {
	ID    int64
	Day   int
	Month int
	Kind  string
	Text  string
}

// Stats summarizes the stored data for the admin stats surface.
type Stats struct {
	Users         int
	Facts         int
	Subscriptions int
	FactsByKind   map[string]int
	RecentUsers   int
}

// UserStore persists user records keyed by user ID.
type UserStore interface {
	// SaveUser inserts or updates the user's record. CreatedAt of an
	// existing record is preserved.
	SaveUser(ctx context.Context, rec UserRecord) error
	// GetUser returns the user's record, or ErrNotFound.
	GetUser(ctx context.Context, userID string) (UserRecord, error)
	// ListUserIDs returns every stored user ID.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// FactStore serves and accepts birth date facts.
type FactStore interface {
	// RandomFact returns any stored fact, or ErrNotFound when none exist.
	RandomFact(ctx context.Context) (Fact, error)
	// FactForDay returns a fact for the given day of month, falling back
	// to general facts when no day-specific one exists.
	FactForDay(ctx context.Context, day int) (Fact, error)
	// FactsByKind returns up to limit facts of one kind.
	FactsByKind(ctx context.Context, kind string, limit int) ([]Fact, error)
	// AddFact stores a new fact and returns its ID.
	AddFact(ctx context.Context, fact Fact) (int64, error)
}

// SubscriptionStore tracks which users receive daily broadcasts.
type SubscriptionStore interface {
	// Subscribe registers the user. Subscribing twice is not an error.
	Subscribe(ctx context.Context, userID string) error
	// Unsubscribe removes the user. Removing an absent user is not an error.
	Unsubscribe(ctx context.Context, userID string) error
	// IsSubscribed reports whether the user is registered.
	IsSubscribed(ctx context.Context, userID string) (bool, error)
	// ListSubscribers returns every subscribed user ID.
	ListSubscribers(ctx context.Context) ([]string, error)
}

// StatsStore reports aggregate counts.
type StatsStore interface {
	Stats(ctx context.Context) (Stats, error)
}

// Store aggregates every persistence contract behind one handle.
type Store interface {
	UserStore
	FactStore
	SubscriptionStore
	StatsStore
	Close() error
}
