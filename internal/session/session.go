// Package session defines the conversation session model and its storage:
// one session per user, a sharded in-memory store that serializes access per
// user, and a janitor that reclaims sessions whose users never came back.
package session

import "time"

// FlowKind identifies which multi-step conversation a session is running.
type FlowKind string

const (
	// FlowSetBirthDate collects the user's own birth date step by step.
	FlowSetBirthDate FlowKind = "set_birth_date"
	// FlowCheckCompatibility collects a partner's birth date and scores it
	// against the user's stored one.
	FlowCheckCompatibility FlowKind = "check_compatibility"
)

// State is a session's position in its flow.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingDay          State = "awaiting_day"
	StateAwaitingMonth        State = "awaiting_month"
	StateAwaitingYear         State = "awaiting_year"
	StateAwaitingPartnerDay   State = "awaiting_partner_day"
	StateAwaitingPartnerMonth State = "awaiting_partner_month"
	StateAwaitingPartnerYear  State = "awaiting_partner_year"
	StateCompleted            State = "completed"
	StateCancelled            State = "cancelled"
	StateExpired              State = "expired"
)

// Terminal reports whether the state ends the flow. Terminal sessions are
// deleted from the store, never resumed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateExpired
}

// Session is one user's in-progress conversation. The date fields fill in as
// steps complete; in a compatibility flow they hold the partner's date, the
// user's own being on their stored record. ExpiresAt is fixed when the flow
// starts and is never pushed back by activity.
type Session struct {
	UserID    string
	Flow      FlowKind
	State     State
	Day       int
	Month     int
	Year      int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ExpiredAt reports whether the session's deadline has passed. The deadline
// instant itself counts as expired.
func (s Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
