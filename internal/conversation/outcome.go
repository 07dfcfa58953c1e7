package conversation

import (
	"astra/internal/astro"
	astraerrors "astra/internal/errors"
	"astra/internal/session"
	"astra/internal/storage"
)

// OutcomeKind discriminates what an engine call produced.
type OutcomeKind int

const (
	// OutcomePrompt asks the user for the next field of the active flow.
	OutcomePrompt OutcomeKind = iota
	// OutcomeRetry re-asks the current field; Invalid carries the reason
	// the last input was rejected. The session is unchanged.
	OutcomeRetry
	// OutcomeSaved ends a set-birth-date flow: the record was persisted
	// and Record/Reading describe it.
	OutcomeSaved
	// OutcomeCompatibility ends a compatibility flow; Report carries the
	// scored result.
	OutcomeCompatibility
	// OutcomeCancelled ends any flow at the user's request.
	OutcomeCancelled
)

// Outcome is the structured result of one engine interaction. Channels turn
// it into user-facing text with Render; nothing in here is pre-rendered.
//
// Day and Month echo the fields confirmed so far, so prompts can show the
// user what the session already holds. Record is the stored user record
// where one is involved: the saved record after a set-date flow, or the
// user's own record at the start and end of a compatibility flow.
type Outcome struct {
	Kind    OutcomeKind
	Flow    session.FlowKind
	State   session.State
	Day     int
	Month   int
	Invalid *astraerrors.InvalidDateError
	Record  *storage.UserRecord
	Reading *astro.Reading
	Report  *astro.CompatibilityReport
}

// DailyReading bundles everything a "today's reading" query returns: the
// stored record, the deterministic reading for today, and an optional
// insight pulled from the facts store.
type DailyReading struct {
	Record  storage.UserRecord
	Reading astro.Reading
	Insight string
}
