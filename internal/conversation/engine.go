// Package conversation runs the multi-step date-entry flows and the one-shot
// reading queries behind every channel. Channels resolve raw text into
// intents; the engine only ever sees classified calls (start a flow, a field
// token for the active session, cancel) and returns structured outcomes that
// render.go turns into reply text.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"astra/internal/astro"
	astraerrors "astra/internal/errors"
	"astra/internal/logging"
	"astra/internal/observability"
	"astra/internal/session"
	"astra/internal/storage"
)

// DefaultSessionTimeout is the absolute lifetime of a flow session. It is
// stamped once at flow start and never extended by activity.
const DefaultSessionTimeout = 5 * time.Minute

// Engine drives the conversation state machine for every user. All state
// lives in the injected session store; the engine itself is stateless and
// safe for concurrent use.
type Engine struct {
	sessions  session.Store
	users     storage.UserStore
	facts     storage.FactStore
	validator *astro.Validator
	timeout   time.Duration
	now       func() time.Time
	logger    logging.Logger
	metrics   *observability.MetricsCollector
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSessionTimeout overrides the absolute session lifetime.
func WithSessionTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithValidator overrides the date validator, usually to pin its clock or
// minimum year in tests.
func WithValidator(v *astro.Validator) EngineOption {
	return func(e *Engine) {
		if v != nil {
			e.validator = v
		}
	}
}

// WithFactStore wires a facts store so readings carry a daily insight.
// Without one, readings simply omit the insight line.
func WithFactStore(fs storage.FactStore) EngineOption {
	return func(e *Engine) {
		e.facts = fs
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger logging.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logging.OrNop(logger)
	}
}

// WithMetrics wires the metrics collector.
func WithMetrics(m *observability.MetricsCollector) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine builds an engine on top of a session store and a user store.
func NewEngine(sessions session.Store, users storage.UserStore, opts ...EngineOption) *Engine {
	e := &Engine{
		sessions:  sessions,
		users:     users,
		validator: astro.NewValidator(),
		timeout:   DefaultSessionTimeout,
		now:       time.Now,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartFlow begins a flow for the user, silently replacing any session that
// is already active. A compatibility flow requires the user's own birth date
// on file and fails with a MissingPrerequisiteError before touching the
// session store.
func (e *Engine) StartFlow(ctx context.Context, userID string, flow session.FlowKind) (Outcome, error) {
	if strings.TrimSpace(userID) == "" {
		return Outcome{}, fmt.Errorf("start flow: user id is required")
	}

	var rec storage.UserRecord
	switch flow {
	case session.FlowSetBirthDate:
	case session.FlowCheckCompatibility:
		var err error
		rec, err = e.users.GetUser(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return Outcome{}, astraerrors.NewMissingPrerequisite(userID, "birth date")
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("start flow: load user %s: %w", userID, err)
		}
	default:
		return Outcome{}, astraerrors.NewInvariantViolation("conversation.StartFlow",
			fmt.Sprintf("unknown flow %q", flow), nil)
	}

	now := e.now()
	first := session.StateAwaitingDay
	if flow == session.FlowCheckCompatibility {
		first = session.StateAwaitingPartnerDay
	}

	var replaced session.FlowKind
	err := e.sessions.Mutate(ctx, userID, func(sess *session.Session, found bool) (session.MutateResult, error) {
		if found {
			replaced = sess.Flow
		}
		*sess = session.Session{
			UserID:    userID,
			Flow:      flow,
			State:     first,
			CreatedAt: now,
			ExpiresAt: now.Add(e.timeout),
		}
		return session.KeepSession, nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("start flow: store session for %s: %w", userID, err)
	}

	if replaced != "" {
		e.logger.Info("User %s restarted with %s, replacing an active %s session", userID, flow, replaced)
		e.recordSessionEnd(ctx, replaced, "replaced")
	} else {
		e.logger.Info("User %s started %s flow", userID, flow)
	}
	if e.metrics != nil {
		e.metrics.RecordSessionStart(ctx, string(flow))
	}

	out := Outcome{Kind: OutcomePrompt, Flow: flow, State: first}
	if flow == session.FlowCheckCompatibility {
		out.Record = &rec
	}
	return out, nil
}

// completion carries what a finished flow needs after the session lock is
// released: the flow kind and the fully composed birth date (the user's own
// or the partner's, depending on the flow).
type completion struct {
	flow  session.FlowKind
	birth astro.BirthDate
}

// HandleInput feeds one field token to the user's active session.
//
// The state transition runs atomically against the session store; storage
// writes and score calculations happen after the lock is released, so a slow
// database never blocks other users on the same shard. An expired session is
// deleted and reported in the same atomic pass, whatever state it was in.
func (e *Engine) HandleInput(ctx context.Context, userID, raw string) (Outcome, error) {
	token := strings.TrimSpace(raw)

	var (
		out     Outcome
		comp    *completion
		expired session.FlowKind
	)
	err := e.sessions.Mutate(ctx, userID, func(sess *session.Session, found bool) (session.MutateResult, error) {
		if !found {
			return session.LeaveSession, astraerrors.NewSessionNotFound(userID)
		}
		if sess.ExpiredAt(e.now()) {
			expired = sess.Flow
			return session.DropSession, astraerrors.NewSessionExpired(userID)
		}
		return e.step(sess, token, &out, &comp)
	})
	if expired != "" {
		e.logger.Info("User %s sent input to an expired %s session", userID, expired)
		e.recordSessionEnd(ctx, expired, "expired")
	}
	if err != nil {
		return Outcome{}, err
	}
	if comp != nil {
		return e.complete(ctx, userID, *comp)
	}
	return out, nil
}

// step advances a live session by one token. It mutates only the session;
// side effects wait until the caller runs the returned completion.
func (e *Engine) step(sess *session.Session, token string, out *Outcome, comp **completion) (session.MutateResult, error) {
	retry := func(invalid *astraerrors.InvalidDateError) (session.MutateResult, error) {
		*out = Outcome{
			Kind:    OutcomeRetry,
			Flow:    sess.Flow,
			State:   sess.State,
			Day:     sess.Day,
			Month:   sess.Month,
			Invalid: invalid,
		}
		return session.LeaveSession, nil
	}
	advance := func(next session.State) (session.MutateResult, error) {
		sess.State = next
		*out = Outcome{
			Kind:  OutcomePrompt,
			Flow:  sess.Flow,
			State: next,
			Day:   sess.Day,
			Month: sess.Month,
		}
		return session.KeepSession, nil
	}
	finish := func(bd astro.BirthDate) (session.MutateResult, error) {
		*comp = &completion{flow: sess.Flow, birth: bd}
		return session.DropSession, nil
	}

	switch sess.State {
	case session.StateAwaitingDay, session.StateAwaitingPartnerDay:
		// A partner date may arrive whole as DD-MM-YYYY instead of step
		// by step. Anything with separators is treated as that attempt.
		if sess.State == session.StateAwaitingPartnerDay && strings.Contains(token, "-") {
			bd, err := e.validator.ParseDate(token)
			if err != nil {
				return retry(asInvalidDate(err))
			}
			return finish(bd)
		}
		day, err := e.validator.ParseDay(token)
		if err != nil {
			return retry(asInvalidDate(err))
		}
		sess.Day = day
		if sess.State == session.StateAwaitingPartnerDay {
			return advance(session.StateAwaitingPartnerMonth)
		}
		return advance(session.StateAwaitingMonth)

	case session.StateAwaitingMonth, session.StateAwaitingPartnerMonth:
		month, err := e.validator.ParseMonth(token)
		if err != nil {
			return retry(asInvalidDate(err))
		}
		if err := e.validator.CheckDayMonth(sess.Day, month); err != nil {
			return retry(asInvalidDate(err))
		}
		sess.Month = month
		if sess.State == session.StateAwaitingPartnerMonth {
			return advance(session.StateAwaitingPartnerYear)
		}
		return advance(session.StateAwaitingYear)

	case session.StateAwaitingYear, session.StateAwaitingPartnerYear:
		year, err := e.validator.ParseYear(token)
		if err != nil {
			return retry(asInvalidDate(err))
		}
		bd, err := e.validator.Compose(sess.Day, sess.Month, year)
		if err != nil {
			// Leap-year and bound violations only surface once the
			// year is known; the year step owns the retry.
			return retry(asInvalidDate(err))
		}
		return finish(bd)

	default:
		return session.DropSession, astraerrors.NewInvariantViolation("conversation.HandleInput",
			fmt.Sprintf("session for user %s stored in state %q", sess.UserID, sess.State), nil)
	}
}

// complete runs the side effects of a finished flow: persisting the record
// for a set-date flow, scoring against the stored record for a
// compatibility flow.
func (e *Engine) complete(ctx context.Context, userID string, comp completion) (Outcome, error) {
	switch comp.flow {
	case session.FlowSetBirthDate:
		return e.finishSetBirthDate(ctx, userID, comp.birth)
	case session.FlowCheckCompatibility:
		return e.finishCompatibility(ctx, userID, comp.birth)
	default:
		return Outcome{}, astraerrors.NewInvariantViolation("conversation.complete",
			fmt.Sprintf("finished session for user %s carries unknown flow %q", userID, comp.flow), nil)
	}
}

func (e *Engine) finishSetBirthDate(ctx context.Context, userID string, bd astro.BirthDate) (Outcome, error) {
	sign := astro.Classify(bd)
	lp := astro.ComputeLifePath(bd)

	rec := storage.UserRecord{
		UserID:    userID,
		BirthDate: bd,
		Sign:      sign,
		LifePath:  lp.Value,
	}
	if err := e.users.SaveUser(ctx, rec); err != nil {
		e.logger.Error("Failed to save birth date for user %s: %v", userID, err)
		e.recordSessionEnd(ctx, session.FlowSetBirthDate, "failed")
		return Outcome{}, fmt.Errorf("save birth date for %s: %w", userID, err)
	}

	// Read the record back so the outcome reflects what is actually
	// stored, timestamps included.
	saved, err := e.users.GetUser(ctx, userID)
	if err != nil {
		return Outcome{}, astraerrors.NewInvariantViolation("conversation.finishSetBirthDate",
			fmt.Sprintf("record for user %s saved but could not be read back", userID), err)
	}

	e.logger.Info("User %s set birth date %s: %s, life path %d", userID, bd, sign, lp.Value)
	e.recordSessionEnd(ctx, session.FlowSetBirthDate, "completed")

	reading := astro.ReadingFor(bd, e.now())
	return Outcome{
		Kind:    OutcomeSaved,
		Flow:    session.FlowSetBirthDate,
		Record:  &saved,
		Reading: &reading,
	}, nil
}

func (e *Engine) finishCompatibility(ctx context.Context, userID string, partner astro.BirthDate) (Outcome, error) {
	rec, err := e.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		// The record was checked at flow start; losing it mid-flow means
		// the store was wiped underneath us. Send the user back to the
		// beginning rather than guessing.
		e.recordSessionEnd(ctx, session.FlowCheckCompatibility, "failed")
		return Outcome{}, astraerrors.NewMissingPrerequisite(userID, "birth date")
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("compatibility for %s: load user: %w", userID, err)
	}

	report := astro.Score(rec.BirthDate, partner)
	e.logger.Info("User %s checked compatibility: %s x %s = %d%% (%s)",
		userID, report.SignA, report.SignB, report.Combined, report.Category)
	e.recordSessionEnd(ctx, session.FlowCheckCompatibility, "completed")
	e.recordReading(ctx, "compatibility")

	return Outcome{
		Kind:   OutcomeCompatibility,
		Flow:   session.FlowCheckCompatibility,
		Record: &rec,
		Report: &report,
	}, nil
}

// Cancel tears down the user's active session. Cancelling an expired session
// reports the expiry, the same as any other input to it.
func (e *Engine) Cancel(ctx context.Context, userID string) (Outcome, error) {
	var cancelled, expired session.FlowKind
	err := e.sessions.Mutate(ctx, userID, func(sess *session.Session, found bool) (session.MutateResult, error) {
		if !found {
			return session.LeaveSession, astraerrors.NewSessionNotFound(userID)
		}
		if sess.ExpiredAt(e.now()) {
			expired = sess.Flow
			return session.DropSession, astraerrors.NewSessionExpired(userID)
		}
		cancelled = sess.Flow
		return session.DropSession, nil
	})
	if expired != "" {
		e.recordSessionEnd(ctx, expired, "expired")
	}
	if err != nil {
		return Outcome{}, err
	}

	e.logger.Info("User %s cancelled %s flow", userID, cancelled)
	e.recordSessionEnd(ctx, cancelled, "cancelled")
	return Outcome{Kind: OutcomeCancelled, Flow: cancelled}, nil
}

// TodayReading computes the user's reading for today, with a daily insight
// when a facts store is wired. Requires a stored birth date.
func (e *Engine) TodayReading(ctx context.Context, userID string) (DailyReading, error) {
	rec, err := e.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return DailyReading{}, astraerrors.NewMissingPrerequisite(userID, "birth date")
	}
	if err != nil {
		return DailyReading{}, fmt.Errorf("reading for %s: load user: %w", userID, err)
	}

	reading := DailyReading{
		Record:  rec,
		Reading: astro.ReadingFor(rec.BirthDate, e.now()),
	}
	if e.facts != nil {
		fact, err := e.facts.RandomFact(ctx)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			e.logger.Warn("Daily insight unavailable for user %s: %v", userID, err)
		default:
			reading.Insight = fact.Text
		}
	}

	e.recordReading(ctx, "horoscope")
	return reading, nil
}

// Numerology returns the user's stored record together with the full life
// path calculation. Requires a stored birth date.
func (e *Engine) Numerology(ctx context.Context, userID string) (storage.UserRecord, astro.LifePath, error) {
	rec, err := e.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.UserRecord{}, astro.LifePath{}, astraerrors.NewMissingPrerequisite(userID, "birth date")
	}
	if err != nil {
		return storage.UserRecord{}, astro.LifePath{}, fmt.Errorf("numerology for %s: load user: %w", userID, err)
	}

	e.recordReading(ctx, "life_path")
	return rec, astro.ComputeLifePath(rec.BirthDate), nil
}

// RandomInsight returns one random fact. Without a facts store it reports
// storage.ErrNotFound.
func (e *Engine) RandomInsight(ctx context.Context) (storage.Fact, error) {
	if e.facts == nil {
		return storage.Fact{}, storage.ErrNotFound
	}
	fact, err := e.facts.RandomFact(ctx)
	if err != nil {
		return storage.Fact{}, err
	}
	e.recordReading(ctx, "fact")
	return fact, nil
}

func (e *Engine) recordSessionEnd(ctx context.Context, flow session.FlowKind, outcome string) {
	if e.metrics != nil {
		e.metrics.RecordSessionEnd(ctx, string(flow), outcome)
	}
}

func (e *Engine) recordReading(ctx context.Context, kind string) {
	if e.metrics != nil {
		e.metrics.RecordReading(ctx, kind)
	}
}

// asInvalidDate unwraps err into an InvalidDateError. The validator only
// returns that type; anything else is a bug worth the panic-free fallback.
func asInvalidDate(err error) *astraerrors.InvalidDateError {
	var invalid *astraerrors.InvalidDateError
	if errors.As(err, &invalid) {
		return invalid
	}
	return astraerrors.NewInvalidDate(astraerrors.FieldDate, err.Error())
}
