package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"astra/internal/astro"
	astraerrors "astra/internal/errors"
	"astra/internal/session"
	"astra/internal/storage"
)

func mustDate(t *testing.T, raw string) astro.BirthDate {
	t.Helper()
	bd, err := astro.ParseDate(raw)
	if err != nil {
		t.Fatalf("ParseDate(%q) error: %v", raw, err)
	}
	return bd
}

func TestRenderPrompts(t *testing.T) {
	rec := storage.UserRecord{Sign: astro.Capricorn, LifePath: 11}

	tests := []struct {
		name string
		out  Outcome
		want string
	}{
		{
			name: "ask day",
			out:  Outcome{Kind: OutcomePrompt, State: session.StateAwaitingDay},
			want: "Let's set your birth date!\n\nEnter the DAY (1-31):",
		},
		{
			name: "ask month echoes day",
			out:  Outcome{Kind: OutcomePrompt, State: session.StateAwaitingMonth, Day: 25},
			want: "Day: 25 ✓\n\nNow enter the MONTH (1-12 or name):",
		},
		{
			name: "ask year echoes both",
			out:  Outcome{Kind: OutcomePrompt, State: session.StateAwaitingYear, Day: 25, Month: 12},
			want: "Day: 25\nMonth: December ✓\n\nFinally, enter your birth YEAR (e.g., 1990):",
		},
		{
			name: "ask partner day shows own record",
			out:  Outcome{Kind: OutcomePrompt, State: session.StateAwaitingPartnerDay, Record: &rec},
			want: "Compatibility Check\n\nYour sign: Capricorn\nYour life path: 11\n\nSend your partner's birth date (DD-MM-YYYY),\nor enter the DAY (1-31) to go step by step:",
		},
		{
			name: "ask partner month",
			out:  Outcome{Kind: OutcomePrompt, State: session.StateAwaitingPartnerMonth, Day: 14},
			want: "Day: 14 ✓\n\nNow enter your partner's birth MONTH (1-12 or name):",
		},
		{
			name: "ask partner year",
			out:  Outcome{Kind: OutcomePrompt, State: session.StateAwaitingPartnerYear, Day: 14, Month: 2},
			want: "Day: 14\nMonth: February ✓\n\nFinally, enter your partner's birth YEAR (e.g., 1990):",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.out); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderRetry(t *testing.T) {
	tests := []struct {
		name string
		out  Outcome
		want string
	}{
		{
			name: "bad day",
			out: Outcome{
				Kind:    OutcomeRetry,
				State:   session.StateAwaitingDay,
				Invalid: astraerrors.NewInvalidDate(astraerrors.FieldDay, "must be between 1 and 31"),
			},
			want: "Error: invalid day, must be between 1 and 31.\nEnter the day (1-31):",
		},
		{
			name: "bad month",
			out: Outcome{
				Kind:    OutcomeRetry,
				State:   session.StateAwaitingMonth,
				Invalid: astraerrors.NewInvalidDate(astraerrors.FieldMonth, `"janu" is not a month`),
			},
			want: "Error: invalid month, \"janu\" is not a month.\nEnter the month (1-12 or name like 'January'):",
		},
		{
			name: "bad full partner date",
			out: Outcome{
				Kind:    OutcomeRetry,
				State:   session.StateAwaitingPartnerDay,
				Invalid: astraerrors.NewInvalidDate(astraerrors.FieldDate, "format must be DD-MM-YYYY"),
			},
			want: "Invalid date: format must be DD-MM-YYYY\nUse DD-MM-YYYY format:",
		},
		{
			name: "bad year",
			out: Outcome{
				Kind:    OutcomeRetry,
				State:   session.StateAwaitingYear,
				Invalid: astraerrors.NewInvalidDate(astraerrors.FieldYear, "must be between 1900 and 2026"),
			},
			want: "Error: invalid year, must be between 1900 and 2026.\nEnter the year again (e.g., 1990):",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.out); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderSaved(t *testing.T) {
	rec := storage.UserRecord{
		UserID:    "u1",
		BirthDate: mustDate(t, "25-12-1990"),
		Sign:      astro.Capricorn,
		LifePath:  11,
	}
	got := Render(Outcome{Kind: OutcomeSaved, Record: &rec})
	want := "✅ Birth date saved successfully!\n\n" +
		"📅 Date: December 25, 1990\n" +
		"♈ Zodiac: Capricorn\n" +
		"🔢 Life Path: 11\n\n" +
		"You can now use all features!"
	if got != want {
		t.Errorf("Render(saved) = %q, want %q", got, want)
	}
}

func TestRenderCompatibility(t *testing.T) {
	bd := mustDate(t, "25-12-1990")
	report := astro.Score(bd, bd)

	got := Render(Outcome{Kind: OutcomeCompatibility, Report: &report})
	want := "Compatibility Analysis\n\n" +
		"You: Capricorn (Earth) - Path 11\n" +
		"Partner: Capricorn (Earth) - Path 11\n\n" +
		"Elements: 75%\n" +
		"Numerology: 100%\n\n" +
		"Overall: 88% - Excellent ❤️"
	if got != want {
		t.Errorf("Render(compatibility) = %q, want %q", got, want)
	}
}

func TestRenderCancelled(t *testing.T) {
	if got := Render(Outcome{Kind: OutcomeCancelled}); got != "Operation cancelled!" {
		t.Errorf("Render(cancelled) = %q", got)
	}
}

func TestRenderReading(t *testing.T) {
	bd := mustDate(t, "25-12-1990")
	on := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	r := DailyReading{
		Reading: astro.ReadingFor(bd, on),
		Insight: "Your birth date influences your sleep patterns.",
	}

	got := RenderReading(r)
	if !strings.HasPrefix(got, "Today's Reading for Capricorn\n\nHoroscope:\n") {
		t.Errorf("reading header wrong: %q", got)
	}
	if !strings.Contains(got, r.Reading.Horoscope.Text) {
		t.Error("reading does not include the horoscope text")
	}
	if !strings.Contains(got, "Lucky Number: ") {
		t.Error("reading does not include the lucky number")
	}
	if !strings.Contains(got, "Daily Insight:\nYour birth date influences your sleep patterns.") {
		t.Error("reading does not include the insight")
	}

	r.Insight = ""
	if strings.Contains(RenderReading(r), "Daily Insight") {
		t.Error("insight section rendered without an insight")
	}
}

func TestRenderNumerologySteps(t *testing.T) {
	tests := []struct {
		name string
		date string
		want string
	}{
		{
			name: "master number stops reduction",
			date: "25-12-1990",
			want: "Birth date: 25/12/1990\n" +
				"Add all digits: 2 + 5 + 1 + 2 + 1 + 9 + 9 + 0 = 29\n" +
				"Reduce: 2 + 9 = 11\n" +
				"\nMaster Number: 11 (not reduced further)",
		},
		{
			name: "two reductions",
			date: "15-08-1985",
			want: "Birth date: 15/08/1985\n" +
				"Add all digits: 1 + 5 + 0 + 8 + 1 + 9 + 8 + 5 = 37\n" +
				"Reduce: 3 + 7 = 10\n" +
				"Reduce: 1 + 0 = 1\n" +
				"\nLife Path Number: 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bd := mustDate(t, tt.date)
			lp := astro.ComputeLifePath(bd)
			if got := renderLifePathSteps(bd, lp); got != tt.want {
				t.Errorf("renderLifePathSteps() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderNumerologyProfile(t *testing.T) {
	bd := mustDate(t, "25-12-1990")
	rec := storage.UserRecord{UserID: "u1", BirthDate: bd, Sign: astro.Capricorn, LifePath: 11}
	got := RenderNumerology(rec, astro.ComputeLifePath(bd))

	if !strings.HasPrefix(got, "Your Numerology Profile\n\nLife Path Number: 11\n\n") {
		t.Errorf("profile header wrong: %q", got)
	}
	if !strings.Contains(got, "Meaning:\nThe Illuminator") {
		t.Errorf("profile missing meaning: %q", got)
	}
}

func TestRenderFact(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{"psychology", "🧠"},
		{"science", "🔬"},
		{"numerology", "🔢"},
		{"general", "💡"},
		{"astronomy", "🎲"},
	}
	for _, tt := range tests {
		got := RenderFact(storage.Fact{Kind: tt.kind, Text: "Something true."})
		want := "Zodiac Secret\n\n" + tt.want + " Something true."
		if got != want {
			t.Errorf("RenderFact(%s) = %q, want %q", tt.kind, got, want)
		}
	}
}

func TestRenderProfile(t *testing.T) {
	got := RenderProfile(astro.ProfileOf(astro.Capricorn))
	for _, fragment := range []string{
		"Capricorn",
		"Element: Earth",
		"Dates: Dec 22 - Jan 19",
		"Compatible signs: Taurus, Cancer, Virgo, Scorpio, Pisces",
	} {
		if !strings.Contains(got, fragment) {
			t.Errorf("profile missing %q in %q", fragment, got)
		}
	}
}

func TestRenderStats(t *testing.T) {
	got := RenderStats(storage.Stats{
		Users:         42,
		Facts:         12,
		Subscriptions: 7,
		RecentUsers:   5,
		FactsByKind:   map[string]int{"science": 2, "psychology": 4},
	})
	want := "Bot Statistics\n\n" +
		"Users: 42\n" +
		"Subscribers: 7\n" +
		"Facts: 12\n" +
		"Active last 7 days: 5\n\n" +
		"Facts by type:\n" +
		"• psychology: 4\n" +
		"• science: 2"
	if got != want {
		t.Errorf("RenderStats() = %q, want %q", got, want)
	}
}

func TestRenderErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "expired",
			err:  astraerrors.NewSessionExpired("u1"),
			want: "Session expired. Please start over with /setdate.",
		},
		{
			name: "not found",
			err:  astraerrors.NewSessionNotFound("u1"),
			want: "No active conversation. Use /setdate or /compatibility to begin.",
		},
		{
			name: "missing prerequisite",
			err:  astraerrors.NewMissingPrerequisite("u1", "birth date"),
			want: "Please set your birth date first using /setdate!",
		},
		{
			name: "invalid date",
			err:  astraerrors.NewInvalidDate(astraerrors.FieldDay, "must be between 1 and 31"),
			want: "Invalid day: must be between 1 and 31.",
		},
		{
			name: "anything else stays generic",
			err:  context.DeadlineExceeded,
			want: "An unexpected error occurred. Please try again.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderError(tt.err); got != tt.want {
				t.Errorf("RenderError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderWelcomeAndHelp(t *testing.T) {
	welcome := RenderWelcome("Alice")
	if !strings.HasPrefix(welcome, "Welcome Alice! I'm your astrology bot.") {
		t.Errorf("welcome = %q", welcome)
	}
	if got := RenderWelcome("  "); !strings.HasPrefix(got, "Welcome there!") {
		t.Errorf("welcome fallback = %q", got)
	}

	help := RenderHelp()
	for _, cmd := range []string{"/setdate", "/horoscope", "/lifepath", "/compatibility", "/lucky", "/fact", "/subscribe", "/unsubscribe", "/cancel"} {
		if !strings.Contains(help, cmd) {
			t.Errorf("help missing %s", cmd)
		}
	}
}
