package conversation

import (
	"fmt"
	"sort"
	"strings"

	"astra/internal/astro"
	astraerrors "astra/internal/errors"
	"astra/internal/session"
	"astra/internal/storage"
)

// Render turns an engine outcome into the plain-text reply every channel
// sends. Channels never format flow text themselves.
func Render(o Outcome) string {
	switch o.Kind {
	case OutcomePrompt:
		return renderPrompt(o)
	case OutcomeRetry:
		return renderRetry(o)
	case OutcomeSaved:
		return renderSaved(o)
	case OutcomeCompatibility:
		return RenderCompatibility(*o.Report)
	case OutcomeCancelled:
		return "Operation cancelled!"
	default:
		return RenderMenu()
	}
}

// RenderMenu is the fallback reply for input that matches no command, phrase,
// or active flow.
func RenderMenu() string {
	return "Use the menu buttons below to explore features!"
}

func renderPrompt(o Outcome) string {
	switch o.State {
	case session.StateAwaitingDay:
		return "Let's set your birth date!\n\nEnter the DAY (1-31):"
	case session.StateAwaitingMonth:
		return fmt.Sprintf("Day: %d ✓\n\nNow enter the MONTH (1-12 or name):", o.Day)
	case session.StateAwaitingYear:
		return fmt.Sprintf("Day: %d\nMonth: %s ✓\n\nFinally, enter your birth YEAR (e.g., 1990):",
			o.Day, astro.MonthName(o.Month))
	case session.StateAwaitingPartnerDay:
		var b strings.Builder
		b.WriteString("Compatibility Check\n\n")
		if o.Record != nil {
			fmt.Fprintf(&b, "Your sign: %s\nYour life path: %d\n\n", o.Record.Sign, o.Record.LifePath)
		}
		b.WriteString("Send your partner's birth date (DD-MM-YYYY),\nor enter the DAY (1-31) to go step by step:")
		return b.String()
	case session.StateAwaitingPartnerMonth:
		return fmt.Sprintf("Day: %d ✓\n\nNow enter your partner's birth MONTH (1-12 or name):", o.Day)
	case session.StateAwaitingPartnerYear:
		return fmt.Sprintf("Day: %d\nMonth: %s ✓\n\nFinally, enter your partner's birth YEAR (e.g., 1990):",
			o.Day, astro.MonthName(o.Month))
	default:
		return "Use the menu buttons below to explore features!"
	}
}

var retryPrompts = map[session.State]string{
	session.StateAwaitingDay:          "Enter the day (1-31):",
	session.StateAwaitingMonth:        "Enter the month (1-12 or name like 'January'):",
	session.StateAwaitingYear:         "Enter the year again (e.g., 1990):",
	session.StateAwaitingPartnerDay:   "Enter the day (1-31) or the full date (DD-MM-YYYY):",
	session.StateAwaitingPartnerMonth: "Enter the month (1-12 or name like 'January'):",
	session.StateAwaitingPartnerYear:  "Enter the year again (e.g., 1990):",
}

func renderRetry(o Outcome) string {
	reprompt, ok := retryPrompts[o.State]
	if !ok {
		reprompt = "Try again:"
	}
	if o.Invalid == nil {
		return reprompt
	}
	if o.State == session.StateAwaitingPartnerDay && o.Invalid.Field == astraerrors.FieldDate {
		return fmt.Sprintf("Invalid date: %s\nUse DD-MM-YYYY format:", o.Invalid.Reason)
	}
	return fmt.Sprintf("Error: invalid %s, %s.\n%s", o.Invalid.Field, o.Invalid.Reason, reprompt)
}

func renderSaved(o Outcome) string {
	rec := o.Record
	var b strings.Builder
	b.WriteString("✅ Birth date saved successfully!\n\n")
	fmt.Fprintf(&b, "📅 Date: %s\n", formatLongDate(rec.BirthDate))
	fmt.Fprintf(&b, "♈ Zodiac: %s\n", rec.Sign)
	fmt.Fprintf(&b, "🔢 Life Path: %d\n\n", rec.LifePath)
	b.WriteString("You can now use all features!")
	return b.String()
}

// formatLongDate renders a birth date as "December 25, 1990".
func formatLongDate(d astro.BirthDate) string {
	return fmt.Sprintf("%s %d, %d", astro.MonthName(d.Month()), d.Day(), d.Year())
}

// categoryLabels decorates each compatibility category the way the chat
// channels present it.
var categoryLabels = map[astro.Category]string{
	astro.CategoryExcellent:   "Excellent ❤️",
	astro.CategoryGood:        "Good 💖",
	astro.CategoryModerate:    "Moderate 💕",
	astro.CategoryChallenging: "Challenging 💙",
}

// RenderCompatibility formats a scored compatibility report.
func RenderCompatibility(r astro.CompatibilityReport) string {
	label, ok := categoryLabels[r.Category]
	if !ok {
		label = string(r.Category)
	}
	var b strings.Builder
	b.WriteString("Compatibility Analysis\n\n")
	fmt.Fprintf(&b, "You: %s (%s) - Path %d\n", r.SignA, r.SignA.Element(), r.LifePathA.Value)
	fmt.Fprintf(&b, "Partner: %s (%s) - Path %d\n\n", r.SignB, r.SignB.Element(), r.LifePathB.Value)
	fmt.Fprintf(&b, "Elements: %d%%\n", r.ElementScore)
	fmt.Fprintf(&b, "Numerology: %d%%\n\n", r.LifePathScore)
	fmt.Fprintf(&b, "Overall: %d%% - %s", r.Combined, label)
	return b.String()
}

// RenderReading formats a daily reading; the insight line is omitted when
// the facts store had nothing to offer.
func RenderReading(r DailyReading) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today's Reading for %s\n\n", r.Reading.Sign)
	fmt.Fprintf(&b, "Horoscope:\n%s\n\n", r.Reading.Horoscope.Text)
	fmt.Fprintf(&b, "Lucky Number: %d", r.Reading.LuckyNumber)
	if r.Insight != "" {
		fmt.Fprintf(&b, "\n\nDaily Insight:\n%s", r.Insight)
	}
	return b.String()
}

// RenderNumerology formats the life path profile with the full calculation,
// digit by digit.
func RenderNumerology(rec storage.UserRecord, lp astro.LifePath) string {
	var b strings.Builder
	b.WriteString("Your Numerology Profile\n\n")
	fmt.Fprintf(&b, "Life Path Number: %d\n\n", lp.Value)
	fmt.Fprintf(&b, "Calculation:\n%s\n\n", renderLifePathSteps(rec.BirthDate, lp))
	fmt.Fprintf(&b, "Meaning:\n%s", astro.LifePathMeaning(lp.Value))
	return b.String()
}

// renderLifePathSteps walks the reduction trace: the initial digit sum over
// DDMMYYYY, then each reduction, then the final value.
func renderLifePathSteps(d astro.BirthDate, lp astro.LifePath) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Birth date: %02d/%02d/%04d\n", d.Day(), d.Month(), d.Year())

	digits := fmt.Sprintf("%02d%02d%04d", d.Day(), d.Month(), d.Year())
	fmt.Fprintf(&b, "Add all digits: %s = %d\n", joinDigits(digits), lp.Trace[0])

	for i := 1; i < len(lp.Trace); i++ {
		prev := fmt.Sprintf("%d", lp.Trace[i-1])
		fmt.Fprintf(&b, "Reduce: %s = %d\n", joinDigits(prev), lp.Trace[i])
	}

	if lp.IsMaster() {
		fmt.Fprintf(&b, "\nMaster Number: %d (not reduced further)", lp.Value)
	} else {
		fmt.Fprintf(&b, "\nLife Path Number: %d", lp.Value)
	}
	return b.String()
}

func joinDigits(s string) string {
	parts := make([]string, 0, len(s))
	for _, r := range s {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, " + ")
}

// factEmoji decorates a fact by its kind.
var factEmoji = map[string]string{
	"psychology": "🧠",
	"science":    "🔬",
	"numerology": "🔢",
	"general":    "💡",
}

// RenderFact formats a random insight.
func RenderFact(f storage.Fact) string {
	emoji, ok := factEmoji[f.Kind]
	if !ok {
		emoji = "🎲"
	}
	return fmt.Sprintf("Zodiac Secret\n\n%s %s", emoji, f.Text)
}

// RenderLucky formats a lucky number reply.
func RenderLucky(sign astro.Sign, n int) string {
	return fmt.Sprintf("Lucky Number for %s\n\n🍀 Today: %d", sign, n)
}

// RenderProfile formats a sign's static profile.
func RenderProfile(p astro.SignProfile) string {
	signs := make([]string, len(p.CompatibleSigns))
	for i, s := range p.CompatibleSigns {
		signs[i] = string(s)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", p.Sign)
	fmt.Fprintf(&b, "Element: %s\n", p.Element)
	fmt.Fprintf(&b, "Dates: %s\n", p.DateRange)
	fmt.Fprintf(&b, "Compatible signs: %s", strings.Join(signs, ", "))
	return b.String()
}

// RenderStats formats the admin statistics summary.
func RenderStats(s storage.Stats) string {
	var b strings.Builder
	b.WriteString("Bot Statistics\n\n")
	fmt.Fprintf(&b, "Users: %d\n", s.Users)
	fmt.Fprintf(&b, "Subscribers: %d\n", s.Subscriptions)
	fmt.Fprintf(&b, "Facts: %d\n", s.Facts)
	fmt.Fprintf(&b, "Active last 7 days: %d", s.RecentUsers)
	if len(s.FactsByKind) > 0 {
		kinds := make([]string, 0, len(s.FactsByKind))
		for kind := range s.FactsByKind {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		b.WriteString("\n\nFacts by type:")
		for _, kind := range kinds {
			fmt.Fprintf(&b, "\n• %s: %d", kind, s.FactsByKind[kind])
		}
	}
	return b.String()
}

// RenderWelcome greets a new or returning user.
func RenderWelcome(firstName string) string {
	if strings.TrimSpace(firstName) == "" {
		firstName = "there"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Welcome %s! I'm your astrology bot.\n\n", firstName)
	b.WriteString("I can help you with:\n")
	b.WriteString("• Daily horoscopes and readings\n")
	b.WriteString("• Numerology life path calculations\n")
	b.WriteString("• Zodiac compatibility checks\n")
	b.WriteString("• Lucky numbers and insights\n\n")
	b.WriteString("Send /setdate to set your birth date, or /help for everything I can do.")
	return b.String()
}

// RenderHelp lists every available command.
func RenderHelp() string {
	var b strings.Builder
	b.WriteString("Available commands:\n\n")
	b.WriteString("/setdate - Set your birth date\n")
	b.WriteString("/horoscope - Today's reading\n")
	b.WriteString("/lifepath - Numerology profile\n")
	b.WriteString("/compatibility - Relationship analysis\n")
	b.WriteString("/lucky - Today's lucky number\n")
	b.WriteString("/fact - Random zodiac secret\n")
	b.WriteString("/subscribe - Daily horoscope delivery\n")
	b.WriteString("/unsubscribe - Stop daily delivery\n")
	b.WriteString("/cancel - Cancel the current conversation\n")
	b.WriteString("/help - Show this help")
	return b.String()
}

// RenderError maps engine errors to user-facing text. Internal errors stay
// generic; the log carries the detail.
func RenderError(err error) string {
	switch {
	case astraerrors.IsSessionExpired(err):
		return "Session expired. Please start over with /setdate."
	case astraerrors.IsSessionNotFound(err):
		return "No active conversation. Use /setdate or /compatibility to begin."
	case astraerrors.IsMissingPrerequisite(err):
		return "Please set your birth date first using /setdate!"
	case astraerrors.IsInvalidDate(err):
		return capitalize(err.Error()) + "."
	default:
		return "An unexpected error occurred. Please try again."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
