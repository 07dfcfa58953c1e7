package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"astra/internal/astro"
)

// calendarLayout parses DD-MM-YYYY for horoscope dates, which are any
// calendar day rather than a bounded birth date.
const calendarLayout = "02-01-2006"

func newZodiacCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "zodiac <DD-MM-YYYY>",
		Short: "Show the zodiac sign and profile for a birth date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := astro.ParseDate(args[0])
			if err != nil {
				return err
			}
			printMarkdown(zodiacDoc(d, astro.ProfileOf(astro.Classify(d))))
			return nil
		},
	}
}

func zodiacDoc(d astro.BirthDate, p astro.SignProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Sign)
	fmt.Fprintf(&b, "- **Birth date:** %s\n", d)
	fmt.Fprintf(&b, "- **Element:** %s\n", p.Element)
	fmt.Fprintf(&b, "- **Date range:** %s\n", p.DateRange)
	fmt.Fprintf(&b, "- **Compatible elements:** %s\n", joinNames(p.CompatibleElements))
	fmt.Fprintf(&b, "- **Compatible signs:** %s\n", joinNames(p.CompatibleSigns))
	return b.String()
}

func newLifePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lifepath <DD-MM-YYYY>",
		Short: "Compute the numerology life path for a birth date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := astro.ParseDate(args[0])
			if err != nil {
				return err
			}
			printMarkdown(lifePathDoc(d, astro.ComputeLifePath(d)))
			return nil
		},
	}
}

func lifePathDoc(d astro.BirthDate, lp astro.LifePath) string {
	var b strings.Builder
	if lp.IsMaster() {
		fmt.Fprintf(&b, "# Life Path %d (Master Number)\n\n", lp.Value)
	} else {
		fmt.Fprintf(&b, "# Life Path %d\n\n", lp.Value)
	}
	fmt.Fprintf(&b, "Birth date %s reduces as follows:\n\n", d)

	digits := fmt.Sprintf("%02d%02d%04d", d.Day(), d.Month(), d.Year())
	fmt.Fprintf(&b, "1. Add all digits: %s = %d\n", spellDigits(digits), lp.Trace[0])
	for i := 1; i < len(lp.Trace); i++ {
		prev := fmt.Sprintf("%d", lp.Trace[i-1])
		fmt.Fprintf(&b, "%d. Reduce: %s = %d\n", i+1, spellDigits(prev), lp.Trace[i])
	}

	fmt.Fprintf(&b, "\n%s\n", astro.LifePathMeaning(lp.Value))
	return b.String()
}

func spellDigits(s string) string {
	parts := make([]string, 0, len(s))
	for _, r := range s {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, " + ")
}

func newCompatibilityCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "compatibility <DD-MM-YYYY> <DD-MM-YYYY>",
		Aliases: []string{"compat"},
		Short:   "Score the compatibility of two birth dates",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := astro.ParseDate(args[0])
			if err != nil {
				return fmt.Errorf("first date: %w", err)
			}
			b, err := astro.ParseDate(args[1])
			if err != nil {
				return fmt.Errorf("second date: %w", err)
			}
			printMarkdown(compatibilityDoc(astro.Score(a, b)))
			return nil
		},
	}
}

func compatibilityDoc(r astro.CompatibilityReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s + %s\n\n", r.SignA, r.SignB)
	fmt.Fprintf(&b, "| | First | Second |\n")
	fmt.Fprintf(&b, "|---|---|---|\n")
	fmt.Fprintf(&b, "| Sign | %s | %s |\n", r.SignA, r.SignB)
	fmt.Fprintf(&b, "| Element | %s | %s |\n", r.SignA.Element(), r.SignB.Element())
	fmt.Fprintf(&b, "| Life path | %d | %d |\n\n", r.LifePathA.Value, r.LifePathB.Value)
	fmt.Fprintf(&b, "- **Element harmony:** %d%%\n", r.ElementScore)
	fmt.Fprintf(&b, "- **Numerology match:** %d%%\n", r.LifePathScore)
	fmt.Fprintf(&b, "\n**Overall: %d%% (%s)**\n", r.Combined, r.Category)
	return b.String()
}

func newHoroscopeCommand() *cobra.Command {
	var dateFlag string
	cmd := &cobra.Command{
		Use:   "horoscope <sign>",
		Short: "Show the daily horoscope for a zodiac sign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sign, ok := astro.ParseSign(args[0])
			if !ok {
				return fmt.Errorf("unknown zodiac sign %q", args[0])
			}
			on := time.Now()
			if dateFlag != "" {
				parsed, err := time.Parse(calendarLayout, dateFlag)
				if err != nil {
					return fmt.Errorf("--date must be DD-MM-YYYY: %q", dateFlag)
				}
				on = parsed
			}
			printMarkdown(horoscopeDoc(astro.DailyHoroscope(sign, on)))
			return nil
		},
	}
	cmd.Flags().StringVar(&dateFlag, "date", "", "day to read, DD-MM-YYYY (default today)")
	return cmd
}

func horoscopeDoc(h astro.Horoscope) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s, %s\n\n", h.Sign, h.Date.Format("January 2"))
	fmt.Fprintf(&b, "%s\n", h.Text)
	return b.String()
}

func joinNames[T ~string](items []T) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = string(item)
	}
	return strings.Join(parts, ", ")
}
