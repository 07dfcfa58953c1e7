// Package astro implements the astrology and numerology calculators: birth
// date validation, zodiac classification, life path reduction, compatibility
// scoring, and horoscope composition.
//
// Every function in this package is pure. Calculations never touch a clock or
// any other ambient state directly; where "today" matters (year bounds, daily
// horoscopes) the caller passes time in, so results are reproducible.
package astro

import (
	"strconv"
	"strings"
	"time"

	astraerrors "astra/internal/errors"
)

// DefaultMinYear is the lower bound for accepted birth years when the
// validator is not configured otherwise.
const DefaultMinYear = 1900

// BirthDate is an immutable Gregorian calendar date. The zero value is not a
// valid date; construct one through a Validator or the package-level Parse
// helpers, which guarantee the fields form a real calendar date within the
// configured year range.
type BirthDate struct {
	day   int
	month int
	year  int
}

// Day returns the day of month, 1-31.
func (d BirthDate) Day() int { return d.day }

// Month returns the month, 1-12.
func (d BirthDate) Month() int { return d.month }

// Year returns the four-digit year.
func (d BirthDate) Year() int { return d.year }

// IsZero reports whether d is the zero value rather than a constructed date.
func (d BirthDate) IsZero() bool {
	return d.day == 0 && d.month == 0 && d.year == 0
}

// String formats the date as DD-MM-YYYY, the same shape ParseDate accepts.
func (d BirthDate) String() string {
	return pad2(d.day) + "-" + pad2(d.month) + "-" + strconv.Itoa(d.year)
}

// Equal reports whether two dates name the same calendar day.
func (d BirthDate) Equal(other BirthDate) bool {
	return d.day == other.day && d.month == other.month && d.year == other.year
}

// Before reports whether d is chronologically earlier than other.
func (d BirthDate) Before(other BirthDate) bool {
	if d.year != other.year {
		return d.year < other.year
	}
	if d.month != other.month {
		return d.month < other.month
	}
	return d.day < other.day
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// IsLeapYear applies the Gregorian rule: divisible by 4 and not by 100,
// unless also divisible by 400.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

var monthDays = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// DaysInMonth returns the number of days in the given month of the given
// year. Month must be 1-12.
func DaysInMonth(month, year int) int {
	if month == 2 && IsLeapYear(year) {
		return 29
	}
	return monthDays[month]
}

// maxDaysInMonth is the month's length in its longest possible year, used to
// reject impossible day/month pairs before the year is known.
func maxDaysInMonth(month int) int {
	if month == 2 {
		return 29
	}
	return monthDays[month]
}

// monthAliases maps accepted month spellings to month numbers.
var monthAliases = map[string]int{
	"january": 1, "jan": 1, "february": 2, "feb": 2,
	"march": 3, "mar": 3, "april": 4, "apr": 4,
	"may": 5, "june": 6, "jun": 6, "july": 7, "jul": 7,
	"august": 8, "aug": 8, "september": 9, "sep": 9,
	"october": 10, "oct": 10, "november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

// MonthName returns the English month name for a 1-12 month number, or an
// empty string outside that range.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return time.Month(month).String()
}

// Validator parses and validates birth date input against a year range
// anchored at an injected clock.
type Validator struct {
	minYear int
	now     func() time.Time
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithMinYear sets the earliest accepted birth year.
func WithMinYear(year int) ValidatorOption {
	return func(v *Validator) {
		if year > 0 {
			v.minYear = year
		}
	}
}

// WithClock sets the clock used to derive the current year and the
// not-in-the-future check.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// NewValidator creates a Validator with the default year range
// [DefaultMinYear, current year] and the wall clock.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		minYear: DefaultMinYear,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ParseDay parses a raw day token. It accepts 1-31; whether that day exists
// in the eventual month and year is checked by CheckDayMonth and Compose.
func (v *Validator) ParseDay(raw string) (int, error) {
	token := strings.TrimSpace(raw)
	day, err := strconv.Atoi(token)
	if err != nil {
		return 0, astraerrors.NewInvalidDatef(astraerrors.FieldDay, "%q is not a number", token)
	}
	if day < 1 || day > 31 {
		return 0, astraerrors.NewInvalidDate(astraerrors.FieldDay, "must be between 1 and 31")
	}
	return day, nil
}

// ParseMonth parses a raw month token: a 1-12 number or a case-insensitive
// English month name or three-letter abbreviation.
func (v *Validator) ParseMonth(raw string) (int, error) {
	token := strings.ToLower(strings.TrimSpace(raw))
	if token == "" {
		return 0, astraerrors.NewInvalidDate(astraerrors.FieldMonth, "must be a number between 1 and 12 or a month name")
	}
	if month, err := strconv.Atoi(token); err == nil {
		if month < 1 || month > 12 {
			return 0, astraerrors.NewInvalidDate(astraerrors.FieldMonth, "must be between 1 and 12")
		}
		return month, nil
	}
	if month, ok := monthAliases[token]; ok {
		return month, nil
	}
	return 0, astraerrors.NewInvalidDatef(astraerrors.FieldMonth, "%q is not a month", token)
}

// ParseYear parses a raw year token and checks the configured bounds.
func (v *Validator) ParseYear(raw string) (int, error) {
	token := strings.TrimSpace(raw)
	year, err := strconv.Atoi(token)
	if err != nil {
		return 0, astraerrors.NewInvalidDatef(astraerrors.FieldYear, "%q is not a number", token)
	}
	currentYear := v.now().Year()
	if year < v.minYear || year > currentYear {
		return 0, astraerrors.NewInvalidDatef(astraerrors.FieldYear, "must be between %d and %d", v.minYear, currentYear)
	}
	return year, nil
}

// CheckDayMonth rejects day/month pairs that no year can make valid, such as
// 31 April or 30 February. 29 February passes here; leap years are settled
// once the year is known.
func (v *Validator) CheckDayMonth(day, month int) error {
	if max := maxDaysInMonth(month); day > max {
		return astraerrors.NewInvalidDatef(astraerrors.FieldDay,
			"%s has only %d days", MonthName(month), max)
	}
	return nil
}

// Compose builds a BirthDate from already-numeric fields, running the full
// cross-field validation: field ranges, month length for the exact year, and
// the not-in-the-future rule. It never returns a partial date.
func (v *Validator) Compose(day, month, year int) (BirthDate, error) {
	if month < 1 || month > 12 {
		return BirthDate{}, astraerrors.NewInvalidDate(astraerrors.FieldMonth, "must be between 1 and 12")
	}
	currentYear := v.now().Year()
	if year < v.minYear || year > currentYear {
		return BirthDate{}, astraerrors.NewInvalidDatef(astraerrors.FieldYear, "must be between %d and %d", v.minYear, currentYear)
	}
	if day < 1 {
		return BirthDate{}, astraerrors.NewInvalidDate(astraerrors.FieldDay, "must be between 1 and 31")
	}
	if max := DaysInMonth(month, year); day > max {
		return BirthDate{}, astraerrors.NewInvalidDatef(astraerrors.FieldDay,
			"%s %d has only %d days", MonthName(month), year, max)
	}
	date := BirthDate{day: day, month: month, year: year}
	now := v.now()
	today := BirthDate{day: now.Day(), month: int(now.Month()), year: now.Year()}
	if today.Before(date) {
		return BirthDate{}, astraerrors.NewInvalidDate(astraerrors.FieldDate, "cannot be in the future")
	}
	return date, nil
}

// Parse parses the three raw tokens of a birth date in one call.
func (v *Validator) Parse(rawDay, rawMonth, rawYear string) (BirthDate, error) {
	day, err := v.ParseDay(rawDay)
	if err != nil {
		return BirthDate{}, err
	}
	month, err := v.ParseMonth(rawMonth)
	if err != nil {
		return BirthDate{}, err
	}
	year, err := v.ParseYear(rawYear)
	if err != nil {
		return BirthDate{}, err
	}
	return v.Compose(day, month, year)
}

// ParseDate parses a full date written as DD-MM-YYYY with numeric fields.
func (v *Validator) ParseDate(raw string) (BirthDate, error) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 3 {
		return BirthDate{}, astraerrors.NewInvalidDate(astraerrors.FieldDate, "format must be DD-MM-YYYY")
	}
	day, err := v.ParseDay(parts[0])
	if err != nil {
		return BirthDate{}, err
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return BirthDate{}, astraerrors.NewInvalidDatef(astraerrors.FieldMonth, "%q is not a number", strings.TrimSpace(parts[1]))
	}
	if month < 1 || month > 12 {
		return BirthDate{}, astraerrors.NewInvalidDate(astraerrors.FieldMonth, "must be between 1 and 12")
	}
	year, err := v.ParseYear(parts[2])
	if err != nil {
		return BirthDate{}, err
	}
	return v.Compose(day, month, year)
}

var defaultValidator = NewValidator()

// Parse parses three raw tokens with the default validator.
func Parse(rawDay, rawMonth, rawYear string) (BirthDate, error) {
	return defaultValidator.Parse(rawDay, rawMonth, rawYear)
}

// ParseDate parses a DD-MM-YYYY string with the default validator.
func ParseDate(raw string) (BirthDate, error) {
	return defaultValidator.ParseDate(raw)
}

// NewBirthDate builds a BirthDate from numeric fields with the default
// validator.
func NewBirthDate(day, month, year int) (BirthDate, error) {
	return defaultValidator.Compose(day, month, year)
}

// FromFields rebuilds a BirthDate from fields that already passed input
// validation once, for example when rehydrating a stored record. It checks
// calendar validity only; the year bounds and the future-date rule belong to
// the input path and are not re-applied here.
func FromFields(day, month, year int) (BirthDate, error) {
	if year < 1 {
		return BirthDate{}, astraerrors.NewInvalidDate(astraerrors.FieldYear, "must be positive")
	}
	if month < 1 || month > 12 {
		return BirthDate{}, astraerrors.NewInvalidDate(astraerrors.FieldMonth, "must be between 1 and 12")
	}
	if day < 1 {
		return BirthDate{}, astraerrors.NewInvalidDate(astraerrors.FieldDay, "must be between 1 and 31")
	}
	if max := DaysInMonth(month, year); day > max {
		return BirthDate{}, astraerrors.NewInvalidDatef(astraerrors.FieldDay,
			"%s %d has only %d days", MonthName(month), year, max)
	}
	return BirthDate{day: day, month: month, year: year}, nil
}
