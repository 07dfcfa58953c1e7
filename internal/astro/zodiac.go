package astro

import (
	"strconv"
	"strings"
)

// Element is a zodiac sign's natural-affinity category.
type Element string

// The four classical elements.
const (
	Fire  Element = "Fire"
	Earth Element = "Earth"
	Air   Element = "Air"
	Water Element = "Water"
)

// Sign is one of the twelve zodiac signs.
type Sign string

// The twelve signs in wheel order.
const (
	Aries       Sign = "Aries"
	Taurus      Sign = "Taurus"
	Gemini      Sign = "Gemini"
	Cancer      Sign = "Cancer"
	Leo         Sign = "Leo"
	Virgo       Sign = "Virgo"
	Libra       Sign = "Libra"
	Scorpio     Sign = "Scorpio"
	Sagittarius Sign = "Sagittarius"
	Capricorn   Sign = "Capricorn"
	Aquarius    Sign = "Aquarius"
	Pisces      Sign = "Pisces"
)

// AllSigns lists every sign in wheel order.
var AllSigns = [12]Sign{
	Aries, Taurus, Gemini, Cancer, Leo, Virgo,
	Libra, Scorpio, Sagittarius, Capricorn, Aquarius, Pisces,
}

type signRange struct {
	sign       Sign
	startMonth int
	startDay   int
	endMonth   int
	endDay     int
}

// signRanges partitions the calendar year exactly: every month/day pair falls
// in precisely one range. Capricorn is the one range that wraps the year
// boundary (startMonth > endMonth).
var signRanges = [12]signRange{
	{Aries, 3, 21, 4, 19},
	{Taurus, 4, 20, 5, 20},
	{Gemini, 5, 21, 6, 20},
	{Cancer, 6, 21, 7, 22},
	{Leo, 7, 23, 8, 22},
	{Virgo, 8, 23, 9, 22},
	{Libra, 9, 23, 10, 22},
	{Scorpio, 10, 23, 11, 21},
	{Sagittarius, 11, 22, 12, 21},
	{Capricorn, 12, 22, 1, 19},
	{Aquarius, 1, 20, 2, 18},
	{Pisces, 2, 19, 3, 20},
}

func (r signRange) contains(month, day int) bool {
	if r.startMonth <= r.endMonth {
		afterStart := month > r.startMonth || (month == r.startMonth && day >= r.startDay)
		beforeEnd := month < r.endMonth || (month == r.endMonth && day <= r.endDay)
		return afterStart && beforeEnd
	}
	// Wraps the year boundary: December tail or January head.
	return (month == r.startMonth && day >= r.startDay) ||
		(month == r.endMonth && day <= r.endDay)
}

// Classify maps a birth date to its zodiac sign. Classification is total over
// valid dates; only month and day matter. A constructed BirthDate always
// yields a non-empty sign; callers holding raw month/day pairs can detect a
// table gap through ClassifyMonthDay.
func Classify(d BirthDate) Sign {
	sign, _ := ClassifyMonthDay(d.Month(), d.Day())
	return sign
}

// ClassifyMonthDay classifies a bare month/day pair. The second return is
// false only if the pair falls outside every range, which for in-range input
// would mean the partition table itself is broken.
func ClassifyMonthDay(month, day int) (Sign, bool) {
	for _, r := range signRanges {
		if r.contains(month, day) {
			return r.sign, true
		}
	}
	return "", false
}

// Element returns the sign's classical element.
func (s Sign) Element() Element {
	switch s {
	case Aries, Leo, Sagittarius:
		return Fire
	case Taurus, Virgo, Capricorn:
		return Earth
	case Gemini, Libra, Aquarius:
		return Air
	case Cancer, Scorpio, Pisces:
		return Water
	}
	return ""
}

// Valid reports whether s is one of the twelve signs.
func (s Sign) Valid() bool {
	return s.Element() != ""
}

// DateRange formats the sign's calendar range for display, for example
// "Dec 22 - Jan 19".
func (s Sign) DateRange() string {
	for _, r := range signRanges {
		if r.sign == s {
			return monthAbbrev(r.startMonth) + " " + strconv.Itoa(r.startDay) +
				" - " + monthAbbrev(r.endMonth) + " " + strconv.Itoa(r.endDay)
		}
	}
	return ""
}

// ParseSign resolves a case-insensitive sign name.
func ParseSign(raw string) (Sign, bool) {
	token := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range AllSigns {
		if strings.ToLower(string(s)) == token {
			return s, true
		}
	}
	return "", false
}

func monthAbbrev(month int) string {
	return MonthName(month)[:3]
}
