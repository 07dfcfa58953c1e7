package astro

import "time"

// Reading is the complete daily reading for one birth date: the sign and
// element, the day's horoscope, the life path with its interpretation, and
// the day's lucky number.
type Reading struct {
	Date        BirthDate
	Sign        Sign
	Element     Element
	Horoscope   Horoscope
	LifePath    LifePath
	Meaning     string
	LuckyNumber int
}

// ReadingFor assembles the daily reading for a birth date on a given day.
// Everything here is deterministic in (d, on).
func ReadingFor(d BirthDate, on time.Time) Reading {
	sign := Classify(d)
	lp := ComputeLifePath(d)
	return Reading{
		Date:        d,
		Sign:        sign,
		Element:     sign.Element(),
		Horoscope:   DailyHoroscope(sign, on),
		LifePath:    lp,
		Meaning:     LifePathMeaning(lp.Value),
		LuckyNumber: LuckyNumber(lp.Value, on),
	}
}

// SignProfile describes a sign independent of any particular birth date.
type SignProfile struct {
	Sign               Sign
	Element            Element
	DateRange          string
	CompatibleElements []Element
	CompatibleSigns    []Sign
}

// ProfileOf returns the static profile for a sign.
func ProfileOf(s Sign) SignProfile {
	return SignProfile{
		Sign:               s,
		Element:            s.Element(),
		DateRange:          s.DateRange(),
		CompatibleElements: CompatibleElements(s.Element()),
		CompatibleSigns:    CompatibleSigns(s),
	}
}
