package astro

import (
	"strings"
	"testing"
	"time"
)

func TestDailyHoroscopeDeterministic(t *testing.T) {
	day := time.Date(2026, time.June, 15, 9, 30, 0, 0, time.UTC)
	laterSameDay := time.Date(2026, time.June, 15, 23, 59, 0, 0, time.UTC)

	for _, sign := range AllSigns {
		first := DailyHoroscope(sign, day)
		second := DailyHoroscope(sign, laterSameDay)
		if first.Text != second.Text {
			t.Errorf("%v horoscope changed within one day: %q vs %q", sign, first.Text, second.Text)
		}

		templates := horoscopeTemplates[sign]
		found := false
		for _, tmpl := range templates {
			if first.Text == tmpl {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("%v horoscope %q is not one of its templates", sign, first.Text)
		}
	}
}

// TestDailyHoroscopeRotates checks that a sign does not serve one template
// forever. Thirty consecutive days hashing to a single index would mean the
// day is not feeding the pick.
func TestDailyHoroscopeRotates(t *testing.T) {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i := 0; i < 30; i++ {
		seen[DailyHoroscope(Leo, start.AddDate(0, 0, i)).Text] = true
	}
	if len(seen) < 2 {
		t.Errorf("Leo served %d distinct horoscopes over 30 days, want at least 2", len(seen))
	}
}

func TestDailyHoroscopeUnknownSign(t *testing.T) {
	got := DailyHoroscope(Sign("Ophiuchus"), time.Now())
	if got.Text != horoscopeFallback {
		t.Errorf("unknown sign horoscope = %q, want fallback", got.Text)
	}
}

func TestLifePathMeaning(t *testing.T) {
	tests := []struct {
		n        int
		contains string
	}{
		{n: 1, contains: "The Leader"},
		{n: 2, contains: "The Peacemaker"},
		{n: 3, contains: "The Creative"},
		{n: 4, contains: "The Builder"},
		{n: 5, contains: "The Explorer"},
		{n: 6, contains: "The Nurturer"},
		{n: 7, contains: "The Seeker"},
		{n: 8, contains: "The Powerhouse"},
		{n: 9, contains: "The Humanitarian"},
		{n: 11, contains: "The Illuminator"},
		{n: 22, contains: "The Master Builder"},
		{n: 33, contains: "The Master Teacher"},
		{n: 13, contains: "unique and special"},
		{n: 0, contains: "unique and special"},
	}

	for _, tt := range tests {
		got := LifePathMeaning(tt.n)
		if !strings.Contains(got, tt.contains) {
			t.Errorf("LifePathMeaning(%d) = %q, want to contain %q", tt.n, got, tt.contains)
		}
	}
}

func TestReadingFor(t *testing.T) {
	v := testValidator(t)
	d, err := v.ParseDate("25-12-1990")
	if err != nil {
		t.Fatalf("ParseDate returned %v", err)
	}
	on := time.Date(2026, time.June, 15, 8, 0, 0, 0, time.UTC)

	reading := ReadingFor(d, on)

	if reading.Sign != Capricorn {
		t.Errorf("Sign = %v, want Capricorn", reading.Sign)
	}
	if reading.Element != Earth {
		t.Errorf("Element = %v, want Earth", reading.Element)
	}
	if reading.LifePath.Value != 11 {
		t.Errorf("LifePath.Value = %d, want 11", reading.LifePath.Value)
	}
	if !strings.Contains(reading.Meaning, "The Illuminator") {
		t.Errorf("Meaning = %q, want the master number text", reading.Meaning)
	}
	if reading.LuckyNumber != 7 {
		t.Errorf("LuckyNumber = %d, want 7", reading.LuckyNumber)
	}
	if reading.Horoscope.Sign != Capricorn {
		t.Errorf("Horoscope.Sign = %v, want Capricorn", reading.Horoscope.Sign)
	}

	again := ReadingFor(d, on)
	if again.Horoscope.Text != reading.Horoscope.Text || again.LuckyNumber != reading.LuckyNumber {
		t.Errorf("ReadingFor is not deterministic for fixed inputs")
	}
}

func TestProfileOf(t *testing.T) {
	profile := ProfileOf(Capricorn)

	if profile.Element != Earth {
		t.Errorf("Element = %v, want Earth", profile.Element)
	}
	if profile.DateRange != "Dec 22 - Jan 19" {
		t.Errorf("DateRange = %q, want %q", profile.DateRange, "Dec 22 - Jan 19")
	}
	wantElements := []Element{Earth, Water}
	if len(profile.CompatibleElements) != len(wantElements) {
		t.Fatalf("CompatibleElements = %v, want %v", profile.CompatibleElements, wantElements)
	}
	for i := range wantElements {
		if profile.CompatibleElements[i] != wantElements[i] {
			t.Fatalf("CompatibleElements = %v, want %v", profile.CompatibleElements, wantElements)
		}
	}
	wantSigns := []Sign{Taurus, Cancer, Virgo, Scorpio, Pisces}
	if len(profile.CompatibleSigns) != len(wantSigns) {
		t.Fatalf("CompatibleSigns = %v, want %v", profile.CompatibleSigns, wantSigns)
	}
	for i := range wantSigns {
		if profile.CompatibleSigns[i] != wantSigns[i] {
			t.Fatalf("CompatibleSigns = %v, want %v", profile.CompatibleSigns, wantSigns)
		}
	}
}
