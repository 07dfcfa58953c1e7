package astro

import (
	"testing"
)

func TestElementAffinityTable(t *testing.T) {
	for _, a := range allElements {
		for _, b := range allElements {
			ab := elementAffinity[a][b]
			ba := elementAffinity[b][a]
			if ab != ba {
				t.Errorf("elementAffinity[%v][%v] = %d but [%v][%v] = %d", a, b, ab, b, a, ba)
			}
			if ab < 0 || ab > 100 {
				t.Errorf("elementAffinity[%v][%v] = %d, outside 0-100", a, b, ab)
			}
		}
		if same := elementAffinity[a][a]; same != 75 {
			t.Errorf("elementAffinity[%v][%v] = %d, want 75", a, a, same)
		}
	}

	if got := elementAffinity[Fire][Air]; got != 90 {
		t.Errorf("Fire-Air affinity = %d, want 90", got)
	}
	if got := elementAffinity[Earth][Water]; got != 90 {
		t.Errorf("Earth-Water affinity = %d, want 90", got)
	}
	if got := elementAffinity[Fire][Water]; got != 30 {
		t.Errorf("Fire-Water affinity = %d, want 30", got)
	}
	if got := elementAffinity[Earth][Air]; got != 30 {
		t.Errorf("Earth-Air affinity = %d, want 30", got)
	}
}

func TestScoreLifePaths(t *testing.T) {
	tests := []struct {
		name string
		a    int
		b    int
		want int
	}{
		{name: "equal single digit", a: 7, b: 7, want: 100},
		{name: "equal masters", a: 11, b: 11, want: 100},
		{name: "equal master builders", a: 22, b: 22, want: 100},
		{name: "equal master teachers", a: 33, b: 33, want: 100},
		{name: "adjacent", a: 3, b: 4, want: 90},
		{name: "spread of four", a: 3, b: 7, want: 60},
		{name: "maximum single digit spread", a: 1, b: 9, want: 20},
		{name: "different masters floor at zero", a: 11, b: 22, want: 0},
		{name: "master versus single digit", a: 11, b: 2, want: 10},
		{name: "order does not matter", a: 9, b: 1, want: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreLifePaths(tt.a, tt.b); got != tt.want {
				t.Errorf("scoreLifePaths(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestScoreIdenticalDates(t *testing.T) {
	v := testValidator(t)
	d, err := v.ParseDate("25-12-1990")
	if err != nil {
		t.Fatalf("ParseDate returned %v", err)
	}

	report := Score(d, d)

	if report.SignA != Capricorn || report.SignB != Capricorn {
		t.Errorf("signs = %v, %v, want Capricorn twice", report.SignA, report.SignB)
	}
	if report.LifePathA.Value != 11 || report.LifePathB.Value != 11 {
		t.Errorf("life paths = %d, %d, want 11 twice", report.LifePathA.Value, report.LifePathB.Value)
	}
	if report.ElementScore != 75 {
		t.Errorf("ElementScore = %d, want 75", report.ElementScore)
	}
	if report.LifePathScore != 100 {
		t.Errorf("LifePathScore = %d, want 100", report.LifePathScore)
	}
	if report.Combined != 88 {
		t.Errorf("Combined = %d, want 88", report.Combined)
	}
	if report.Category != CategoryExcellent {
		t.Errorf("Category = %v, want %v", report.Category, CategoryExcellent)
	}
}

func TestScoreCrossElements(t *testing.T) {
	v := testValidator(t)

	// 01-04-1990 is Aries (Fire) with life path 24 -> 6.
	// 01-02-1990 is Aquarius (Air) with life path 22, a master.
	aries, err := v.ParseDate("01-04-1990")
	if err != nil {
		t.Fatalf("ParseDate returned %v", err)
	}
	aquarius, err := v.ParseDate("01-02-1990")
	if err != nil {
		t.Fatalf("ParseDate returned %v", err)
	}

	report := Score(aries, aquarius)

	if report.SignA != Aries || report.SignB != Aquarius {
		t.Fatalf("signs = %v, %v, want Aries, Aquarius", report.SignA, report.SignB)
	}
	if report.ElementScore != 90 {
		t.Errorf("ElementScore = %d, want 90", report.ElementScore)
	}
	if report.LifePathScore != 0 {
		t.Errorf("LifePathScore = %d, want 0", report.LifePathScore)
	}
	if report.Combined != 45 {
		t.Errorf("Combined = %d, want 45", report.Combined)
	}
	if report.Category != CategoryModerate {
		t.Errorf("Category = %v, want %v", report.Category, CategoryModerate)
	}
}

// TestScoreSymmetry checks that swapping the arguments mirrors the echoed
// fields and leaves every score and the category unchanged.
func TestScoreSymmetry(t *testing.T) {
	v := testValidator(t)

	raws := []string{
		"25-12-1990",
		"01-04-1985",
		"15-08-2000",
		"29-02-2004",
		"21-06-1977",
		"03-11-1969",
	}

	var dates []BirthDate
	for _, raw := range raws {
		d, err := v.ParseDate(raw)
		if err != nil {
			t.Fatalf("ParseDate(%q) returned %v", raw, err)
		}
		dates = append(dates, d)
	}

	for i, a := range dates {
		for _, b := range dates[i:] {
			ab := Score(a, b)
			ba := Score(b, a)
			if ab.ElementScore != ba.ElementScore {
				t.Errorf("Score(%v, %v).ElementScore = %d, reversed %d", a, b, ab.ElementScore, ba.ElementScore)
			}
			if ab.LifePathScore != ba.LifePathScore {
				t.Errorf("Score(%v, %v).LifePathScore = %d, reversed %d", a, b, ab.LifePathScore, ba.LifePathScore)
			}
			if ab.Combined != ba.Combined {
				t.Errorf("Score(%v, %v).Combined = %d, reversed %d", a, b, ab.Combined, ba.Combined)
			}
			if ab.Category != ba.Category {
				t.Errorf("Score(%v, %v).Category = %v, reversed %v", a, b, ab.Category, ba.Category)
			}
			if ab.SignA != ba.SignB || ab.SignB != ba.SignA {
				t.Errorf("Score(%v, %v) signs not mirrored: %v/%v vs %v/%v", a, b, ab.SignA, ab.SignB, ba.SignA, ba.SignB)
			}
		}
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		score int
		want  Category
	}{
		{score: 100, want: CategoryExcellent},
		{score: 88, want: CategoryExcellent},
		{score: 80, want: CategoryExcellent},
		{score: 79, want: CategoryGood},
		{score: 60, want: CategoryGood},
		{score: 59, want: CategoryModerate},
		{score: 45, want: CategoryModerate},
		{score: 40, want: CategoryModerate},
		{score: 39, want: CategoryChallenging},
		{score: 0, want: CategoryChallenging},
	}

	for _, tt := range tests {
		if got := Categorize(tt.score); got != tt.want {
			t.Errorf("Categorize(%d) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestCompatibleElements(t *testing.T) {
	tests := []struct {
		element Element
		want    []Element
	}{
		{element: Fire, want: []Element{Fire, Air}},
		{element: Earth, want: []Element{Earth, Water}},
		{element: Air, want: []Element{Fire, Air}},
		{element: Water, want: []Element{Earth, Water}},
	}

	for _, tt := range tests {
		got := CompatibleElements(tt.element)
		if len(got) != len(tt.want) {
			t.Fatalf("CompatibleElements(%v) = %v, want %v", tt.element, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("CompatibleElements(%v) = %v, want %v", tt.element, got, tt.want)
			}
		}
	}
}

func TestCompatibleSigns(t *testing.T) {
	got := CompatibleSigns(Capricorn)
	want := []Sign{Taurus, Cancer, Virgo, Scorpio, Pisces}
	if len(got) != len(want) {
		t.Fatalf("CompatibleSigns(Capricorn) = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("CompatibleSigns(Capricorn) = %v, want %v", got, want)
		}
	}

	for _, s := range got {
		if s == Capricorn {
			t.Errorf("CompatibleSigns(Capricorn) contains the sign itself")
		}
	}
}
