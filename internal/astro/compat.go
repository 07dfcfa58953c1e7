package astro

import "math"

// Category labels a combined compatibility score.
type Category string

// Categories by combined score: >=80, 60-79, 40-59, <40.
const (
	CategoryExcellent   Category = "Excellent"
	CategoryGood        Category = "Good"
	CategoryModerate    Category = "Moderate"
	CategoryChallenging Category = "Challenging"
)

const (
	excellentMin = 80
	goodMin      = 60
	moderateMin  = 40
)

// elementAffinity scores every element pairing on a 0-100 scale. The natural
// pairings Fire-Air and Earth-Water score highest, the opposing pairings
// Fire-Water and Earth-Air lowest, same-element pairs share one moderate-high
// constant, and the remaining cross pairs sit in the middle. The table is
// symmetric; Score relies on that rather than normalizing argument order.
var elementAffinity = map[Element]map[Element]int{
	Fire:  {Fire: 75, Earth: 50, Air: 90, Water: 30},
	Earth: {Fire: 50, Earth: 75, Air: 30, Water: 90},
	Air:   {Fire: 90, Earth: 30, Air: 75, Water: 50},
	Water: {Fire: 30, Earth: 90, Air: 50, Water: 75},
}

// CompatibilityReport is the result of scoring two birth dates. The three
// score fields and the category are symmetric in the input dates; the echoed
// signs and life paths follow argument order.
type CompatibilityReport struct {
	SignA Sign
	SignB Sign

	LifePathA LifePath
	LifePathB LifePath

	ElementScore  int
	LifePathScore int
	Combined      int
	Category      Category
}

// Score computes the compatibility report for two validated birth dates.
// There is no failure path: classification is total and the scoring tables
// cover every element pair.
func Score(a, b BirthDate) CompatibilityReport {
	signA := Classify(a)
	signB := Classify(b)
	lpA := ComputeLifePath(a)
	lpB := ComputeLifePath(b)

	elementScore := elementAffinity[signA.Element()][signB.Element()]
	lifePathScore := scoreLifePaths(lpA.Value, lpB.Value)
	combined := int(math.Round(float64(elementScore+lifePathScore) / 2))

	return CompatibilityReport{
		SignA:         signA,
		SignB:         signB,
		LifePathA:     lpA,
		LifePathB:     lpB,
		ElementScore:  elementScore,
		LifePathScore: lifePathScore,
		Combined:      combined,
		Category:      Categorize(combined),
	}
}

// scoreLifePaths applies 100 - 10*|a-b|, floored at zero. Two equal master
// numbers are pinned to 100 explicitly: master equality is a stronger signal
// than the distance formula happens to assign it.
func scoreLifePaths(a, b int) int {
	if a == b && IsMasterNumber(a) {
		return 100
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	score := 100 - 10*diff
	if score < 0 {
		return 0
	}
	return score
}

var allElements = [4]Element{Fire, Earth, Air, Water}

// CompatibleElements lists the elements an element pairs well with, meaning
// those at or above the same-element affinity. Each element ends up with
// itself plus its natural partner.
func CompatibleElements(e Element) []Element {
	var out []Element
	for _, other := range allElements {
		if elementAffinity[e][other] >= elementAffinity[e][e] {
			out = append(out, other)
		}
	}
	return out
}

// CompatibleSigns lists the other signs whose element pairs well with the
// given sign's, in wheel order.
func CompatibleSigns(s Sign) []Sign {
	compatible := map[Element]bool{}
	for _, e := range CompatibleElements(s.Element()) {
		compatible[e] = true
	}
	var out []Sign
	for _, other := range AllSigns {
		if other != s && compatible[other.Element()] {
			out = append(out, other)
		}
	}
	return out
}

// Categorize maps a combined score to its category label.
func Categorize(score int) Category {
	switch {
	case score >= excellentMin:
		return CategoryExcellent
	case score >= goodMin:
		return CategoryGood
	case score >= moderateMin:
		return CategoryModerate
	default:
		return CategoryChallenging
	}
}
