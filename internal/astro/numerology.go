package astro

import "time"

// LifePath is a numerology life path value together with its calculation
// trace: every intermediate value from the initial digit sum of the birth
// date down to the final value, both ends included. The final value is
// 1-9 or one of the master numbers 11, 22, 33.
type LifePath struct {
	Value int
	Trace []int
}

// IsMaster reports whether the final value is a master number.
func (lp LifePath) IsMaster() bool {
	return IsMasterNumber(lp.Value)
}

// IsMasterNumber reports whether n is one of the master numbers 11, 22, 33,
// which are exempt from digit-sum reduction.
func IsMasterNumber(n int) bool {
	return n == 11 || n == 22 || n == 33
}

// ComputeLifePath derives the life path number of a birth date: the digits of
// DDMMYYYY are summed, then the sum is reduced by repeated digit summing
// while it is greater than 9 and not a master number.
func ComputeLifePath(d BirthDate) LifePath {
	initial := digitSum(d.Day()) + digitSum(d.Month()) + digitSum(d.Year())
	return Reduce(initial)
}

// Reduce runs the life path reduction on an arbitrary positive integer and
// records the trace. Master numbers stop the reduction: Reduce(29) ends at
// 11, while Reduce(49) passes through 13 to 4. Digit summing strictly
// decreases any multi-digit value, so the loop terminates for every positive
// input.
func Reduce(n int) LifePath {
	trace := []int{n}
	for n > 9 && !IsMasterNumber(n) {
		n = digitSum(n)
		trace = append(trace, n)
	}
	return LifePath{Value: n, Trace: trace}
}

func digitSum(n int) int {
	sum := 0
	for n > 0 {
		sum += n % 10
		n /= 10
	}
	return sum
}

// LuckyNumber derives a 1-50 lucky number from a life path value and a seed
// date, usually today. The same inputs always produce the same number.
func LuckyNumber(lifePath int, seed time.Time) int {
	luckySeed := lifePath + seed.Day() + int(seed.Month()) + seed.Year()%100
	return (luckySeed*7)%50 + 1
}
