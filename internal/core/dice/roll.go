// Package dice implements the d20 check primitive used by action resolution.
package dice

import "math/rand"

// Kind classifies the result of a d20 check.
type Kind string

const (
	// KindCritSuccess is a natural 20.
	KindCritSuccess Kind = "crit_success"
	// KindSuccess meets or beats the difficulty class.
	KindSuccess Kind = "success"
	// KindFail falls short of the difficulty class.
	KindFail Kind = "fail"
	// KindCritFail is a natural 1.
	KindCritFail Kind = "crit_fail"
)

// Sides is the number of faces on the check die.
const Sides = 20

// Classify maps a raw die value to an outcome kind for the given difficulty
// class.
//
// # Exhaustiveness
//
// Classification is exhaustive and mutually exclusive for every dc. The crit
// bounds take precedence over the numeric comparison, so a natural 20 is
// always a critical success and a natural 1 is always a critical failure,
// even at degenerate difficulty classes (dc <= 1 or dc > 20).
func Classify(roll, dc int) Kind {
	switch {
	case roll >= Sides:
		return KindCritSuccess
	case roll == 1:
		return KindCritFail
	case roll >= dc:
		return KindSuccess
	default:
		return KindFail
	}
}

// Roll draws a single uniform die value in [1, Sides].
// Roll is deterministic with respect to the provided rng.
func Roll(rng *rand.Rand) int {
	return rng.Intn(Sides) + 1
}

// RollCheck draws a single die and classifies it against dcBase+dcOffset.
func RollCheck(rng *rand.Rand, dcBase, dcOffset int) (int, Kind) {
	roll := Roll(rng)
	return roll, Classify(roll, dcBase+dcOffset)
}

// Succeeded reports whether the kind counts as a success.
func (k Kind) Succeeded() bool {
	return k == KindSuccess || k == KindCritSuccess
}

// Valid reports whether the kind is one of the four outcome kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCritSuccess, KindSuccess, KindFail, KindCritFail:
		return true
	}
	return false
}
