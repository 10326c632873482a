package rating

import (
	"math"
	"time"
)

// Params holds every tunable of the rating system. Defaults mirror the
// platform schema; all of them are swappable via config without touching
// call sites.
type Params struct {
	DefaultUserRating int
	DefaultTestRating int
	DefaultVolatility float64

	UserKFactor int
	TestKFactor int

	MinRating int
	MaxRating int

	// LowSampleAttempts is the attempt count under which a participant is
	// considered under-sampled and gets LowSampleBoost added to its
	// volatility multiplier.
	LowSampleAttempts int
	LowSampleBoost    float64

	// StaleAfter is how long a participant can sit idle before StaleBoost
	// kicks in.
	StaleAfter time.Duration
	StaleBoost float64
}

func DefaultParams() Params {
	return Params{
		DefaultUserRating: 1200,
		DefaultTestRating: 1400,
		DefaultVolatility: 1.0,
		UserKFactor:       32,
		TestKFactor:       16,
		MinRating:         400,
		MaxRating:         3000,
		LowSampleAttempts: 10,
		LowSampleBoost:    0.5,
		StaleAfter:        90 * 24 * time.Hour,
		StaleBoost:        0.5,
	}
}

// ExpectedScore is the standard logistic expectation for `current` against
// `opposing`: 1 / (1 + 10^((opposing-current)/400)). Always in (0,1).
func ExpectedScore(current, opposing int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(opposing-current)/400.0))
}

// VolatilityMultiplier starts from the participant's stored volatility and
// adds independent boosts for under-sampling and staleness. A zero
// lastActive (never played) earns no staleness boost; the low-sample boost
// already covers newcomers.
func (p Params) VolatilityMultiplier(base float64, attempts int, lastActive, now time.Time) float64 {
	m := base
	if attempts < p.LowSampleAttempts {
		m += p.LowSampleBoost
	}
	if !lastActive.IsZero() && now.Sub(lastActive) > p.StaleAfter {
		m += p.StaleBoost
	}
	return m
}

// NextRating applies one update: round(current + k*vol*(actual-expected)),
// clamped to [MinRating, MaxRating]. Pure; callers guarantee finite inputs.
func (p Params) NextRating(current, opposing int, actual float64, kFactor int, volatility float64) int {
	expected := ExpectedScore(current, opposing)
	next := int(math.Round(float64(current) + float64(kFactor)*volatility*(actual-expected)))
	return p.clamp(next)
}

func (p Params) clamp(r int) int {
	if r < p.MinRating {
		return p.MinRating
	}
	if r > p.MaxRating {
		return p.MaxRating
	}
	return r
}
