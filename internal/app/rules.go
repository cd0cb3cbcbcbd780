package app

import "time"

// Rules are the scoring constants for the competition.
type Rules struct {
	BasePoints    int
	DecayInterval time.Duration
	WrongPenalty  int
	AuthorBonus   int
	MaxDecay      time.Duration
	Window        time.Duration
}

// DefaultRules mirrors the long-running competition settings: 1000 base
// points, one point lost every two minutes, decay capped at four hours,
// 50-point wrong-answer penalty, 20-point author bonus, 24-hour window.
func DefaultRules() Rules {
	return Rules{
		BasePoints:    1000,
		DecayInterval: 2 * time.Minute,
		WrongPenalty:  50,
		AuthorBonus:   20,
		MaxDecay:      4 * time.Hour,
		Window:        24 * time.Hour,
	}
}

// Score computes the decayed points for a correct attempt at now. Decay is
// monotonic, freezes after MaxDecay, and floors at zero.
func (r Rules) Score(opensAt, now time.Time) int {
	elapsed := now.Sub(opensAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > r.MaxDecay {
		elapsed = r.MaxDecay
	}
	steps := int(elapsed / r.DecayInterval)
	points := r.BasePoints - steps
	if points < 0 {
		points = 0
	}
	return points
}
