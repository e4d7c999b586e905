package usage

import (
	"errors"
	"time"
)

var (
	ErrZeroCycle     = errors.New("billing cycle has zero length")
	ErrZeroAllowance = errors.New("usage allowance is zero")
)

// endOfDay is added to the cycle length because CycleEnd is the first
// instant of the last day, not its end.
const endOfDay = 24 * time.Hour

// Summary compares how far into the billing cycle a Usage was captured with
// how much of the allowance was used.
type Summary struct {
	Usage

	CycleHours   float64
	ElapsedHours float64

	PercentElapsed float64
	PercentUsed    float64
}

// Calculate computes the Summary for u. Elapsed time is not clamped to the
// cycle, so a capture time outside the cycle yields a percentage below 0 or
// above 100.
//
// It returns ErrZeroCycle or ErrZeroAllowance instead of dividing by zero.
func Calculate(u *Usage) (Summary, error) {
	cycle := u.CycleEnd.Sub(u.CycleStart) + endOfDay
	if cycle == 0 {
		return Summary{}, ErrZeroCycle
	}
	if u.Total == 0 {
		return Summary{}, ErrZeroAllowance
	}
	elapsed := u.CapturedAt.Sub(u.CycleStart)

	s := Summary{
		Usage:        *u,
		CycleHours:   cycle.Hours(),
		ElapsedHours: elapsed.Hours(),
	}
	s.PercentElapsed = s.ElapsedHours / s.CycleHours * 100
	s.PercentUsed = u.Used / u.Total * 100
	return s, nil
}
