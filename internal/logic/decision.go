package logic

import (
	"fmt"
	"strconv"

	"github.com/sweeney/dreadpi/internal/fault"
	"github.com/sweeney/dreadpi/internal/validate"
)

// ParseWatts turns a raw source reading into a non-negative watt figure.
func ParseWatts(raw string) (int, error) {
	if !validate.IsInteger(raw) {
		return 0, fmt.Errorf("%w: energy reading %q is not a number", fault.ErrValidation, raw)
	}
	w, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: energy reading %q out of range", fault.ErrValidation, raw)
	}
	if w < 0 {
		return 0, fmt.Errorf("%w: invalid energy reading %d", fault.ErrValidation, w)
	}
	return w, nil
}

// Decide maps a validated watt reading to a level.
//
//	w < low          -> Moderate
//	low <= w < high  -> Severe
//	w >= high        -> Unrestricted
//
// The bands cover every w >= 0. Anything else is an engine defect.
func Decide(w int, t Thresholds) (Level, error) {
	switch {
	case w >= 0 && w < t.Low:
		return Moderate, nil
	case w >= t.Low && w < t.High:
		return Severe, nil
	case w >= t.High:
		return Unrestricted, nil
	}
	return FailSafe, fmt.Errorf("%w: fell through decision bands with %d W", fault.ErrInvariant, w)
}
