// Package validate holds the format checks every other package runs before
// trusting a string or number from configuration or from an energy source.
package validate

import (
	"math"
	"math/big"
	"regexp"
	"time"
)

// IsHex reports whether s is a base-16 integer literal (optional sign, no
// prefix). Keys are longer than 64 bits so this does not use strconv.
func IsHex(s string) bool {
	_, ok := new(big.Int).SetString(s, 16)
	return ok
}

// IsInteger reports whether s is a base-10 integer literal.
func IsInteger(s string) bool {
	_, ok := new(big.Int).SetString(s, 10)
	return ok
}

// IsPosixTime reports whether sec converts to a local calendar time between
// year 1 and year 9999.
func IsPosixTime(sec float64) bool {
	if math.IsNaN(sec) || math.IsInf(sec, 0) {
		return false
	}
	lo := time.Date(1, time.January, 1, 0, 0, 0, 0, time.Local).Unix()
	hi := time.Date(9999, time.December, 31, 23, 59, 59, 0, time.Local).Unix()
	return sec >= float64(lo) && sec <= float64(hi)
}

var commandChars = regexp.MustCompile(`^[A-Za-z0-9 _./-]+$`)

// IsSafeCommand reports whether s is non-empty and only contains letters,
// digits, space, underscore, dot, slash and hyphen.
func IsSafeCommand(s string) bool {
	return commandChars.MatchString(s)
}
