// Package fault defines the error taxonomy shared by every dreadpi component.
// Components wrap one of the sentinels with fmt.Errorf("%w: ...") and callers
// classify with errors.Is.
package fault

import "errors"

var (
	// ErrConfiguration means static configuration is missing or malformed.
	ErrConfiguration = errors.New("configuration error")

	// ErrSourceUnavailable means the energy source could not be reached or
	// returned something unusable.
	ErrSourceUnavailable = errors.New("energy source unavailable")

	// ErrValidation means a reading was non-numeric, negative or stale.
	ErrValidation = errors.New("validation error")

	// ErrInvariant means the output state or decision engine reached a
	// state that should be impossible.
	ErrInvariant = errors.New("invariant violation")
)

// Kind returns a short label for the taxonomy class err belongs to, or
// "fatal" when it matches none of them.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInvariant):
		return "invariant"
	default:
		return "fatal"
	}
}
