package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	var tests = []struct {
		name     string
		err      error
		expected string
	}{
		{"configuration", fmt.Errorf("%w: sys_id", ErrConfiguration), "configuration"},
		{"source", fmt.Errorf("%w: dial tcp", ErrSourceUnavailable), "source_unavailable"},
		{"validation", fmt.Errorf("%w: abc", ErrValidation), "validation"},
		{"invariant", fmt.Errorf("%w: [1 1]", ErrInvariant), "invariant"},
		{"double wrapped", fmt.Errorf("fetch: %w", fmt.Errorf("%w: x", ErrValidation)), "validation"},
		{"other", errors.New("boom"), "fatal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Kind(tt.err))
		})
	}
}
