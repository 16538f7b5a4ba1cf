// Package validators holds the built-in safety checks registered with the supervisor.
//
// Each check returns at most one violation per call. Missing payload or pose
// fields read as zero; payload fields that are present but not finite numbers
// raise INPUT_001 so a malformed command is never silently approved.
package validators

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidLimit is returned by constructors given a negative or non-finite limit.
var ErrInvalidLimit = errors.New("invalid limit")

func checkLimit(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%s = %v: %w", name, v, ErrInvalidLimit)
	}
	return nil
}
