package action

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// #region payload-keys
const (
	// LinearVelocity is the payload key for linear speed of a velocity command.
	LinearVelocity = "v"
	// AngularVelocity is the payload key for angular speed of a velocity command.
	AngularVelocity = "w"
)

// #endregion payload-keys

// #region float
// FieldError describes a payload field that is present but not a finite number.
type FieldError struct {
	Field string
	Value any
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("payload field %q: not a finite number (%v)", e.Field, e.Value)
}

// Float reads a numeric payload field. Missing fields read as 0 with ok=false.
// Present fields that cannot be read as a finite float64 return a *FieldError.
func (a ProposedAction) Float(key string) (value float64, ok bool, err error) {
	raw, present := a.Payload[key]
	if !present || raw == nil {
		return 0, false, nil
	}

	switch n := raw.(type) {
	case float64:
		value = n
	case float32:
		value = float64(n)
	case int:
		value = float64(n)
	case int32:
		value = float64(n)
	case int64:
		value = float64(n)
	case uint:
		value = float64(n)
	case uint32:
		value = float64(n)
	case uint64:
		value = float64(n)
	case json.Number:
		f, perr := strconv.ParseFloat(string(n), 64)
		if perr != nil {
			return 0, true, &FieldError{Field: key, Value: raw}
		}
		value = f
	default:
		return 0, true, &FieldError{Field: key, Value: raw}
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, true, &FieldError{Field: key, Value: raw}
	}
	return value, true, nil
}

// #endregion float
