package protocol

import (
	"errors"
	"fmt"
)

// RangeError reports a value outside its valid domain: a step coordinate,
// flag byte or buffer index outside [0,255], or a SIZE count outside [1,256].
// Values are rejected at the point of assignment or encoding, never clamped.
type RangeError struct {
	// Field names the offending input ("x", "y", "flags", "index", "size").
	Field string

	// Value is the rejected value.
	Value int

	// Min and Max bound the valid domain, inclusive.
	Min, Max int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s value %d out of range (%d-%d)", e.Field, e.Value, e.Min, e.Max)
}

// IsRangeError reports whether err is, or wraps, a RangeError.
func IsRangeError(err error) bool {
	var rangeErr *RangeError
	return errors.As(err, &rangeErr)
}

// checkByte validates a uint8-domain protocol value.
func checkByte(field string, v int) error {
	if v < 0 || v > 255 {
		return &RangeError{Field: field, Value: v, Min: 0, Max: 255}
	}
	return nil
}

// checkSize validates a SIZE count. The floor is 1: a buffer can never be
// declared zero-length to the device.
func checkSize(v int) error {
	if v < 1 || v > 256 {
		return &RangeError{Field: "size", Value: v, Min: 1, Max: 256}
	}
	return nil
}
