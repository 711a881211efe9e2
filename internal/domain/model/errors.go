package model

import (
	"errors"
	"fmt"
)

// ErrMalformedInput marks values that fail shape validation.
var ErrMalformedInput = errors.New("malformed input")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}
