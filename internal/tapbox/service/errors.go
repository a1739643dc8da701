package service

import (
	"errors"
	"fmt"
)

// ErrValidation marks input rejected before anything was persisted.
var ErrValidation = errors.New("validation failed")

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
