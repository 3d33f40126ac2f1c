package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// RowError reports a stored row whose contents cannot be mapped onto a
// domain value (e.g. an unknown status string). The row is surfaced as-is,
// never coerced into a default.
type RowError struct {
	Table string
	Key   string
	Field string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("storage: malformed row in %s (key %s, field %s): %v", e.Table, e.Key, e.Field, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
