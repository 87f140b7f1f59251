package model

import "errors"

// Outcome classes shared by the booking and query paths. Call sites mark
// the underlying cause with one of these via errs.Mark.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("slot not found")
	ErrConflict           = errors.New("slot is not in the expected state")
	ErrBackendUnavailable = errors.New("slot store unavailable")
)
