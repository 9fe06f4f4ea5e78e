package model

import "errors"

// CleanError marks an outcome that stops a pipeline without anything having
// gone wrong, such as a day with no soups. Callers log these below error level.
type CleanError struct {
	Reason string
}

func (e *CleanError) Error() string {
	return e.Reason
}

// IsClean reports whether err, or anything it wraps, is a CleanError.
func IsClean(err error) bool {
	var ce *CleanError
	return errors.As(err, &ce)
}
