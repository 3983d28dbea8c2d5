package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/geko/internal/logger"
)

// Validation errors are returned before any habit state is touched.
var (
	ErrInvalidName         = errors.New("habit name must not be empty")
	ErrInvalidEmoji        = errors.New("habit emoji must be a single character")
	ErrInvalidColor        = errors.New("unknown habit color")
	ErrInvalidReminderTime = errors.New("reminder time must be HH:MM")
	ErrInvalidDay          = errors.New("day must be YYYY-MM-DD")
	ErrHabitNotFound       = errors.New("habit not found")
	ErrAmbiguousHabit      = errors.New("more than one habit matches")
)

// IsValidation reports whether err is one of the validation errors above.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidEmoji) ||
		errors.Is(err, ErrInvalidColor) ||
		errors.Is(err, ErrInvalidReminderTime) ||
		errors.Is(err, ErrInvalidDay)
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Fatal logs err and exits with status 1. Validation errors are user input
// mistakes and only log at warn.
func Fatal(err error) {
	if err == nil {
		return
	}
	if IsValidation(err) {
		logger.Warn("Command rejected input", "error", err)
	} else {
		logger.Error("Command execution failed", "error", err)
	}
	fmt.Fprintln(os.Stderr, Format(err))
	os.Exit(1)
}
