// Package feedback decides when to ask the user for feedback: once, after
// more than three different habits are fully completed on the same day.
package feedback

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/julianstephens/geko/internal/constants"
	"github.com/julianstephens/geko/internal/logger"
	"github.com/julianstephens/geko/internal/models"
	"github.com/julianstephens/geko/internal/storage"
)

// Store is the persistence the trigger needs.
type Store interface {
	storage.HabitStore
	storage.SettingsStore
}

// CountCompleted returns how many habits are fully completed on day.
func CountCompleted(habits []models.Habit, day string) int {
	n := 0
	for _, h := range habits {
		if h.IsCompleted(day) {
			n++
		}
	}
	return n
}

// ShouldPrompt is the trigger rule without any state.
func ShouldPrompt(habits []models.Habit, today string, presented bool) bool {
	return !presented && CountCompleted(habits, today) > constants.FeedbackThreshold
}

// Trigger evaluates the rule against the store and remembers whether the
// prompt has been shown.
type Trigger struct {
	store Store

	mu      sync.Mutex
	pending bool
}

// NewTrigger returns a trigger backed by store. Setting GEKO_RESET_FEEDBACK_STATE
// clears the presented flag first.
func NewTrigger(store Store) *Trigger {
	t := &Trigger{store: store}
	if os.Getenv(constants.FeedbackResetEnvVar) != "" {
		if err := t.Reset(); err != nil {
			logger.Warn("Failed to reset feedback state", "error", err)
		}
	}
	return t
}

// Presented reports whether the prompt was already shown.
func (t *Trigger) Presented() (bool, error) {
	v, err := t.store.GetSetting(constants.SettingFeedbackPresented)
	if errors.Is(err, storage.ErrSettingNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read feedback state: %w", err)
	}
	return v == "true", nil
}

// Pending reports whether the prompt has fired and is waiting to be shown.
func (t *Trigger) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// RecordCompletion is called when h has just become fully completed on day.
// It reports whether the prompt should be shown now. Completions on days
// other than today never count.
func (t *Trigger) RecordCompletion(h models.Habit, day, today string) (bool, error) {
	if day != today || !h.IsCompleted(day) {
		return false, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending {
		return false, nil
	}

	presented, err := t.Presented()
	if err != nil || presented {
		return false, err
	}

	habits, err := t.store.GetAllHabits()
	if err != nil {
		return false, fmt.Errorf("failed to count completed habits: %w", err)
	}
	if !ShouldPrompt(habits, today, presented) {
		return false, nil
	}

	logger.Info("Feedback prompt triggered", "habit", h.Name, "completed", CountCompleted(habits, today))
	t.pending = true
	return true, nil
}

// MarkPresented records that the prompt was shown so it never fires again.
func (t *Trigger) MarkPresented() error {
	if err := t.store.SetSetting(constants.SettingFeedbackPresented, "true"); err != nil {
		return fmt.Errorf("failed to save feedback state: %w", err)
	}
	t.mu.Lock()
	t.pending = false
	t.mu.Unlock()
	return nil
}

// ForceShow raises the prompt without touching the presented flag.
func (t *Trigger) ForceShow() {
	t.mu.Lock()
	t.pending = true
	t.mu.Unlock()
}

// Reset clears the presented flag and any pending prompt.
func (t *Trigger) Reset() error {
	if err := t.store.DeleteSetting(constants.SettingFeedbackPresented); err != nil &&
		!errors.Is(err, storage.ErrSettingNotFound) {
		return fmt.Errorf("failed to reset feedback state: %w", err)
	}
	t.mu.Lock()
	t.pending = false
	t.mu.Unlock()
	return nil
}
