// Package tracker is the query and mutation surface over the habit store.
// Mutations validate first, work on a freshly read copy, and only announce
// the new record once the write has committed.
package tracker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gekoerrors "github.com/julianstephens/geko/internal/errors"
	"github.com/julianstephens/geko/internal/feedback"
	"github.com/julianstephens/geko/internal/logger"
	"github.com/julianstephens/geko/internal/models"
	gekosync "github.com/julianstephens/geko/internal/sync"
)

// Options wire a Tracker. Coordinator and Feedback are optional.
type Options struct {
	Location     *time.Location
	FirstWeekday time.Weekday
	Now          func() time.Time
	Coordinator  *gekosync.Coordinator
	Feedback     *feedback.Trigger
}

type Tracker struct {
	store    feedback.Store
	coord    *gekosync.Coordinator
	feedback *feedback.Trigger
	loc      *time.Location
	first    time.Weekday
	now      func() time.Time
}

func New(store feedback.Store, opts Options) *Tracker {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		store:    store,
		coord:    opts.Coordinator,
		feedback: opts.Feedback,
		loc:      opts.Location,
		first:    opts.FirstWeekday,
		now:      opts.Now,
	}
}

// CompletionResult is returned by the completion mutations. FeedbackPrompt
// is set when this change should raise the feedback prompt.
type CompletionResult struct {
	Habit          models.Habit
	FeedbackPrompt bool
}

// Location returns the location day keys are computed in.
func (t *Tracker) Location() *time.Location {
	return t.loc
}

// Today returns today's day key.
func (t *Tracker) Today() string {
	return models.DayKey(t.now(), t.loc)
}

// AllHabits returns the live habits, oldest first.
func (t *Tracker) AllHabits() ([]models.Habit, error) {
	return t.store.GetAllHabits()
}

func (t *Tracker) Habit(id string) (models.Habit, error) {
	return t.store.GetHabit(id)
}

// HabitByName returns the oldest live habit with the given trimmed,
// case-sensitive name.
func (t *Tracker) HabitByName(name string) (models.Habit, error) {
	matches, err := t.store.GetHabitsByName(name)
	if err != nil {
		return models.Habit{}, err
	}
	if len(matches) == 0 {
		return models.Habit{}, fmt.Errorf("%w: %q", gekoerrors.ErrHabitNotFound, strings.TrimSpace(name))
	}
	return matches[0], nil
}

// Resolve finds a habit by ID, then by name. A name shared by several habits
// is an error so commands never act on the wrong one.
func (t *Tracker) Resolve(ref string) (models.Habit, error) {
	h, err := t.store.GetHabit(ref)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, gekoerrors.ErrHabitNotFound) {
		return models.Habit{}, err
	}

	matches, err := t.store.GetHabitsByName(ref)
	if err != nil {
		return models.Habit{}, err
	}
	switch len(matches) {
	case 0:
		return models.Habit{}, fmt.Errorf("%w: %q", gekoerrors.ErrHabitNotFound, strings.TrimSpace(ref))
	case 1:
		return matches[0], nil
	default:
		return models.Habit{}, fmt.Errorf("%w: %d habits named %q, use the ID", gekoerrors.ErrAmbiguousHabit, len(matches), strings.TrimSpace(ref))
	}
}

func (t *Tracker) CompletionCount(id, day string) (int, error) {
	h, err := t.store.GetHabit(id)
	if err != nil {
		return 0, err
	}
	return h.CompletionCount(day), nil
}

func (t *Tracker) CompletionProgress(id, day string) (float64, error) {
	h, err := t.store.GetHabit(id)
	if err != nil {
		return 0, err
	}
	return h.CompletionProgress(day), nil
}

func (t *Tracker) IsCompleted(id, day string) (bool, error) {
	h, err := t.store.GetHabit(id)
	if err != nil {
		return false, err
	}
	return h.IsCompleted(day), nil
}

func (t *Tracker) IsPartiallyCompleted(id, day string) (bool, error) {
	h, err := t.store.GetHabit(id)
	if err != nil {
		return false, err
	}
	return h.IsPartiallyCompleted(day), nil
}

// HabitInput carries the fields for CreateHabit.
type HabitInput struct {
	Name             string
	Emoji            string
	Color            models.Color
	DailyTarget      int
	RemindersEnabled bool
	ReminderTimes    []string
	ReminderMessage  string
}

// CreateHabit validates in and stores a new habit.
func (t *Tracker) CreateHabit(in HabitInput) (models.Habit, error) {
	color := in.Color
	if color == "" {
		color = models.ColorBlue
	}
	h, err := models.NewHabit(in.Name, in.Emoji, color, in.DailyTarget, t.now())
	if err != nil {
		return models.Habit{}, err
	}
	h.RemindersEnabled = in.RemindersEnabled
	h.SetReminderTimes(in.ReminderTimes)
	h.ReminderMessage = strings.TrimSpace(in.ReminderMessage)
	if err := h.Validate(); err != nil {
		return models.Habit{}, err
	}

	if err := t.store.AddHabit(h); err != nil {
		return models.Habit{}, fmt.Errorf("failed to save habit: %w", err)
	}
	logger.Info("Habit created", "id", h.ID, "name", h.Name)
	t.notify(gekosync.Mutation{Kind: gekosync.MutationUpsert, Habit: h})
	return h, nil
}

// HabitUpdate lists the fields to change; nil fields are left alone.
type HabitUpdate struct {
	Name             *string
	Emoji            *string
	Color            *models.Color
	DailyTarget      *int
	RemindersEnabled *bool
	ReminderTimes    []string
	ClearReminders   bool
	ReminderMessage  *string
}

// UpdateHabitFields applies u to the habit with the given ID.
func (t *Tracker) UpdateHabitFields(id string, u HabitUpdate) (models.Habit, error) {
	_, after, err := t.mutate(id, func(h *models.Habit) {
		if u.Name != nil {
			h.Name = strings.TrimSpace(*u.Name)
		}
		if u.Emoji != nil {
			h.Emoji = strings.TrimSpace(*u.Emoji)
		}
		if u.Color != nil {
			h.Color = *u.Color
		}
		if u.DailyTarget != nil {
			h.SetDailyTarget(*u.DailyTarget)
		}
		if u.RemindersEnabled != nil {
			h.RemindersEnabled = *u.RemindersEnabled
		}
		if u.ClearReminders {
			h.ReminderTimes = nil
		}
		if u.ReminderTimes != nil {
			h.SetReminderTimes(u.ReminderTimes)
		}
		if u.ReminderMessage != nil {
			h.ReminderMessage = strings.TrimSpace(*u.ReminderMessage)
		}
	})
	if err != nil {
		return models.Habit{}, err
	}
	t.notify(gekosync.Mutation{Kind: gekosync.MutationUpsert, Habit: after})
	return after, nil
}

// SetDailyTarget changes the target. History is not rescaled.
func (t *Tracker) SetDailyTarget(id string, n int) (models.Habit, error) {
	return t.UpdateHabitFields(id, HabitUpdate{DailyTarget: &n})
}

// DeleteHabit removes the habit and announces the deletion.
func (t *Tracker) DeleteHabit(id string) error {
	h, err := t.store.GetHabit(id)
	if err != nil {
		return err
	}
	if err := t.store.DeleteHabit(id); err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	logger.Info("Habit deleted", "id", h.ID, "name", h.Name)
	t.notify(gekosync.Mutation{Kind: gekosync.MutationDeletion, Habit: h})
	return nil
}

func (t *Tracker) IncrementCompletion(id, day string) (CompletionResult, error) {
	return t.complete(id, day, func(h *models.Habit) { h.IncrementCompletion(day) })
}

func (t *Tracker) ResetCompletion(id, day string) (CompletionResult, error) {
	return t.complete(id, day, func(h *models.Habit) { h.ResetCompletion(day) })
}

func (t *Tracker) ToggleCompleted(id, day string) (CompletionResult, error) {
	return t.complete(id, day, func(h *models.Habit) { h.ToggleCompleted(day) })
}

func (t *Tracker) SetCompletionCount(id, day string, n int) (CompletionResult, error) {
	return t.complete(id, day, func(h *models.Habit) { h.SetCompletionCount(day, n) })
}

// complete runs a completion mutation for day. Unchanged counts are not
// written or announced.
func (t *Tracker) complete(id, day string, fn func(*models.Habit)) (CompletionResult, error) {
	if !models.ValidDayKey(day) {
		return CompletionResult{}, fmt.Errorf("%w: %q", gekoerrors.ErrInvalidDay, day)
	}

	before, err := t.store.GetHabit(id)
	if err != nil {
		return CompletionResult{}, err
	}
	trial := before.Clone()
	fn(&trial)
	if trial.CompletionCount(day) == before.CompletionCount(day) {
		return CompletionResult{Habit: before}, nil
	}

	before, after, err := t.mutate(id, fn)
	if err != nil {
		return CompletionResult{}, err
	}
	t.notify(gekosync.Mutation{Kind: gekosync.MutationCompletion, Habit: after, Day: day})

	res := CompletionResult{Habit: after}
	if t.feedback != nil && !before.IsCompleted(day) && after.IsCompleted(day) {
		fired, err := t.feedback.RecordCompletion(after, day, t.Today())
		if err != nil {
			logger.Warn("Feedback check failed", "error", err)
		}
		res.FeedbackPrompt = fired
	}
	return res, nil
}

// mutate re-reads the habit, applies fn to a copy, validates, and writes it.
// On any error the stored record is untouched and nothing is announced.
func (t *Tracker) mutate(id string, fn func(*models.Habit)) (before, after models.Habit, err error) {
	before, err = t.store.GetHabit(id)
	if err != nil {
		return models.Habit{}, models.Habit{}, err
	}

	after = before.Clone()
	fn(&after)
	if err := after.Validate(); err != nil {
		return models.Habit{}, models.Habit{}, err
	}
	after.UpdatedAt = t.now()

	if err := t.store.UpdateHabit(after); err != nil {
		logger.Error("Failed to save habit, keeping previous state", "id", id, "error", err)
		return models.Habit{}, models.Habit{}, fmt.Errorf("failed to save habit: %w", err)
	}
	return before, after, nil
}

func (t *Tracker) notify(m gekosync.Mutation) {
	if t.coord != nil {
		t.coord.NotifyMutation(m)
	}
}
