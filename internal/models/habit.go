package models

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rivo/uniseg"

	"github.com/julianstephens/geko/internal/constants"
	gekoerrors "github.com/julianstephens/geko/internal/errors"
	"github.com/julianstephens/geko/internal/utils"
)

// Habit is a trackable recurring activity together with its completion ledger.
//
// Completions maps a calendar day key (YYYY-MM-DD in the caller's location) to
// the number of times the habit was done that day. A day with no entry and a
// day with count zero are the same state, so zero counts are never stored.
type Habit struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Emoji            string         `json:"emoji"`
	Color            Color          `json:"color"`
	DailyTarget      int            `json:"daily_target"`
	RemindersEnabled bool           `json:"reminders_enabled"`
	ReminderTimes    []string       `json:"reminder_times,omitempty"` // HH:MM, sorted
	ReminderMessage  string         `json:"reminder_message,omitempty"`
	Completions      map[string]int `json:"completions"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        *time.Time     `json:"deleted_at,omitempty"` // tombstone for replication
}

// NewHabit validates the inputs and returns a habit with a fresh identifier.
func NewHabit(name, emoji string, color Color, dailyTarget int, now time.Time) (Habit, error) {
	h := Habit{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(name),
		Emoji:       strings.TrimSpace(emoji),
		Color:       color,
		DailyTarget: ClampTarget(dailyTarget),
		Completions: map[string]int{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Validate(); err != nil {
		return Habit{}, err
	}
	return h, nil
}

// ClampTarget enforces the daily target lower bound of 1.
func ClampTarget(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// DayKey returns the completion day key for t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(constants.DateFormat)
}

// ValidDayKey reports whether s is a well-formed day key.
func ValidDayKey(s string) bool {
	_, err := time.Parse(constants.DateFormat, s)
	return err == nil
}

// Validate checks the user-editable fields.
func (h Habit) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return gekoerrors.ErrInvalidName
	}
	if uniseg.GraphemeClusterCount(strings.TrimSpace(h.Emoji)) != 1 {
		return gekoerrors.ErrInvalidEmoji
	}
	if !h.Color.Valid() {
		return fmt.Errorf("%w: %q", gekoerrors.ErrInvalidColor, h.Color)
	}
	for _, rt := range h.ReminderTimes {
		if !utils.ValidateTimeFormat(rt) {
			return fmt.Errorf("%w: %q", gekoerrors.ErrInvalidReminderTime, rt)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (h Habit) Clone() Habit {
	c := h
	c.ReminderTimes = slices.Clone(h.ReminderTimes)
	c.Completions = maps.Clone(h.Completions)
	if c.Completions == nil {
		c.Completions = map[string]int{}
	}
	if h.DeletedAt != nil {
		t := *h.DeletedAt
		c.DeletedAt = &t
	}
	return c
}

// SetDailyTarget clamps n to at least 1. Past counts are left as they are, so
// a day can move between complete and partial purely through the new target.
func (h *Habit) SetDailyTarget(n int) {
	h.DailyTarget = ClampTarget(n)
}

// SetReminderTimes stores the times sorted and de-duplicated.
func (h *Habit) SetReminderTimes(times []string) {
	out := make([]string, 0, len(times))
	for _, t := range times {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	h.ReminderTimes = slices.Compact(out)
}

// CompletionCount returns how many times the habit was done on day.
func (h Habit) CompletionCount(day string) int {
	return h.Completions[day]
}

// CompletionProgress returns min(1, count/target).
func (h Habit) CompletionProgress(day string) float64 {
	target := ClampTarget(h.DailyTarget)
	return min(1.0, float64(h.CompletionCount(day))/float64(target))
}

// IsCompleted reports whether the daily target was reached on day.
func (h Habit) IsCompleted(day string) bool {
	return h.CompletionCount(day) >= ClampTarget(h.DailyTarget)
}

// IsPartiallyCompleted reports 0 < count < target.
func (h Habit) IsPartiallyCompleted(day string) bool {
	count := h.CompletionCount(day)
	return count > 0 && count < ClampTarget(h.DailyTarget)
}

// IncrementCompletion adds one completion on day unless the target is already met.
func (h *Habit) IncrementCompletion(day string) {
	count := h.CompletionCount(day)
	if count >= ClampTarget(h.DailyTarget) {
		return
	}
	h.SetCompletionCount(day, count+1)
}

// ResetCompletion clears the day.
func (h *Habit) ResetCompletion(day string) {
	delete(h.Completions, day)
}

// ToggleCompleted flips a day between nothing and full completion.
func (h *Habit) ToggleCompleted(day string) {
	if h.IsCompleted(day) {
		h.ResetCompletion(day)
		return
	}
	h.SetCompletionCount(day, ClampTarget(h.DailyTarget))
}

// SetCompletionCount stores n for day; n <= 0 removes the day.
func (h *Habit) SetCompletionCount(day string, n int) {
	if n <= 0 {
		h.ResetCompletion(day)
		return
	}
	if h.Completions == nil {
		h.Completions = map[string]int{}
	}
	h.Completions[day] = n
}

// CompletedDays lists the days whose count meets the current target, sorted.
func (h Habit) CompletedDays() []string {
	var days []string
	for day := range h.Completions {
		if h.IsCompleted(day) {
			days = append(days, day)
		}
	}
	slices.Sort(days)
	return days
}
