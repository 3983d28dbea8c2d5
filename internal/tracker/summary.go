package tracker

import (
	"time"

	"github.com/julianstephens/geko/internal/constants"
	"github.com/julianstephens/geko/internal/grid"
	"github.com/julianstephens/geko/internal/models"
	"github.com/julianstephens/geko/internal/utils"
)

// DayStatus is one day of a habit's history.
type DayStatus struct {
	Date      time.Time
	Day       string
	Count     int
	Completed bool
	Partial   bool
}

func statusOf(h models.Habit, date time.Time, loc *time.Location) DayStatus {
	day := models.DayKey(date, loc)
	return DayStatus{
		Date:      date,
		Day:       day,
		Count:     h.CompletionCount(day),
		Completed: h.IsCompleted(day),
		Partial:   h.IsPartiallyCompleted(day),
	}
}

// Builder returns the grid builder for this tracker's location and first
// weekday.
func (t *Tracker) Builder() grid.Builder {
	return grid.NewBuilder(t.loc, t.first)
}

// WeekSummary returns the seven days ending on reference, oldest first.
func (t *Tracker) WeekSummary(h models.Habit, reference time.Time) []DayStatus {
	end := utils.StartOfDay(reference, t.loc)
	days := make([]DayStatus, 0, constants.DaysPerWeek)
	for i := constants.DaysPerWeek - 1; i >= 0; i-- {
		days = append(days, statusOf(h, utils.AddDays(end, -i), t.loc))
	}
	return days
}

// CurrentWeek returns the calendar week containing reference, starting on
// the configured first weekday.
func (t *Tracker) CurrentWeek(h models.Habit, reference time.Time) []DayStatus {
	dates := t.Builder().Week(reference)
	days := make([]DayStatus, 0, len(dates))
	for _, d := range dates {
		days = append(days, statusOf(h, d, t.loc))
	}
	return days
}

// CompletedDaysThisWeek counts the fully completed days in the calendar week
// containing reference.
func (t *Tracker) CompletedDaysThisWeek(h models.Habit, reference time.Time) int {
	return CountCompleted(t.CurrentWeek(h, reference))
}

func CountCompleted(days []DayStatus) int {
	n := 0
	for _, d := range days {
		if d.Completed {
			n++
		}
	}
	return n
}
