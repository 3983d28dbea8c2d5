// Package grid projects calendar windows onto rectangular day grids for the
// week, month and history views. Grids carry dates only; callers combine them
// with a habit's completion ledger.
package grid

import (
	"time"

	"github.com/julianstephens/geko/internal/constants"
	"github.com/julianstephens/geko/internal/utils"
)

// Cell is one slot of a grid. A zero Date marks a hole: a slot outside the
// requested window.
type Cell struct {
	Date time.Time
}

// IsHole reports whether the cell is outside the window.
func (c Cell) IsHole() bool {
	return c.Date.IsZero()
}

// Grid is a row-major arrangement of cells.
type Grid [][]Cell

// Rows returns the number of rows.
func (g Grid) Rows() int {
	return len(g)
}

// Cols returns the width of the first row.
func (g Grid) Cols() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Dates returns every non-hole date in row-major order.
func (g Grid) Dates() []time.Time {
	var out []time.Time
	for _, row := range g {
		for _, c := range row {
			if !c.IsHole() {
				out = append(out, c.Date)
			}
		}
	}
	return out
}

// Builder produces grids for one location and first-day-of-week convention.
// The zero value is not usable; call NewBuilder.
type Builder struct {
	loc          *time.Location
	firstWeekday time.Weekday
}

// NewBuilder returns a Builder. A nil location means UTC.
func NewBuilder(loc *time.Location, firstWeekday time.Weekday) Builder {
	if loc == nil {
		loc = time.UTC
	}
	return Builder{loc: loc, firstWeekday: firstWeekday}
}

// Location returns the builder's location.
func (b Builder) Location() *time.Location {
	return b.loc
}

// FirstWeekday returns the builder's first day of the week.
func (b Builder) FirstWeekday() time.Weekday {
	return b.firstWeekday
}

func (b Builder) weekStart(day time.Time) time.Time {
	delta := (int(day.Weekday()) - int(b.firstWeekday) + constants.DaysPerWeek) % constants.DaysPerWeek
	return utils.AddDays(day, -delta)
}

// Week returns the seven days of the week containing reference, starting on
// the first weekday. The week strip and the week grid both use this window.
func (b Builder) Week(reference time.Time) []time.Time {
	start := b.weekStart(utils.StartOfDay(reference, b.loc))
	days := make([]time.Time, constants.DaysPerWeek)
	for i := range days {
		days[i] = utils.AddDays(start, i)
	}
	return days
}

// WeekGrid returns Week as a single row.
func (b Builder) WeekGrid(reference time.Time) Grid {
	row := make([]Cell, 0, constants.DaysPerWeek)
	for _, d := range b.Week(reference) {
		row = append(row, Cell{Date: d})
	}
	return Grid{row}
}

// Month returns a 6x7 grid for the month containing reference. Row 0 starts
// on the first weekday on or before the 1st; days of adjacent months are holes.
// Six rows are always emitted so layouts do not jump between months.
func (b Builder) Month(reference time.Time) Grid {
	ref := reference.In(b.loc)
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, b.loc)
	cursor := b.weekStart(first)

	g := make(Grid, constants.MonthGridRows)
	for r := range g {
		row := make([]Cell, constants.DaysPerWeek)
		for c := range row {
			if cursor.Month() == first.Month() && cursor.Year() == first.Year() {
				row[c] = Cell{Date: cursor}
			}
			cursor = utils.AddDays(cursor, 1)
		}
		g[r] = row
	}
	return g
}

// Weeks returns a history grid of 7 rows (day of week, first weekday at row 0)
// by weeks columns. Column 0 is the oldest week and the last column is the
// week containing reference. Days after reference are holes; past days are
// always filled.
func (b Builder) Weeks(reference time.Time, weeks int) Grid {
	if weeks < 0 {
		weeks = 0
	}
	refDay := utils.StartOfDay(reference, b.loc)
	start := utils.AddDays(b.weekStart(refDay), -constants.DaysPerWeek*(weeks-1))

	g := make(Grid, constants.DaysPerWeek)
	for r := range g {
		g[r] = make([]Cell, weeks)
	}
	for w := 0; w < weeks; w++ {
		for d := 0; d < constants.DaysPerWeek; d++ {
			date := utils.AddDays(start, w*constants.DaysPerWeek+d)
			if !date.After(refDay) {
				g[d][w] = Cell{Date: date}
			}
		}
	}
	return g
}

// WeekdayHeaders returns short weekday labels starting at the first weekday.
func (b Builder) WeekdayHeaders() []string {
	headers := make([]string, constants.DaysPerWeek)
	for i := range headers {
		headers[i] = time.Weekday((int(b.firstWeekday) + i) % constants.DaysPerWeek).String()[:3]
	}
	return headers
}
