package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/geko/internal/grid"
	"github.com/julianstephens/geko/internal/models"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	PromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("214")).
			Padding(0, 1)

	StatusStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))
)

const (
	cellFull    = "■"
	cellPartial = "▪"
	cellEmpty   = "·"
	cellHole    = " "
)

func colorStyle(c models.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex()))
}

// FormatProgress renders "count/target" with a state marker.
func FormatProgress(h models.Habit, day string) string {
	count := h.CompletionCount(day)
	state := "not started"
	switch {
	case h.IsCompleted(day):
		state = "done"
	case h.IsPartiallyCompleted(day):
		state = "in progress"
	}
	return fmt.Sprintf("%d/%d (%s)", count, h.DailyTarget, state)
}

// ProgressBar renders CompletionProgress as a bar of width cells.
func ProgressBar(h models.Habit, day string, width int) string {
	filled := int(h.CompletionProgress(day) * float64(width))
	bar := strings.Repeat("█", filled) + MutedStyle.Render(strings.Repeat("░", width-filled))
	return colorStyle(h.Color).Render(bar)
}

func cellGlyph(h models.Habit, cell grid.Cell, loc *time.Location) string {
	if cell.IsHole() {
		return cellHole
	}
	day := models.DayKey(cell.Date, loc)
	switch {
	case h.IsCompleted(day):
		return colorStyle(h.Color).Render(cellFull)
	case h.IsPartiallyCompleted(day):
		return colorStyle(h.Color).Render(cellPartial)
	default:
		return MutedStyle.Render(cellEmpty)
	}
}

// RenderWeek renders the week strip with weekday headers.
func RenderWeek(h models.Habit, b grid.Builder, reference time.Time) string {
	var header, cells []string
	headers := b.WeekdayHeaders()
	for i, cell := range b.WeekGrid(reference)[0] {
		header = append(header, fmt.Sprintf("%-3s", headers[i]))
		cells = append(cells, fmt.Sprintf("%-3s", cellGlyph(h, cell, b.Location())))
	}
	return MutedStyle.Render(strings.Join(header, " ")) + "\n" + strings.Join(cells, " ")
}

// RenderMonth renders a 6x7 month grid with day numbers.
func RenderMonth(h models.Habit, b grid.Builder, reference time.Time) string {
	var sb strings.Builder
	for _, wd := range b.WeekdayHeaders() {
		sb.WriteString(MutedStyle.Render(fmt.Sprintf("%-4s", wd)))
	}
	sb.WriteString("\n")

	loc := b.Location()
	for _, row := range b.Month(reference) {
		for _, cell := range row {
			if cell.IsHole() {
				sb.WriteString("    ")
				continue
			}
			day := models.DayKey(cell.Date, loc)
			label := fmt.Sprintf("%2d", cell.Date.Day())
			switch {
			case h.IsCompleted(day):
				label = colorStyle(h.Color).Bold(true).Render(label)
			case h.IsPartiallyCompleted(day):
				label = colorStyle(h.Color).Render(label)
			default:
				label = MutedStyle.Render(label)
			}
			sb.WriteString(label + "  ")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderHistory renders the 7-row multi-week grid, oldest week on the left.
func RenderHistory(h models.Habit, b grid.Builder, reference time.Time, weeks int) string {
	g := b.Weeks(reference, weeks)
	headers := b.WeekdayHeaders()

	var sb strings.Builder
	for r, row := range g {
		sb.WriteString(MutedStyle.Render(fmt.Sprintf("%-4s", headers[r])))
		for _, cell := range row {
			sb.WriteString(cellGlyph(h, cell, b.Location()))
			sb.WriteString(" ")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// HabitTitle renders the emoji and name in the habit's color.
func HabitTitle(h models.Habit) string {
	return h.Emoji + " " + colorStyle(h.Color).Bold(true).Render(h.Name)
}
