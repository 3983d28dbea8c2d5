package grids

import (
	"fmt"
	"time"

	"github.com/julianstephens/geko/internal/cli"
	"github.com/julianstephens/geko/internal/models"
	"github.com/julianstephens/geko/internal/utils"
)

type GridCmd struct {
	Week    GridWeekCmd    `cmd:"" help:"Show the current week." default:"1"`
	Month   GridMonthCmd   `cmd:"" help:"Show a month calendar."`
	History GridHistoryCmd `cmd:"" help:"Show several weeks of history."`
}

// GridArgs selects the habits and reference day for a grid view.
type GridArgs struct {
	Habit string `arg:"" optional:"" help:"Habit ID or name (default: all habits)."`
	Date  string `help:"Reference day in YYYY-MM-DD format (default: today)."`
}

func (a GridArgs) resolve(ctx *cli.Context) ([]models.Habit, time.Time, error) {
	ref, err := utils.ResolveDate(a.Date, ctx.Now(), ctx.Location)
	if err != nil {
		return nil, time.Time{}, err
	}
	if a.Habit == "" {
		habits, err := ctx.Tracker.AllHabits()
		return habits, ref, err
	}
	h, err := ctx.Tracker.Resolve(a.Habit)
	if err != nil {
		return nil, time.Time{}, err
	}
	return []models.Habit{h}, ref, nil
}

func render(ctx *cli.Context, args GridArgs, title func(time.Time) string, fn func(models.Habit, time.Time) string) error {
	habits, ref, err := args.resolve(ctx)
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		fmt.Println("No habits found.")
		return nil
	}

	fmt.Println(cli.TitleStyle.Render(title(ref)))
	for _, h := range habits {
		fmt.Println()
		fmt.Println(cli.HabitTitle(h))
		fmt.Println(fn(h, ref))
	}
	return nil
}

type GridWeekCmd struct {
	GridArgs `embed:""`
}

func (c *GridWeekCmd) Run(ctx *cli.Context) error {
	b := ctx.Tracker.Builder()
	title := func(ref time.Time) string {
		return "Week of " + models.DayKey(b.Week(ref)[0], ctx.Location)
	}
	return render(ctx, c.GridArgs, title, func(h models.Habit, ref time.Time) string {
		return cli.RenderWeek(h, b, ref)
	})
}

type GridMonthCmd struct {
	GridArgs `embed:""`
}

func (c *GridMonthCmd) Run(ctx *cli.Context) error {
	b := ctx.Tracker.Builder()
	title := func(ref time.Time) string {
		return ref.In(ctx.Location).Format("January 2006")
	}
	return render(ctx, c.GridArgs, title, func(h models.Habit, ref time.Time) string {
		return cli.RenderMonth(h, b, ref)
	})
}

type GridHistoryCmd struct {
	GridArgs `embed:""`
	Weeks    int `help:"Number of weeks to show (default: history_weeks from config)."`
}

func (c *GridHistoryCmd) Run(ctx *cli.Context) error {
	weeks := c.Weeks
	if weeks <= 0 {
		weeks = ctx.Config.HistoryWeeks
	}
	if weeks <= 0 {
		return fmt.Errorf("weeks must be positive, got %d", weeks)
	}

	b := ctx.Tracker.Builder()
	title := func(ref time.Time) string {
		return fmt.Sprintf("Last %d weeks", weeks)
	}
	return render(ctx, c.GridArgs, title, func(h models.Habit, ref time.Time) string {
		return cli.RenderHistory(h, b, ref, weeks)
	})
}
