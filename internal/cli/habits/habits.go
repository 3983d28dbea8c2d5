package habits

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/geko/internal/cli"
	"github.com/julianstephens/geko/internal/models"
	"github.com/julianstephens/geko/internal/tracker"
)

type HabitCmd struct {
	Add    HabitAddCmd    `cmd:"" help:"Add a new habit."`
	List   HabitListCmd   `cmd:"" help:"List habits with today's progress." default:"1"`
	Show   HabitShowCmd   `cmd:"" help:"Show a habit and its last seven days."`
	Edit   HabitEditCmd   `cmd:"" help:"Edit a habit."`
	Delete HabitDeleteCmd `cmd:"" help:"Delete a habit."`
	Inc    HabitIncCmd    `cmd:"" help:"Record one more completion for a day."`
	Reset  HabitResetCmd  `cmd:"" help:"Clear a day's completions."`
	Toggle HabitToggleCmd `cmd:"" help:"Toggle a day between done and not done."`
	Set    HabitSetCmd    `cmd:"" help:"Set a day's completion count."`
	Target HabitTargetCmd `cmd:"" help:"Set a habit's daily target."`
	Seed   HabitSeedCmd   `cmd:"" help:"Add sample habits with a few weeks of history."`
}

type HabitAddCmd struct {
	Name        string   `arg:"" optional:"" help:"Habit name."`
	Emoji       string   `help:"Emoji shown next to the name." default:"✅"`
	Color       string   `help:"Palette color." default:"blue"`
	Target      int      `help:"Completions per day that count as done." default:"1"`
	Reminder    []string `help:"Reminder time (HH:MM). Repeatable." name:"reminder"`
	Message     string   `help:"Reminder message."`
	Interactive bool     `help:"Fill in the habit with a form." short:"i"`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	if c.Interactive {
		if err := c.runForm(); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("habit name is required (pass it as an argument or use --interactive)")
	}

	color, err := models.ParseColor(c.Color)
	if err != nil {
		return err
	}

	h, err := ctx.Tracker.CreateHabit(tracker.HabitInput{
		Name:             c.Name,
		Emoji:            c.Emoji,
		Color:            color,
		DailyTarget:      c.Target,
		RemindersEnabled: len(c.Reminder) > 0,
		ReminderTimes:    c.Reminder,
		ReminderMessage:  c.Message,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Added habit: %s (id %s)\n", cli.HabitTitle(h), h.ID)
	return nil
}

func (c *HabitAddCmd) runForm() error {
	colors := make([]huh.Option[string], 0, len(models.Palette))
	for _, p := range models.Palette {
		colors = append(colors, huh.NewOption(string(p), string(p)))
	}
	target := strconv.Itoa(max(c.Target, 1))

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&c.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Emoji").
				Value(&c.Emoji),
			huh.NewSelect[string]().
				Title("Color").
				Options(colors...).
				Value(&c.Color),
			huh.NewInput().
				Title("Daily target").
				Value(&target).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 {
						return errors.New("target must be a positive number")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		return err
	}
	n, err := strconv.Atoi(target)
	if err != nil {
		return err
	}
	c.Target = n
	return nil
}

type HabitListCmd struct {
	Date string `help:"Day in YYYY-MM-DD format (default: today)."`
}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	day, err := ctx.ResolveDay(c.Date)
	if err != nil {
		return err
	}

	habits, err := ctx.Tracker.AllHabits()
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		fmt.Println("No habits found. Add one with 'geko habit add' or try 'geko habit seed'.")
		return nil
	}

	fmt.Println(cli.TitleStyle.Render("Habits for " + day))
	fmt.Println()
	for _, h := range habits {
		fmt.Printf("%-28s %s %s\n", cli.HabitTitle(h), cli.ProgressBar(h, day, 10), cli.FormatProgress(h, day))
	}
	fmt.Printf("\nCompleted: %d/%d\n", countDone(habits, day), len(habits))
	return nil
}

func countDone(habits []models.Habit, day string) int {
	n := 0
	for _, h := range habits {
		if h.IsCompleted(day) {
			n++
		}
	}
	return n
}

type HabitShowCmd struct {
	Habit string `arg:"" help:"Habit ID or name."`
}

func (c *HabitShowCmd) Run(ctx *cli.Context) error {
	h, err := ctx.Tracker.Resolve(c.Habit)
	if err != nil {
		return err
	}

	now := ctx.Now()
	fmt.Println(cli.HabitTitle(h))
	fmt.Printf("  ID:      %s\n", h.ID)
	fmt.Printf("  Color:   %s\n", h.Color)
	fmt.Printf("  Target:  %d per day\n", h.DailyTarget)
	if h.RemindersEnabled {
		fmt.Printf("  Reminders: %s", strings.Join(h.ReminderTimes, ", "))
		if h.ReminderMessage != "" {
			fmt.Printf(" (%q)", h.ReminderMessage)
		}
		fmt.Println()
	}
	fmt.Printf("  Created: %s\n", h.CreatedAt.In(ctx.Location).Format("2006-01-02 15:04"))
	fmt.Println()

	days := ctx.Tracker.WeekSummary(h, now)
	for _, d := range days {
		marker := "[ ]"
		switch {
		case d.Completed:
			marker = "[x]"
		case d.Partial:
			marker = "[~]"
		}
		fmt.Printf("  %s %s %s  %d/%d\n", marker, d.Date.Format("Mon"), d.Day, d.Count, h.DailyTarget)
	}
	fmt.Printf("\nLast 7 days: %d completed, this week: %d\n",
		tracker.CountCompleted(days), ctx.Tracker.CompletedDaysThisWeek(h, now))
	return nil
}

type HabitEditCmd struct {
	Habit          string   `arg:"" help:"Habit ID or name."`
	Name           *string  `help:"New name."`
	Emoji          *string  `help:"New emoji."`
	Color          *string  `help:"New palette color."`
	Target         *int     `help:"New daily target."`
	Reminders      *bool    `help:"Enable or disable reminders." negatable:""`
	Reminder       []string `help:"Replace reminder times (HH:MM). Repeatable." name:"reminder"`
	ClearReminders bool     `help:"Remove all reminder times."`
	Message        *string  `help:"New reminder message."`
}

func (c *HabitEditCmd) Run(ctx *cli.Context) error {
	h, err := ctx.Tracker.Resolve(c.Habit)
	if err != nil {
		return err
	}

	u := tracker.HabitUpdate{
		Name:             c.Name,
		Emoji:            c.Emoji,
		DailyTarget:      c.Target,
		RemindersEnabled: c.Reminders,
		ReminderTimes:    c.Reminder,
		ClearReminders:   c.ClearReminders,
		ReminderMessage:  c.Message,
	}
	if c.Color != nil {
		color, err := models.ParseColor(*c.Color)
		if err != nil {
			return err
		}
		u.Color = &color
	}

	updated, err := ctx.Tracker.UpdateHabitFields(h.ID, u)
	if err != nil {
		return err
	}
	fmt.Printf("Updated habit: %s\n", cli.HabitTitle(updated))
	return nil
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit ID or name."`
	Yes   bool   `help:"Skip confirmation." short:"y"`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	h, err := ctx.Tracker.Resolve(c.Habit)
	if err != nil {
		return err
	}

	if !c.Yes {
		confirm := false
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Delete %s %s and its history?", h.Emoji, h.Name)).
					Affirmative("Delete").
					Negative("Cancel").
					Value(&confirm),
			),
		).WithTheme(huh.ThemeDracula())
		if err := form.Run(); err != nil {
			return err
		}
		if !confirm {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := ctx.Tracker.DeleteHabit(h.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted habit: %s\n", h.Name)
	return nil
}

type DayArgs struct {
	Habit string `arg:"" help:"Habit ID or name."`
	Date  string `help:"Day in YYYY-MM-DD format (default: today)."`
}

func (a DayArgs) resolve(ctx *cli.Context) (models.Habit, string, error) {
	h, err := ctx.Tracker.Resolve(a.Habit)
	if err != nil {
		return models.Habit{}, "", err
	}
	day, err := ctx.ResolveDay(a.Date)
	if err != nil {
		return models.Habit{}, "", err
	}
	return h, day, nil
}

type completionFunc func(id, day string) (tracker.CompletionResult, error)

func runCompletion(ctx *cli.Context, args DayArgs, fn func(*tracker.Tracker) completionFunc) error {
	h, day, err := args.resolve(ctx)
	if err != nil {
		return err
	}
	res, err := fn(ctx.Tracker)(h.ID, day)
	if err != nil {
		return err
	}
	return ctx.ReportCompletion(res, day)
}

type HabitIncCmd struct {
	DayArgs `embed:""`
}

func (c *HabitIncCmd) Run(ctx *cli.Context) error {
	return runCompletion(ctx, c.DayArgs, func(t *tracker.Tracker) completionFunc { return t.IncrementCompletion })
}

type HabitResetCmd struct {
	DayArgs `embed:""`
}

func (c *HabitResetCmd) Run(ctx *cli.Context) error {
	return runCompletion(ctx, c.DayArgs, func(t *tracker.Tracker) completionFunc { return t.ResetCompletion })
}

type HabitToggleCmd struct {
	DayArgs `embed:""`
}

func (c *HabitToggleCmd) Run(ctx *cli.Context) error {
	return runCompletion(ctx, c.DayArgs, func(t *tracker.Tracker) completionFunc { return t.ToggleCompleted })
}

type HabitSetCmd struct {
	DayArgs `embed:""`
	Count   int `arg:"" help:"Completion count for the day."`
}

func (c *HabitSetCmd) Run(ctx *cli.Context) error {
	if c.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", c.Count)
	}
	return runCompletion(ctx, c.DayArgs, func(t *tracker.Tracker) completionFunc {
		return func(id, day string) (tracker.CompletionResult, error) {
			return t.SetCompletionCount(id, day, c.Count)
		}
	})
}

type HabitTargetCmd struct {
	Habit  string `arg:"" help:"Habit ID or name."`
	Target int    `arg:"" help:"Completions per day that count as done. Values below 1 become 1."`
}

func (c *HabitTargetCmd) Run(ctx *cli.Context) error {
	h, err := ctx.Tracker.Resolve(c.Habit)
	if err != nil {
		return err
	}
	updated, err := ctx.Tracker.SetDailyTarget(h.ID, c.Target)
	if err != nil {
		return err
	}
	fmt.Printf("%s now targets %d per day\n", cli.HabitTitle(updated), updated.DailyTarget)
	return nil
}

type HabitSeedCmd struct {
	Weeks int `help:"Weeks of history to generate." default:"4"`
}

func (c *HabitSeedCmd) Run(ctx *cli.Context) error {
	added, err := ctx.Tracker.SeedSampleHabits(c.Weeks)
	if err != nil {
		return err
	}
	if len(added) == 0 {
		fmt.Println("Sample habits already exist.")
		return nil
	}
	for _, h := range added {
		fmt.Printf("Added sample habit: %s\n", cli.HabitTitle(h))
	}
	return nil
}
