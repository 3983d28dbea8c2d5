package grids

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/geko/internal/cli"
	"github.com/julianstephens/geko/internal/config"
	"github.com/julianstephens/geko/internal/storage/sqlite"
	"github.com/julianstephens/geko/internal/tracker"
)

func setupTestContext(t *testing.T) *cli.Context {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "geko.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}

	cfg := config.Default()
	cfg.Cloud.Enabled = false
	ctx := &cli.Context{
		Store:        store,
		Config:       cfg,
		ConfigDir:    t.TempDir(),
		Location:     time.UTC,
		FirstWeekday: time.Sunday,
		Now:          func() time.Time { return time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC) },
	}
	ctx.Wire(nil, nil)
	t.Cleanup(func() {
		ctx.Close()
		store.Close()
	})
	return ctx
}

func TestGridCommands(t *testing.T) {
	ctx := setupTestContext(t)
	if _, err := ctx.Tracker.CreateHabit(tracker.HabitInput{Name: "Water", Emoji: "💧", DailyTarget: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.Tracker.SeedSampleHabits(2); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cmd     interface{ Run(*cli.Context) error }
		wantErr bool
	}{
		{"week all habits", &GridWeekCmd{}, false},
		{"week one habit", &GridWeekCmd{GridArgs{Habit: "Water"}}, false},
		{"month with date", &GridMonthCmd{GridArgs{Habit: "Reading", Date: "2024-02-10"}}, false},
		{"history default weeks", &GridHistoryCmd{}, false},
		{"history explicit weeks", &GridHistoryCmd{GridArgs: GridArgs{Habit: "Water"}, Weeks: 3}, false},
		{"unknown habit", &GridMonthCmd{GridArgs{Habit: "Nope"}}, true},
		{"bad date", &GridWeekCmd{GridArgs{Date: "2025-13-01"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Run(ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHistoryRejectsNonPositiveConfig(t *testing.T) {
	ctx := setupTestContext(t)
	ctx.Config.HistoryWeeks = 0

	if err := (&GridHistoryCmd{}).Run(ctx); err == nil {
		t.Error("expected an error when no week count is available")
	}
}

func TestEmptyStore(t *testing.T) {
	ctx := setupTestContext(t)
	if err := (&GridWeekCmd{}).Run(ctx); err != nil {
		t.Errorf("week on empty store failed: %v", err)
	}
}
