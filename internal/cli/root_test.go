package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/geko/internal/config"
	"github.com/julianstephens/geko/internal/grid"
	"github.com/julianstephens/geko/internal/models"
	"github.com/julianstephens/geko/internal/storage/sqlite"
	"github.com/julianstephens/geko/internal/tracker"
)

var fixedNow = time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

func setupTestContext(t *testing.T) *Context {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "geko.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}

	cfg := config.Default()
	cfg.Cloud.Enabled = false
	ctx := &Context{
		Store:        store,
		Config:       cfg,
		ConfigDir:    t.TempDir(),
		Location:     time.UTC,
		FirstWeekday: time.Monday,
		Now:          func() time.Time { return fixedNow },
	}
	ctx.Wire(nil, nil)
	t.Cleanup(func() {
		ctx.Close()
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return ctx
}

func TestResolveDay(t *testing.T) {
	ctx := setupTestContext(t)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"default today", "", "2025-03-12", false},
		{"explicit", "2025-02-28", "2025-02-28", false},
		{"bad format", "28/02/2025", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ctx.ResolveDay(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveDay(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveDay(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCloudChannelDisabled(t *testing.T) {
	ctx := setupTestContext(t)
	ctx.CloudDSN = "postgres://user@localhost/geko"

	ch, err := ctx.CloudChannel()
	if err != nil {
		t.Fatalf("CloudChannel failed: %v", err)
	}
	defer ch.Close()

	ok, err := ch.AccountStatus(context.Background())
	if err != nil || ok {
		t.Errorf("disabled cloud should be unavailable, got ok=%v err=%v", ok, err)
	}
}

func TestReportCompletionMarksPrompt(t *testing.T) {
	ctx := setupTestContext(t)

	h, err := ctx.Tracker.CreateHabit(tracker.HabitInput{Name: "Read", Emoji: "📚", DailyTarget: 1})
	if err != nil {
		t.Fatal(err)
	}
	res := tracker.CompletionResult{Habit: h, FeedbackPrompt: true}
	if err := ctx.ReportCompletion(res, "2025-03-12"); err != nil {
		t.Fatalf("ReportCompletion failed: %v", err)
	}

	presented, err := ctx.Feedback.Presented()
	if err != nil {
		t.Fatal(err)
	}
	if !presented {
		t.Error("expected the prompt to be recorded as presented")
	}
}

func TestFormatProgress(t *testing.T) {
	h, err := models.NewHabit("Water", "💧", models.ColorBlue, 3, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	day := "2025-03-12"

	if got := FormatProgress(h, day); got != "0/3 (not started)" {
		t.Errorf("unexpected progress %q", got)
	}
	h.SetCompletionCount(day, 2)
	if got := FormatProgress(h, day); got != "2/3 (in progress)" {
		t.Errorf("unexpected progress %q", got)
	}
	h.SetCompletionCount(day, 5)
	if got := FormatProgress(h, day); got != "5/3 (done)" {
		t.Errorf("unexpected progress %q", got)
	}
}

func TestRenderGrids(t *testing.T) {
	h, err := models.NewHabit("Water", "💧", models.ColorBlue, 1, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	h.SetCompletionCount("2025-03-10", 1)
	b := grid.NewBuilder(time.UTC, time.Monday)

	week := RenderWeek(h, b, fixedNow)
	if lines := strings.Split(week, "\n"); len(lines) != 2 {
		t.Errorf("week view should have a header and one row, got %d lines", len(lines))
	}

	month := RenderMonth(h, b, fixedNow)
	if lines := strings.Split(month, "\n"); len(lines) != 7 {
		t.Errorf("month view should have a header and six rows, got %d lines", len(lines))
	}
	if !strings.Contains(month, "31") {
		t.Error("March should render day 31")
	}

	history := RenderHistory(h, b, fixedNow, 4)
	if lines := strings.Split(history, "\n"); len(lines) != 7 {
		t.Errorf("history view should have seven rows, got %d lines", len(lines))
	}
}
