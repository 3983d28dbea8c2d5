package sqlite

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	gekoerrors "github.com/julianstephens/geko/internal/errors"
	"github.com/julianstephens/geko/internal/models"
	"github.com/julianstephens/geko/internal/storage"
)

var _ storage.Provider = (*Store)(nil)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "geko.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	return store, func() { store.Close() }
}

func testHabit(t *testing.T, name string, target int) models.Habit {
	t.Helper()
	now := time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
	h, err := models.NewHabit(name, "💧", models.ColorBlue, target, now)
	if err != nil {
		t.Fatalf("NewHabit: %v", err)
	}
	return h
}

func TestLoadRequiresInit(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.db"))
	if err := store.Load(); err == nil {
		t.Error("Load() on a missing database should fail")
	}
}

func TestInitThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "geko.db")
	store := NewStore(path)
	if err := store.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	store.Close()

	reopened := NewStore(path)
	defer reopened.Close()
	if err := reopened.Load(); err != nil {
		t.Fatalf("Load after Init: %v", err)
	}
	if reopened.GetConfigPath() != path {
		t.Errorf("GetConfigPath() = %q, want %q", reopened.GetConfigPath(), path)
	}
}

func TestHabitRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	h := testHabit(t, "Drink Water", 8)
	h.RemindersEnabled = true
	h.SetReminderTimes([]string{"14:00", "09:00"})
	h.ReminderMessage = "Stay hydrated"
	h.SetCompletionCount("2025-03-09", 8)
	h.SetCompletionCount("2025-03-10", 3)

	if err := store.AddHabit(h); err != nil {
		t.Fatalf("AddHabit: %v", err)
	}

	got, err := store.GetHabit(h.ID)
	if err != nil {
		t.Fatalf("GetHabit: %v", err)
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Errorf("habit mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateHabitReplacesLedger(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	h := testHabit(t, "Read", 1)
	h.SetCompletionCount("2025-03-08", 1)
	h.SetCompletionCount("2025-03-09", 1)
	if err := store.AddHabit(h); err != nil {
		t.Fatalf("AddHabit: %v", err)
	}

	h.ResetCompletion("2025-03-08")
	h.Name = "Read Books"
	h.UpdatedAt = h.UpdatedAt.Add(time.Hour)
	if err := store.UpdateHabit(h); err != nil {
		t.Fatalf("UpdateHabit: %v", err)
	}

	got, err := store.GetHabit(h.ID)
	if err != nil {
		t.Fatalf("GetHabit: %v", err)
	}
	if got.Name != "Read Books" {
		t.Errorf("Name = %q, want %q", got.Name, "Read Books")
	}
	if diff := cmp.Diff(map[string]int{"2025-03-09": 1}, got.Completions); diff != "" {
		t.Errorf("completions mismatch (-want +got):\n%s", diff)
	}
	if !got.UpdatedAt.Equal(h.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, h.UpdatedAt)
	}
}

func TestGetHabitNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.GetHabit("does-not-exist")
	if !errors.Is(err, gekoerrors.ErrHabitNotFound) {
		t.Errorf("GetHabit() error = %v, want ErrHabitNotFound", err)
	}
}

func TestGetHabitsByName(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	first := testHabit(t, "Move", 1)
	second := testHabit(t, "Move", 1)
	second.CreatedAt = second.CreatedAt.Add(time.Minute)
	other := testHabit(t, "move", 1)
	for _, h := range []models.Habit{first, second, other} {
		if err := store.AddHabit(h); err != nil {
			t.Fatalf("AddHabit: %v", err)
		}
	}

	got, err := store.GetHabitsByName("  Move ")
	if err != nil {
		t.Fatalf("GetHabitsByName: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d habits, want 2 (name match is case-sensitive)", len(got))
	}
	if got[0].ID != first.ID || got[1].ID != second.ID {
		t.Errorf("habits not ordered by creation")
	}
}

func TestSoftDelete(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	h := testHabit(t, "Read", 1)
	h.SetCompletionCount("2025-03-09", 1)
	if err := store.AddHabit(h); err != nil {
		t.Fatalf("AddHabit: %v", err)
	}

	if err := store.DeleteHabit(h.ID); err != nil {
		t.Fatalf("DeleteHabit: %v", err)
	}
	if err := store.DeleteHabit(h.ID); !errors.Is(err, gekoerrors.ErrHabitNotFound) {
		t.Errorf("second DeleteHabit() error = %v, want ErrHabitNotFound", err)
	}

	if _, err := store.GetHabit(h.ID); !errors.Is(err, gekoerrors.ErrHabitNotFound) {
		t.Errorf("GetHabit() on deleted habit error = %v, want ErrHabitNotFound", err)
	}

	live, err := store.GetAllHabits()
	if err != nil {
		t.Fatalf("GetAllHabits: %v", err)
	}
	if len(live) != 0 {
		t.Errorf("GetAllHabits() returned %d habits, want 0", len(live))
	}

	all, err := store.GetAllHabitsIncludingDeleted()
	if err != nil {
		t.Fatalf("GetAllHabitsIncludingDeleted: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("GetAllHabitsIncludingDeleted() returned %d habits, want 1", len(all))
	}
	if all[0].DeletedAt == nil {
		t.Error("tombstone has no DeletedAt")
	}
	if !all[0].UpdatedAt.After(h.UpdatedAt) {
		t.Error("delete should bump UpdatedAt")
	}
}

func TestSettings(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	if _, err := store.GetSetting("feedback_prompt_presented"); !errors.Is(err, storage.ErrSettingNotFound) {
		t.Errorf("GetSetting() on unset key error = %v, want ErrSettingNotFound", err)
	}

	if err := store.SetSetting("feedback_prompt_presented", "true"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := store.SetSetting("feedback_prompt_presented", "false"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	got, err := store.GetSetting("feedback_prompt_presented")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if got != "false" {
		t.Errorf("GetSetting() = %q, want %q", got, "false")
	}

	if err := store.DeleteSetting("feedback_prompt_presented"); err != nil {
		t.Fatalf("DeleteSetting: %v", err)
	}
	if _, err := store.GetSetting("feedback_prompt_presented"); !errors.Is(err, storage.ErrSettingNotFound) {
		t.Errorf("GetSetting() after delete error = %v, want ErrSettingNotFound", err)
	}
}

func TestTwoHandlesShareState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geko.db")
	writer := NewStore(path)
	if err := writer.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer writer.Close()

	reader := NewStore(path)
	if err := reader.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer reader.Close()

	h := testHabit(t, "Move", 1)
	if err := writer.AddHabit(h); err != nil {
		t.Fatalf("AddHabit: %v", err)
	}
	got, err := reader.GetAllHabits()
	if err != nil {
		t.Fatalf("GetAllHabits: %v", err)
	}
	if len(got) != 1 || got[0].ID != h.ID {
		t.Errorf("second handle does not see the write: %+v", got)
	}
}
