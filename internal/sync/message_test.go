package sync

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/julianstephens/geko/internal/models"
)

func TestUpsertRoundTrip(t *testing.T) {
	h, err := models.NewHabit("Drink Water", "💧", models.ColorBlue, 8, testNow)
	if err != nil {
		t.Fatal(err)
	}
	h.SetCompletionCount("2025-03-09", 8)
	h.SetCompletionCount("2025-03-10", 3)
	h.RemindersEnabled = true
	h.SetReminderTimes([]string{"09:00", "15:00"})
	h.ReminderMessage = "Time to hydrate"

	want := UpsertFromHabit(h)
	data, err := EncodeMessage(want)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("frame is not JSON: %v", err)
	}
	if raw["action"] != ActionHabitUpdate {
		t.Errorf("action = %v, want %s", raw["action"], ActionHabitUpdate)
	}
	if diff := cmp.Diff([]any{"2025-03-09"}, raw["completedDays"]); diff != "" {
		t.Errorf("completedDays mismatch (-want +got):\n%s", diff)
	}

	got, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if diff := cmp.Diff(Message(want), got); diff != "" {
		t.Errorf("upsert mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeLegacyUpsert(t *testing.T) {
	frame := `{
		"action": "habitUpdate",
		"name": "Read",
		"emoji": "📚",
		"colorRawValue": "indigo",
		"dailyTarget": 1,
		"completedDays": ["2025-03-08", "2025-03-09"]
	}`

	got, err := DecodeMessage([]byte(frame))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	want := HabitUpsert{
		Name:        "Read",
		Emoji:       "📚",
		Color:       models.ColorIndigo,
		DailyTarget: 1,
		Counts:      map[string]int{"2025-03-08": 1, "2025-03-09": 1},
	}
	if diff := cmp.Diff(Message(want), got); diff != "" {
		t.Errorf("legacy upsert mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeUpsertNormalizes(t *testing.T) {
	frame := `{
		"action": "habitUpdate",
		"habitId": "abc",
		"name": "  Move ",
		"emoji": "🏃‍♂️",
		"colorTag": "chartreuse",
		"dailyTarget": 0,
		"completedDays": [],
		"dailyCompletionCounts": {"2025-03-10": 1, "2025-03-11": 0},
		"reminderTimes": ["18:00", "07:30", "18:00"]
	}`

	got, err := DecodeMessage([]byte(frame))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	u := got.(HabitUpsert)
	if u.Name != "Move" {
		t.Errorf("Name = %q, want trimmed", u.Name)
	}
	if u.Color != models.ColorBlue {
		t.Errorf("unknown color decoded to %q, want blue", u.Color)
	}
	if u.DailyTarget != 1 {
		t.Errorf("DailyTarget = %d, want clamped to 1", u.DailyTarget)
	}
	if diff := cmp.Diff(map[string]int{"2025-03-10": 1}, u.Counts); diff != "" {
		t.Errorf("zero counts should be dropped (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"07:30", "18:00"}, u.ReminderTimes); diff != "" {
		t.Errorf("reminder times mismatch (-want +got):\n%s", diff)
	}
}

func TestCompletionRoundTrip(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	h, err := models.NewHabit("Read", "📚", models.ColorIndigo, 1, testNow)
	if err != nil {
		t.Fatal(err)
	}
	h.IncrementCompletion("2025-03-10")

	msg, err := CompletionFromHabit(h, "2025-03-10", loc)
	if err != nil {
		t.Fatalf("CompletionFromHabit: %v", err)
	}
	if !msg.IsCompleted || msg.CompletionCount != 1 {
		t.Errorf("completion = %+v", msg)
	}

	data, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	got := decoded.(HabitCompletionUpdate)
	if day := got.DayKey(time.UTC); day != "2025-03-10" {
		t.Errorf("DayKey() = %s, want 2025-03-10", day)
	}
	if got.HabitID != h.ID || got.HabitName != "Read" {
		t.Errorf("identity = (%q, %q)", got.HabitID, got.HabitName)
	}
	if !got.Date.Equal(msg.Date) {
		t.Errorf("Date = %v, want %v", got.Date, msg.Date)
	}
}

func TestCompletionDayKeyUsesSenderOffset(t *testing.T) {
	// 23:30 on the 10th at UTC-5 is already the 11th in UTC.
	frame := `{"action":"habitCompletion","habitName":"Read","date":"2025-03-10T23:30:00-05:00","isCompleted":true,"completionCount":1}`
	got, err := DecodeMessage([]byte(frame))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	// The receiver's calendar does not matter when the offset is given.
	if day := got.(HabitCompletionUpdate).DayKey(time.FixedZone("UTC+9", 9*3600)); day != "2025-03-10" {
		t.Errorf("DayKey() = %s, want 2025-03-10", day)
	}
}

func TestCompletionDayKeyZuluUsesReceiverCalendar(t *testing.T) {
	// 20:30 on the 10th in New York, stamped in UTC by the sender.
	frame := `{"action":"habitCompletion","habitName":"Read","date":"2025-03-11T00:30:00Z","isCompleted":true,"completionCount":1}`
	got, err := DecodeMessage([]byte(frame))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	c := got.(HabitCompletionUpdate)

	newYork := time.FixedZone("EDT", -4*3600)
	tests := []struct {
		name string
		loc  *time.Location
		want string
	}{
		{"receiver west of UTC", newYork, "2025-03-10"},
		{"receiver in UTC", time.UTC, "2025-03-11"},
		{"no receiver calendar", nil, "2025-03-11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if day := c.DayKey(tt.loc); day != tt.want {
				t.Errorf("DayKey() = %s, want %s", day, tt.want)
			}
		})
	}
}

func TestCompletionFromUTCSenderKeepsOffset(t *testing.T) {
	h, err := models.NewHabit("Read", "📚", models.ColorIndigo, 1, testNow)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := CompletionFromHabit(h, "2025-03-10", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	data, err := EncodeMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"2025-03-10T12:00:00+00:00"`) {
		t.Errorf("frame = %s, want a numeric UTC offset", data)
	}

	decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	// A receiver far east of UTC still lands on the sender's day.
	if day := decoded.(HabitCompletionUpdate).DayKey(time.FixedZone("UTC+14", 14*3600)); day != "2025-03-10" {
		t.Errorf("DayKey() = %s, want 2025-03-10", day)
	}
}

func TestDeletionAndFullSyncRoundTrip(t *testing.T) {
	for _, msg := range []Message{
		HabitDeletion{HabitID: "abc", HabitName: "Read"},
		HabitDeletion{HabitName: "Read"},
		FullSyncRequest{},
	} {
		data, err := EncodeMessage(msg)
		if err != nil {
			t.Fatalf("EncodeMessage(%T): %v", msg, err)
		}
		got, err := DecodeMessage(data)
		if err != nil {
			t.Fatalf("DecodeMessage(%s): %v", data, err)
		}
		if diff := cmp.Diff(msg, got); diff != "" {
			t.Errorf("%T mismatch (-want +got):\n%s", msg, diff)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `{"action":`},
		{"no action", `{"habitName":"Read"}`},
		{"unknown action", `{"action":"habitRename"}`},
		{"upsert without name", `{"action":"habitUpdate","emoji":"📚","dailyTarget":1,"completedDays":[]}`},
		{"upsert without emoji", `{"action":"habitUpdate","name":"Read","dailyTarget":1,"completedDays":[]}`},
		{"upsert without target", `{"action":"habitUpdate","name":"Read","emoji":"📚","completedDays":[]}`},
		{"upsert without days", `{"action":"habitUpdate","name":"Read","emoji":"📚","dailyTarget":1}`},
		{"upsert blank name", `{"action":"habitUpdate","name":"  ","emoji":"📚","dailyTarget":1,"completedDays":[]}`},
		{"upsert two emoji", `{"action":"habitUpdate","name":"Read","emoji":"📚📚","dailyTarget":1,"completedDays":[]}`},
		{"upsert bad day key", `{"action":"habitUpdate","name":"Read","emoji":"📚","dailyTarget":1,"dailyCompletionCounts":{"yesterday":1}}`},
		{"upsert negative count", `{"action":"habitUpdate","name":"Read","emoji":"📚","dailyTarget":2,"dailyCompletionCounts":{"2025-03-10":-1}}`},
		{"upsert bad reminder", `{"action":"habitUpdate","name":"Read","emoji":"📚","dailyTarget":1,"completedDays":[],"reminderTimes":["noon"]}`},
		{"completion without habit", `{"action":"habitCompletion","date":"2025-03-10T12:00:00Z","completionCount":1}`},
		{"completion without date", `{"action":"habitCompletion","habitName":"Read","completionCount":1}`},
		{"completion without count", `{"action":"habitCompletion","habitName":"Read","date":"2025-03-10T12:00:00Z"}`},
		{"completion bad date", `{"action":"habitCompletion","habitName":"Read","date":"March 10","completionCount":1}`},
		{"deletion without habit", `{"action":"habitDeletion"}`},
		{"wrong field type", `{"action":"habitCompletion","habitName":"Read","date":"2025-03-10T12:00:00Z","completionCount":"one"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.frame))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("DecodeMessage() error = %v, want ErrMalformedMessage", err)
			}
			if msg != nil {
				t.Errorf("DecodeMessage() returned %#v for a malformed frame", msg)
			}
		})
	}
}

func TestCompletionFromHabitRejectsBadDay(t *testing.T) {
	if _, err := CompletionFromHabit(models.Habit{Name: "Read"}, "10/03/2025", time.UTC); err == nil {
		t.Error("expected an error for a malformed day key")
	}
}
