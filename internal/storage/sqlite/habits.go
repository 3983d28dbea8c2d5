package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gekoerrors "github.com/julianstephens/geko/internal/errors"
	"github.com/julianstephens/geko/internal/models"
)

const habitColumns = `id, name, emoji, color, daily_target, reminders_enabled,
	reminder_times, reminder_message, created_at, updated_at, deleted_at`

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func scanHabit(row rowScanner) (models.Habit, error) {
	var h models.Habit
	var color, reminderTimes, createdAt, updatedAt string
	var remindersEnabled int
	var deletedAt sql.NullString

	err := row.Scan(&h.ID, &h.Name, &h.Emoji, &color, &h.DailyTarget, &remindersEnabled,
		&reminderTimes, &h.ReminderMessage, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return models.Habit{}, err
	}

	h.Color = models.ColorOrDefault(color)
	h.RemindersEnabled = remindersEnabled != 0
	if err := json.Unmarshal([]byte(reminderTimes), &h.ReminderTimes); err != nil {
		return models.Habit{}, fmt.Errorf("failed to parse reminder_times for habit %s: %w", h.ID, err)
	}
	if len(h.ReminderTimes) == 0 {
		h.ReminderTimes = nil
	}

	h.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to parse created_at for habit %s: %w", h.ID, err)
	}
	h.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to parse updated_at for habit %s: %w", h.ID, err)
	}
	if deletedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, deletedAt.String)
		if err != nil {
			return models.Habit{}, fmt.Errorf("failed to parse deleted_at for habit %s: %w", h.ID, err)
		}
		h.DeletedAt = &t
	}
	h.Completions = map[string]int{}
	return h, nil
}

// loadCompletions fills the ledgers of habits in place.
func (s *Store) loadCompletions(habits []models.Habit) error {
	if len(habits) == 0 {
		return nil
	}
	byID := make(map[string]*models.Habit, len(habits))
	args := make([]any, 0, len(habits))
	for i := range habits {
		byID[habits[i].ID] = &habits[i]
		args = append(args, habits[i].ID)
	}

	query := "SELECT habit_id, day, count FROM habit_completions WHERE habit_id IN (?" +
		strings.Repeat(", ?", len(args)-1) + ")"
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var habitID, day string
		var count int
		if err := rows.Scan(&habitID, &day, &count); err != nil {
			return err
		}
		if h, ok := byID[habitID]; ok && count > 0 {
			h.Completions[day] = count
		}
	}
	return rows.Err()
}

func (s *Store) queryHabits(query string, args ...any) ([]models.Habit, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []models.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadCompletions(habits); err != nil {
		return nil, err
	}
	return habits, nil
}

func (s *Store) AddHabit(habit models.Habit) error {
	return s.UpdateHabit(habit)
}

func (s *Store) GetHabit(id string) (models.Habit, error) {
	h, err := scanHabit(s.db.QueryRow(
		"SELECT "+habitColumns+" FROM habits WHERE id = ? AND deleted_at IS NULL", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Habit{}, fmt.Errorf("%w: %s", gekoerrors.ErrHabitNotFound, id)
		}
		return models.Habit{}, err
	}

	habits := []models.Habit{h}
	if err := s.loadCompletions(habits); err != nil {
		return models.Habit{}, err
	}
	return habits[0], nil
}

func (s *Store) GetHabitsByName(name string) ([]models.Habit, error) {
	return s.queryHabits(
		"SELECT "+habitColumns+" FROM habits WHERE name = ? AND deleted_at IS NULL ORDER BY created_at, id",
		strings.TrimSpace(name))
}

func (s *Store) GetAllHabits() ([]models.Habit, error) {
	return s.queryHabits(
		"SELECT " + habitColumns + " FROM habits WHERE deleted_at IS NULL ORDER BY created_at, id")
}

func (s *Store) GetAllHabitsIncludingDeleted() ([]models.Habit, error) {
	return s.queryHabits(
		"SELECT " + habitColumns + " FROM habits ORDER BY created_at, id")
}

func (s *Store) UpdateHabit(habit models.Habit) error {
	reminderTimes := habit.ReminderTimes
	if reminderTimes == nil {
		reminderTimes = []string{}
	}
	encodedTimes, err := json.Marshal(reminderTimes)
	if err != nil {
		return fmt.Errorf("failed to encode reminder times: %w", err)
	}

	var deletedAt sql.NullString
	if habit.DeletedAt != nil {
		deletedAt = sql.NullString{String: formatTime(*habit.DeletedAt), Valid: true}
	}
	remindersEnabled := 0
	if habit.RemindersEnabled {
		remindersEnabled = 1
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO habits (`+habitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			emoji = excluded.emoji,
			color = excluded.color,
			daily_target = excluded.daily_target,
			reminders_enabled = excluded.reminders_enabled,
			reminder_times = excluded.reminder_times,
			reminder_message = excluded.reminder_message,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at`,
		habit.ID, habit.Name, habit.Emoji, string(habit.Color), models.ClampTarget(habit.DailyTarget),
		remindersEnabled, string(encodedTimes), habit.ReminderMessage,
		formatTime(habit.CreatedAt), formatTime(habit.UpdatedAt), deletedAt)
	if err != nil {
		return fmt.Errorf("failed to save habit %s: %w", habit.ID, err)
	}

	if _, err := tx.Exec("DELETE FROM habit_completions WHERE habit_id = ?", habit.ID); err != nil {
		return fmt.Errorf("failed to clear completions for habit %s: %w", habit.ID, err)
	}
	for day, count := range habit.Completions {
		if count <= 0 {
			continue
		}
		if _, err := tx.Exec(
			"INSERT INTO habit_completions (habit_id, day, count) VALUES (?, ?, ?)",
			habit.ID, day, count); err != nil {
			return fmt.Errorf("failed to save completion %s for habit %s: %w", day, habit.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) DeleteHabit(id string) error {
	now := formatTime(time.Now())
	result, err := s.db.Exec(`
		UPDATE habits SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w or already deleted: %s", gekoerrors.ErrHabitNotFound, id)
	}
	return nil
}
