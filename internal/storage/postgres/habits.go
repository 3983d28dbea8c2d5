package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pq "github.com/lib/pq"

	gekoerrors "github.com/julianstephens/geko/internal/errors"
	"github.com/julianstephens/geko/internal/models"
)

const habitColumns = `id, name, emoji, color, daily_target, reminders_enabled,
	reminder_times, reminder_message, created_at, updated_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (models.Habit, error) {
	var h models.Habit
	var color, reminderTimes string
	var deletedAt sql.NullTime

	err := row.Scan(&h.ID, &h.Name, &h.Emoji, &color, &h.DailyTarget, &h.RemindersEnabled,
		&reminderTimes, &h.ReminderMessage, &h.CreatedAt, &h.UpdatedAt, &deletedAt)
	if err != nil {
		return models.Habit{}, err
	}

	h.Color = models.ColorOrDefault(color)
	if err := json.Unmarshal([]byte(reminderTimes), &h.ReminderTimes); err != nil {
		return models.Habit{}, fmt.Errorf("failed to parse reminder_times for habit %s: %w", h.ID, err)
	}
	if len(h.ReminderTimes) == 0 {
		h.ReminderTimes = nil
	}
	h.CreatedAt = h.CreatedAt.UTC()
	h.UpdatedAt = h.UpdatedAt.UTC()
	if deletedAt.Valid {
		t := deletedAt.Time.UTC()
		h.DeletedAt = &t
	}
	h.Completions = map[string]int{}
	return h, nil
}

func (s *Store) loadCompletions(habits []models.Habit) error {
	if len(habits) == 0 {
		return nil
	}
	byID := make(map[string]*models.Habit, len(habits))
	ids := make([]string, 0, len(habits))
	for i := range habits {
		byID[habits[i].ID] = &habits[i]
		ids = append(ids, habits[i].ID)
	}

	rows, err := s.db.Query(
		"SELECT habit_id, day, count FROM habit_completions WHERE habit_id = ANY($1)",
		pq.Array(ids))
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
		"SELECT "+habitColumns+" FROM habits WHERE id = $1 AND deleted_at IS NULL", id))
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
		"SELECT "+habitColumns+" FROM habits WHERE name = $1 AND deleted_at IS NULL ORDER BY created_at, id",
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

	var deletedAt sql.NullTime
	if habit.DeletedAt != nil {
		deletedAt = sql.NullTime{Time: habit.DeletedAt.UTC(), Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO habits (`+habitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			emoji = EXCLUDED.emoji,
			color = EXCLUDED.color,
			daily_target = EXCLUDED.daily_target,
			reminders_enabled = EXCLUDED.reminders_enabled,
			reminder_times = EXCLUDED.reminder_times,
			reminder_message = EXCLUDED.reminder_message,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at`,
		habit.ID, habit.Name, habit.Emoji, string(habit.Color), models.ClampTarget(habit.DailyTarget),
		habit.RemindersEnabled, string(encodedTimes), habit.ReminderMessage,
		habit.CreatedAt.UTC(), habit.UpdatedAt.UTC(), deletedAt)
	if err != nil {
		return fmt.Errorf("failed to save habit %s: %w", habit.ID, err)
	}

	if _, err := tx.Exec("DELETE FROM habit_completions WHERE habit_id = $1", habit.ID); err != nil {
		return fmt.Errorf("failed to clear completions for habit %s: %w", habit.ID, err)
	}
	for day, count := range habit.Completions {
		if count <= 0 {
			continue
		}
		if _, err := tx.Exec(
			"INSERT INTO habit_completions (habit_id, day, count) VALUES ($1, $2, $3)",
			habit.ID, day, count); err != nil {
			return fmt.Errorf("failed to save completion %s for habit %s: %w", day, habit.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) DeleteHabit(id string) error {
	now := time.Now().UTC()
	result, err := s.db.Exec(`
		UPDATE habits SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		now, id)
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
