package storage

import (
	"errors"

	"github.com/julianstephens/geko/internal/models"
)

// ErrSettingNotFound is returned by GetSetting for an unset key.
var ErrSettingNotFound = errors.New("setting not found")

// HabitStore persists whole habit records, completion ledger included.
// Lookups by ID or name skip soft-deleted habits.
type HabitStore interface {
	AddHabit(models.Habit) error
	GetHabit(id string) (models.Habit, error)
	GetHabitsByName(name string) ([]models.Habit, error)
	GetAllHabits() ([]models.Habit, error)
	// GetAllHabitsIncludingDeleted also returns tombstones, for replication.
	GetAllHabitsIncludingDeleted() ([]models.Habit, error)
	// UpdateHabit upserts the record and replaces its completion ledger.
	UpdateHabit(models.Habit) error
	// DeleteHabit soft-deletes the habit, leaving a tombstone.
	DeleteHabit(id string) error
}

type SettingsStore interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
	DeleteSetting(key string) error
}

type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	HabitStore
	SettingsStore

	// Utils
	GetConfigPath() string
}
