package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	gekoerrors "github.com/julianstephens/geko/internal/errors"
	"github.com/julianstephens/geko/internal/logger"
	"github.com/julianstephens/geko/internal/models"
	"github.com/julianstephens/geko/internal/storage"
)

// Reducer applies inbound peer frames to the local store. Every write is
// whole-value last-writer-wins; there is no merge with concurrent local edits.
//
// Habits are matched by ID first and by trimmed, case-sensitive name when
// the ID is absent or unknown locally.
type Reducer struct {
	store storage.HabitStore
	peer  PeerChannel
	now   func() time.Time

	// Location is the local calendar, used for completion dates sent
	// without an offset. Defaults to time.Local.
	Location *time.Location

	// OnApplied, if set, is called after each committed write with the
	// resulting record and whether it was deleted.
	OnApplied func(h models.Habit, deleted bool)
}

func NewReducer(store storage.HabitStore, peer PeerChannel) *Reducer {
	return &Reducer{
		store:    store,
		peer:     peer,
		now:      time.Now,
		Location: time.Local,
	}
}

// Handle decodes and applies one frame. Malformed frames are logged and
// dropped; the returned error is for callers that want to count them.
func (r *Reducer) Handle(ctx context.Context, data []byte) error {
	msg, err := DecodeMessage(data)
	if err != nil {
		logger.Warn("Dropping peer message", "error", err)
		return err
	}
	if err := r.Apply(ctx, msg); err != nil {
		logger.Warn("Failed to apply peer message", "action", msg.Action(), "error", err)
		return err
	}
	return nil
}

// Apply applies a decoded message.
func (r *Reducer) Apply(ctx context.Context, msg Message) error {
	switch m := msg.(type) {
	case HabitUpsert:
		return r.applyUpsert(m)
	case HabitCompletionUpdate:
		return r.applyCompletion(m)
	case HabitDeletion:
		return r.applyDeletion(m)
	case FullSyncRequest:
		return r.replyFullSync(ctx)
	default:
		return fmt.Errorf("%w: unsupported message %T", ErrMalformedMessage, msg)
	}
}

// lookup returns the habit with id, else the oldest live habit named name.
func (r *Reducer) lookup(id, name string) (models.Habit, bool, error) {
	if id != "" {
		h, err := r.store.GetHabit(id)
		if err == nil {
			return h, true, nil
		}
		if !errors.Is(err, gekoerrors.ErrHabitNotFound) {
			return models.Habit{}, false, err
		}
	}
	if name == "" {
		return models.Habit{}, false, nil
	}
	matches, err := r.store.GetHabitsByName(name)
	if err != nil {
		return models.Habit{}, false, err
	}
	if len(matches) == 0 {
		return models.Habit{}, false, nil
	}
	return matches[0], true, nil
}

func (r *Reducer) applied(h models.Habit, deleted bool) {
	if r.OnApplied != nil {
		r.OnApplied(h, deleted)
	}
}

func (r *Reducer) applyUpsert(m HabitUpsert) error {
	h, found, err := r.lookup(m.HabitID, m.Name)
	if err != nil {
		return fmt.Errorf("failed to look up habit %q: %w", m.Name, err)
	}

	now := r.now()
	if !found {
		id := m.HabitID
		if id == "" {
			id = uuid.New().String()
		}
		h = models.Habit{ID: id, CreatedAt: now}
	}

	h.Name = m.Name
	h.Emoji = m.Emoji
	h.Color = m.Color
	h.SetDailyTarget(m.DailyTarget)
	h.RemindersEnabled = m.RemindersEnabled
	h.ReminderTimes = append([]string(nil), m.ReminderTimes...)
	h.ReminderMessage = m.ReminderMessage
	h.Completions = map[string]int{}
	for day, count := range m.Counts {
		h.SetCompletionCount(day, count)
	}
	h.UpdatedAt = now
	h.DeletedAt = nil

	if err := r.store.UpdateHabit(h); err != nil {
		return fmt.Errorf("failed to save habit %q: %w", h.Name, err)
	}
	logger.Debug("Applied peer upsert", "habit", h.Name, "id", h.ID, "created", !found)
	r.applied(h, false)
	return nil
}

func (r *Reducer) applyCompletion(m HabitCompletionUpdate) error {
	h, found, err := r.lookup(m.HabitID, m.HabitName)
	if err != nil {
		return fmt.Errorf("failed to look up habit %q: %w", m.HabitName, err)
	}
	if !found {
		return fmt.Errorf("%w: %q", gekoerrors.ErrHabitNotFound, m.HabitName)
	}

	day := m.DayKey(r.Location)
	if models.ClampTarget(h.DailyTarget) == 1 {
		if m.CompletionCount > 0 {
			h.SetCompletionCount(day, 1)
		} else {
			h.ResetCompletion(day)
		}
	} else {
		h.SetCompletionCount(day, m.CompletionCount)
	}
	h.UpdatedAt = r.now()

	if err := r.store.UpdateHabit(h); err != nil {
		return fmt.Errorf("failed to save completion for %q: %w", h.Name, err)
	}
	logger.Debug("Applied peer completion", "habit", h.Name, "day", day, "count", h.CompletionCount(day))
	r.applied(h, false)
	return nil
}

func (r *Reducer) applyDeletion(m HabitDeletion) error {
	var targets []models.Habit
	if m.HabitID != "" {
		h, err := r.store.GetHabit(m.HabitID)
		switch {
		case err == nil:
			targets = append(targets, h)
		case !errors.Is(err, gekoerrors.ErrHabitNotFound):
			return fmt.Errorf("failed to look up habit %s: %w", m.HabitID, err)
		}
	}
	if len(targets) == 0 && m.HabitName != "" {
		matches, err := r.store.GetHabitsByName(m.HabitName)
		if err != nil {
			return fmt.Errorf("failed to look up habit %q: %w", m.HabitName, err)
		}
		targets = matches
	}

	for _, h := range targets {
		if err := r.store.DeleteHabit(h.ID); err != nil {
			return fmt.Errorf("failed to delete habit %q: %w", h.Name, err)
		}
		logger.Debug("Applied peer deletion", "habit", h.Name, "id", h.ID)
		r.applied(h, true)
	}
	return nil
}

func (r *Reducer) replyFullSync(ctx context.Context) error {
	if r.peer == nil {
		return nil
	}
	habits, err := r.store.GetAllHabits()
	if err != nil {
		return fmt.Errorf("failed to load habits for full sync: %w", err)
	}
	for _, h := range habits {
		if !r.peer.IsReachable() {
			logger.Debug("Peer went away during full sync")
			return nil
		}
		if err := r.peer.Send(ctx, UpsertFromHabit(h)); err != nil {
			logger.Warn("Full sync send failed", "habit", h.Name, "error", err)
		}
	}
	logger.Info("Answered full sync request", "habits", len(habits))
	return nil
}
