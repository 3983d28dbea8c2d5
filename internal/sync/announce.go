package sync

import (
	"context"
	"fmt"
	"slices"
	gosync "sync"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/julianstephens/geko/internal/logger"
	"github.com/julianstephens/geko/internal/models"
	"github.com/julianstephens/geko/internal/storage"
)

// fingerprintView is the part of a habit that peers see. Timestamps are
// left out so a record rewritten with the same content hashes the same.
type fingerprintView struct {
	ID               string
	Name             string
	Emoji            string
	Color            string
	DailyTarget      int
	RemindersEnabled bool
	ReminderTimes    []string
	ReminderMessage  string
	Completions      map[string]int
	Deleted          bool
}

// Fingerprint hashes the peer-visible content of h.
func Fingerprint(h models.Habit, deleted bool) (uint64, error) {
	return hashstructure.Hash(fingerprintView{
		ID:               h.ID,
		Name:             h.Name,
		Emoji:            h.Emoji,
		Color:            string(h.Color),
		DailyTarget:      models.ClampTarget(h.DailyTarget),
		RemindersEnabled: h.RemindersEnabled,
		ReminderTimes:    h.ReminderTimes,
		ReminderMessage:  h.ReminderMessage,
		Completions:      h.Completions,
		Deleted:          deleted,
	}, hashstructure.FormatV2, nil)
}

// fieldsFingerprint hashes everything but the completion ledger.
func fieldsFingerprint(h models.Habit, deleted bool) (uint64, error) {
	h.Completions = nil
	return Fingerprint(h, deleted)
}

// changedDays lists, sorted, the days whose count differs between a and b.
func changedDays(a, b map[string]int) []string {
	var days []string
	for day, n := range a {
		if b[day] != n {
			days = append(days, day)
		}
	}
	for day := range b {
		if _, ok := a[day]; !ok {
			days = append(days, day)
		}
	}
	slices.Sort(days)
	return days
}

type knownHabit struct {
	fp      uint64
	habit   models.Habit
	deleted bool
}

// Announcer notices habits changed in the shared store by other processes
// and notifies the coordinator about them. A change confined to the
// completion ledger is announced as one completion per changed day, so the
// peer only overwrites those days. Records written by the reducer are
// remembered first so they are not echoed back to the peer.
type Announcer struct {
	store storage.HabitStore
	coord *Coordinator

	mu    gosync.Mutex
	known map[string]knownHabit
}

func NewAnnouncer(store storage.HabitStore, coord *Coordinator) *Announcer {
	return &Announcer{
		store: store,
		coord: coord,
		known: make(map[string]knownHabit),
	}
}

func newKnown(h models.Habit, deleted bool) (knownHabit, error) {
	fp, err := Fingerprint(h, deleted)
	if err != nil {
		return knownHabit{}, err
	}
	return knownHabit{fp: fp, habit: h.Clone(), deleted: deleted}, nil
}

// Prime records the current store contents without announcing anything.
func (a *Announcer) Prime() error {
	habits, err := a.store.GetAllHabitsIncludingDeleted()
	if err != nil {
		return fmt.Errorf("failed to load habits: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, h := range habits {
		k, err := newKnown(h, h.DeletedAt != nil)
		if err != nil {
			return err
		}
		a.known[h.ID] = k
	}
	return nil
}

// Remember marks h as already known to the peer.
func (a *Announcer) Remember(h models.Habit, deleted bool) {
	k, err := newKnown(h, deleted)
	if err != nil {
		logger.Warn("Failed to fingerprint habit", "habit", h.Name, "error", err)
		return
	}
	a.mu.Lock()
	a.known[h.ID] = k
	a.mu.Unlock()
}

// diff returns the mutations that take the peer from prev to next.
func diff(prev knownHabit, seen bool, next knownHabit) ([]Mutation, error) {
	h := next.habit
	switch {
	case next.deleted && seen && !prev.deleted:
		return []Mutation{{Kind: MutationDeletion, Habit: h}}, nil
	case next.deleted:
		// A tombstone the peer never heard about, or one it already has.
		return nil, nil
	case !seen || prev.deleted:
		return []Mutation{{Kind: MutationUpsert, Habit: h}}, nil
	}

	before, err := fieldsFingerprint(prev.habit, false)
	if err != nil {
		return nil, err
	}
	after, err := fieldsFingerprint(h, false)
	if err != nil {
		return nil, err
	}
	if before != after {
		return []Mutation{{Kind: MutationUpsert, Habit: h}}, nil
	}

	var out []Mutation
	for _, day := range changedDays(prev.habit.Completions, h.Completions) {
		out = append(out, Mutation{Kind: MutationCompletion, Habit: h, Day: day})
	}
	return out, nil
}

// Scan compares the store against what is known and notifies the
// mutations needed to bring the peer up to date. It returns how many were
// announced.
func (a *Announcer) Scan(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	habits, err := a.store.GetAllHabitsIncludingDeleted()
	if err != nil {
		return 0, fmt.Errorf("failed to load habits: %w", err)
	}

	var pending []Mutation
	a.mu.Lock()
	for _, h := range habits {
		next, err := newKnown(h, h.DeletedAt != nil)
		if err != nil {
			a.mu.Unlock()
			return 0, err
		}
		prev, seen := a.known[h.ID]
		if seen && prev.fp == next.fp {
			continue
		}
		muts, err := diff(prev, seen, next)
		if err != nil {
			a.mu.Unlock()
			return 0, err
		}
		a.known[h.ID] = next
		pending = append(pending, muts...)
	}
	a.mu.Unlock()

	for _, m := range pending {
		a.coord.NotifyMutation(m)
	}
	if len(pending) > 0 {
		logger.Debug("Announced store changes", "count", len(pending))
	}
	return len(pending), nil
}
