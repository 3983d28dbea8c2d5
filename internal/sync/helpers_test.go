package sync

import (
	"context"
	"errors"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/julianstephens/geko/internal/models"
	"github.com/julianstephens/geko/internal/storage/sqlite"
)

type fakePeer struct {
	mu        gosync.Mutex
	reachable bool
	sendErr   error
	sent      []Message
}

func (p *fakePeer) IsReachable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reachable
}

func (p *fakePeer) setReachable(v bool) {
	p.mu.Lock()
	p.reachable = v
	p.mu.Unlock()
}

func (p *fakePeer) Send(_ context.Context, m Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, m)
	return nil
}

func (p *fakePeer) messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.sent...)
}

type fakeCloud struct {
	available bool
	err       error
}

func (c fakeCloud) AccountStatus(context.Context) (bool, error) {
	return c.available, c.err
}

var errCloudDown = errors.New("cloud down")

func setupStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "geko.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

var testNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

func addHabit(t *testing.T, store *sqlite.Store, name, emoji string, target int) models.Habit {
	t.Helper()
	existing, err := store.GetAllHabitsIncludingDeleted()
	if err != nil {
		t.Fatalf("GetAllHabitsIncludingDeleted: %v", err)
	}
	// Distinct creation times keep store ordering stable.
	created := testNow.Add(time.Duration(len(existing)) * time.Minute)
	h, err := models.NewHabit(name, emoji, models.ColorGreen, target, created)
	if err != nil {
		t.Fatalf("NewHabit: %v", err)
	}
	if err := store.AddHabit(h); err != nil {
		t.Fatalf("AddHabit: %v", err)
	}
	return h
}
