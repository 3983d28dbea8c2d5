package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/geko/internal/logger"
	"github.com/julianstephens/geko/internal/models"
	"github.com/julianstephens/geko/internal/storage"
)

// Result counts the records copied by one replication pass.
type Result struct {
	Pushed int
	Pulled int
}

// Replicator copies whole habit records between the local store and the
// account database. The newer updated_at wins; tombstones replicate like any
// other record.
type Replicator struct {
	local storage.HabitStore
}

func NewReplicator(local storage.HabitStore) *Replicator {
	return &Replicator{local: local}
}

// The account database keeps microseconds, so comparisons ignore anything
// finer.
func stamp(h models.Habit) time.Time {
	return h.UpdatedAt.UTC().Truncate(time.Microsecond)
}

// SyncOnce runs one pass against remote.
func (r *Replicator) SyncOnce(ctx context.Context, remote storage.HabitStore) (Result, error) {
	var res Result

	localHabits, err := r.local.GetAllHabitsIncludingDeleted()
	if err != nil {
		return res, fmt.Errorf("failed to read local habits: %w", err)
	}
	remoteHabits, err := remote.GetAllHabitsIncludingDeleted()
	if err != nil {
		return res, fmt.Errorf("failed to read cloud habits: %w", err)
	}

	remoteByID := make(map[string]models.Habit, len(remoteHabits))
	for _, h := range remoteHabits {
		remoteByID[h.ID] = h
	}

	for _, lh := range localHabits {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rh, ok := remoteByID[lh.ID]
		delete(remoteByID, lh.ID)

		switch {
		case !ok || stamp(lh).After(stamp(rh)):
			if err := remote.UpdateHabit(lh); err != nil {
				return res, fmt.Errorf("failed to push habit %s: %w", lh.ID, err)
			}
			res.Pushed++
		case stamp(rh).After(stamp(lh)):
			if err := r.local.UpdateHabit(rh); err != nil {
				return res, fmt.Errorf("failed to pull habit %s: %w", rh.ID, err)
			}
			res.Pulled++
		}
	}

	// Whatever is left exists only in the cloud. Ranging over remoteHabits
	// keeps the pull order stable.
	for _, rh := range remoteHabits {
		if _, ok := remoteByID[rh.ID]; !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := r.local.UpdateHabit(rh); err != nil {
			return res, fmt.Errorf("failed to pull habit %s: %w", rh.ID, err)
		}
		res.Pulled++
	}

	if res.Pushed > 0 || res.Pulled > 0 {
		logger.Info("Cloud replication pass", "pushed", res.Pushed, "pulled", res.Pulled)
	} else {
		logger.Debug("Cloud replication pass, nothing to copy")
	}
	return res, nil
}
