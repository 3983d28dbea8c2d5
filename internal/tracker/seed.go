package tracker

import (
	"fmt"

	"github.com/julianstephens/geko/internal/constants"
	"github.com/julianstephens/geko/internal/logger"
	"github.com/julianstephens/geko/internal/models"
	gekosync "github.com/julianstephens/geko/internal/sync"
	"github.com/julianstephens/geko/internal/utils"
)

var sampleHabits = []HabitInput{
	{Name: "Drink Water", Emoji: "💧", Color: models.ColorBlue, DailyTarget: 1},
	{Name: "Exercise", Emoji: "💪", Color: models.ColorOrange, DailyTarget: 1},
	{Name: "Reading", Emoji: "📚", Color: models.ColorIndigo, DailyTarget: 1},
	{Name: "Meditation", Emoji: "🧘", Color: models.ColorMint, DailyTarget: 1},
}

// SeedSampleHabits adds the preview habits with a deterministic history
// covering roughly seven days in ten over the last weeks. Names that
// already exist are skipped.
func (t *Tracker) SeedSampleHabits(weeks int) ([]models.Habit, error) {
	if weeks < 1 {
		weeks = 1
	}
	today := utils.StartOfDay(t.now(), t.loc)

	var added []models.Habit
	for i, in := range sampleHabits {
		existing, err := t.store.GetHabitsByName(in.Name)
		if err != nil {
			return added, err
		}
		if len(existing) > 0 {
			logger.Debug("Sample habit already exists", "name", in.Name)
			continue
		}

		h, err := models.NewHabit(in.Name, in.Emoji, in.Color, in.DailyTarget, t.now())
		if err != nil {
			return added, err
		}
		for index := 0; index < weeks*constants.DaysPerWeek; index++ {
			if (index+i*3)%10 < 7 {
				h.SetCompletionCount(models.DayKey(utils.AddDays(today, -index), t.loc), h.DailyTarget)
			}
		}

		if err := t.store.AddHabit(h); err != nil {
			return added, fmt.Errorf("failed to save sample habit %q: %w", h.Name, err)
		}
		t.notify(gekosync.Mutation{Kind: gekosync.MutationUpsert, Habit: h})
		added = append(added, h)
	}
	return added, nil
}
