package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/geko/internal/cloud"
	"github.com/julianstephens/geko/internal/config"
	"github.com/julianstephens/geko/internal/feedback"
	"github.com/julianstephens/geko/internal/logger"
	"github.com/julianstephens/geko/internal/models"
	"github.com/julianstephens/geko/internal/storage"
	gekosync "github.com/julianstephens/geko/internal/sync"
	"github.com/julianstephens/geko/internal/tracker"
	"github.com/julianstephens/geko/internal/utils"
)

const FeedbackMessage = "You've completed more than three habits today. Enjoying geko? Tell us how it's going!"

// Context carries the per-process services into every command.
type Context struct {
	Store     storage.Provider
	Config    config.Config
	ConfigDir string
	// CloudDSN is the --cloud flag value; see cloud.ResolveDSN for the
	// fallbacks.
	CloudDSN string

	Location     *time.Location
	FirstWeekday time.Weekday
	Now          func() time.Time

	Coordinator *gekosync.Coordinator
	Feedback    *feedback.Trigger
	Tracker     *tracker.Tracker
}

// Wire builds the coordinator, feedback trigger, and tracker over the loaded
// store. Command processes pass a nil peer; only the sync daemon and the
// one-shot sync commands hold a peer link.
func (c *Context) Wire(cloudCh gekosync.CloudChannel, peer gekosync.PeerChannel) {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Location == nil {
		c.Location = time.Local
	}

	c.Coordinator = gekosync.NewCoordinator(cloudCh, peer, gekosync.Options{
		Location:    c.Location,
		SendTimeout: c.Config.SendTimeout(),
	})
	c.Feedback = feedback.NewTrigger(c.Store)
	c.Tracker = tracker.New(c.Store, tracker.Options{
		Location:     c.Location,
		FirstWeekday: c.FirstWeekday,
		Now:          c.Now,
		Coordinator:  c.Coordinator,
		Feedback:     c.Feedback,
	})
}

// Close drains pending peer sends.
func (c *Context) Close() {
	if c.Coordinator != nil {
		c.Coordinator.Close()
	}
}

// CloudChannel resolves the cloud connection string. A disabled or
// unconfigured cloud yields a channel that is never available.
func (c *Context) CloudChannel() (*cloud.Channel, error) {
	if !c.Config.Cloud.Enabled {
		return cloud.NewChannel(""), nil
	}
	dsn, source, err := cloud.ResolveDSN(c.CloudDSN)
	if errors.Is(err, cloud.ErrNotConfigured) {
		logger.Debug("Cloud database not configured", "error", err)
		return cloud.NewChannel(""), nil
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("Using cloud database", "source", source)
	return cloud.NewChannel(dsn), nil
}

// ResolveDay turns a --date value into a day key, defaulting to today.
func (c *Context) ResolveDay(date string) (string, error) {
	day, err := utils.ResolveDate(date, c.Now(), c.Location)
	if err != nil {
		return "", err
	}
	return models.DayKey(day, c.Location), nil
}

// ReportCompletion prints the outcome of a completion command and shows the
// feedback prompt when it fired. Showing it marks it as presented.
func (c *Context) ReportCompletion(res tracker.CompletionResult, day string) error {
	h := res.Habit
	fmt.Printf("%s %s: %s\n", h.Emoji, h.Name, FormatProgress(h, day))

	if !res.FeedbackPrompt {
		return nil
	}
	fmt.Println()
	fmt.Println(PromptStyle.Render(FeedbackMessage))
	if err := c.Feedback.MarkPresented(); err != nil {
		return err
	}
	return nil
}
