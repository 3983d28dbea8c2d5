package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/julianstephens/geko/internal/constants"
	"github.com/julianstephens/geko/internal/models"
)

// Wire action tags.
const (
	ActionHabitUpdate     = "habitUpdate"
	ActionHabitCompletion = "habitCompletion"
	ActionHabitDeletion   = "habitDeletion"
	ActionRequestFullSync = "requestFullSync"
)

// ErrMalformedMessage is returned for frames that cannot be applied as a whole.
var ErrMalformedMessage = errors.New("malformed peer message")

// Message is one peer frame.
type Message interface {
	Action() string
}

// HabitUpsert carries a whole habit record.
type HabitUpsert struct {
	HabitID          string
	Name             string
	Emoji            string
	Color            models.Color
	DailyTarget      int
	Counts           map[string]int
	RemindersEnabled bool
	ReminderTimes    []string
	ReminderMessage  string
}

func (HabitUpsert) Action() string { return ActionHabitUpdate }

// CompletedDays returns the days whose count meets the target.
func (u HabitUpsert) CompletedDays() []string {
	return u.habit().CompletedDays()
}

func (u HabitUpsert) habit() models.Habit {
	return models.Habit{
		ID:               u.HabitID,
		Name:             u.Name,
		Emoji:            u.Emoji,
		Color:            u.Color,
		DailyTarget:      models.ClampTarget(u.DailyTarget),
		RemindersEnabled: u.RemindersEnabled,
		ReminderTimes:    u.ReminderTimes,
		ReminderMessage:  u.ReminderMessage,
		Completions:      u.Counts,
	}
}

// HabitCompletionUpdate carries one day's count for one habit.
type HabitCompletionUpdate struct {
	HabitID         string
	HabitName       string
	Date            time.Time
	IsCompleted     bool
	CompletionCount int
}

func (HabitCompletionUpdate) Action() string { return ActionHabitCompletion }

// wireTimeLayout is RFC 3339 with a numeric offset even at UTC. A bare "Z"
// marks a sender that did not carry its calendar offset.
const wireTimeLayout = "2006-01-02T15:04:05-07:00"

// DayKey is the calendar date of Date in the sender's UTC offset. A date
// stamped "Z" is read in the receiver's loc instead; nil keeps UTC.
func (c HabitCompletionUpdate) DayKey(loc *time.Location) string {
	if loc != nil && c.Date.Location() == time.UTC {
		return c.Date.In(loc).Format(constants.DateFormat)
	}
	return c.Date.Format(constants.DateFormat)
}

// HabitDeletion removes a habit by ID or, failing that, by name.
type HabitDeletion struct {
	HabitID   string
	HabitName string
}

func (HabitDeletion) Action() string { return ActionHabitDeletion }

// FullSyncRequest asks the peer to resend every habit.
type FullSyncRequest struct{}

func (FullSyncRequest) Action() string { return ActionRequestFullSync }

// UpsertFromHabit snapshots h for sending.
func UpsertFromHabit(h models.Habit) HabitUpsert {
	return HabitUpsert{
		HabitID:          h.ID,
		Name:             h.Name,
		Emoji:            h.Emoji,
		Color:            h.Color,
		DailyTarget:      models.ClampTarget(h.DailyTarget),
		Counts:           maps.Clone(h.Completions),
		RemindersEnabled: h.RemindersEnabled,
		ReminderTimes:    append([]string(nil), h.ReminderTimes...),
		ReminderMessage:  h.ReminderMessage,
	}
}

// CompletionFromHabit builds the completion frame for day. The instant is
// noon of day in loc so the receiver recovers the same day key from the
// offset.
func CompletionFromHabit(h models.Habit, day string, loc *time.Location) (HabitCompletionUpdate, error) {
	if loc == nil || loc == time.UTC {
		// time.UTC is reserved for "Z" dates
		loc = time.FixedZone("UTC", 0)
	}
	d, err := time.ParseInLocation(constants.DateFormat, day, loc)
	if err != nil {
		return HabitCompletionUpdate{}, fmt.Errorf("invalid day key %q: %w", day, err)
	}
	return HabitCompletionUpdate{
		HabitID:         h.ID,
		HabitName:       h.Name,
		Date:            time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, loc),
		IsCompleted:     h.IsCompleted(day),
		CompletionCount: h.CompletionCount(day),
	}, nil
}

type upsertFrame struct {
	Action                string         `json:"action"`
	HabitID               string         `json:"habitId"`
	Name                  string         `json:"name"`
	Emoji                 string         `json:"emoji"`
	ColorTag              string         `json:"colorTag"`
	DailyTarget           int            `json:"dailyTarget"`
	CompletedDays         []string       `json:"completedDays"`
	DailyCompletionCounts map[string]int `json:"dailyCompletionCounts"`
	RemindersEnabled      bool           `json:"remindersEnabled"`
	ReminderTimes         []string       `json:"reminderTimes"`
	ReminderMessage       string         `json:"reminderMessage"`
}

type completionFrame struct {
	Action          string `json:"action"`
	HabitID         string `json:"habitId,omitempty"`
	HabitName       string `json:"habitName"`
	Date            string `json:"date"`
	IsCompleted     bool   `json:"isCompleted"`
	CompletionCount int    `json:"completionCount"`
}

type deletionFrame struct {
	Action    string `json:"action"`
	HabitName string `json:"habitName"`
	HabitID   string `json:"habitId"`
}

type actionFrame struct {
	Action string `json:"action"`
}

// inboundFrame is the union of every field. Pointers distinguish a missing
// field from a zero value.
type inboundFrame struct {
	Action                *string        `json:"action"`
	HabitID               *string        `json:"habitId"`
	Name                  *string        `json:"name"`
	Emoji                 *string        `json:"emoji"`
	ColorTag              *string        `json:"colorTag"`
	ColorRawValue         *string        `json:"colorRawValue"`
	DailyTarget           *int           `json:"dailyTarget"`
	CompletedDays         []string       `json:"completedDays"`
	DailyCompletionCounts map[string]int `json:"dailyCompletionCounts"`
	RemindersEnabled      *bool          `json:"remindersEnabled"`
	ReminderTimes         []string       `json:"reminderTimes"`
	ReminderMessage       *string        `json:"reminderMessage"`
	HabitName             *string        `json:"habitName"`
	Date                  *string        `json:"date"`
	IsCompleted           *bool          `json:"isCompleted"`
	CompletionCount       *int           `json:"completionCount"`
}

// EncodeMessage renders m as a JSON frame.
func EncodeMessage(m Message) ([]byte, error) {
	switch msg := m.(type) {
	case HabitUpsert:
		counts := msg.Counts
		if counts == nil {
			counts = map[string]int{}
		}
		completed := msg.CompletedDays()
		if completed == nil {
			completed = []string{}
		}
		times := msg.ReminderTimes
		if times == nil {
			times = []string{}
		}
		return json.Marshal(upsertFrame{
			Action:                ActionHabitUpdate,
			HabitID:               msg.HabitID,
			Name:                  msg.Name,
			Emoji:                 msg.Emoji,
			ColorTag:              string(msg.Color),
			DailyTarget:           models.ClampTarget(msg.DailyTarget),
			CompletedDays:         completed,
			DailyCompletionCounts: counts,
			RemindersEnabled:      msg.RemindersEnabled,
			ReminderTimes:         times,
			ReminderMessage:       msg.ReminderMessage,
		})
	case HabitCompletionUpdate:
		return json.Marshal(completionFrame{
			Action:          ActionHabitCompletion,
			HabitID:         msg.HabitID,
			HabitName:       msg.HabitName,
			Date:            msg.Date.Format(wireTimeLayout),
			IsCompleted:     msg.IsCompleted,
			CompletionCount: msg.CompletionCount,
		})
	case HabitDeletion:
		return json.Marshal(deletionFrame{
			Action:    ActionHabitDeletion,
			HabitName: msg.HabitName,
			HabitID:   msg.HabitID,
		})
	case FullSyncRequest:
		return json.Marshal(actionFrame{Action: ActionRequestFullSync})
	default:
		return nil, fmt.Errorf("unsupported message type %T", m)
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// DecodeMessage parses a frame. Any missing required field or invalid value
// rejects the whole frame with ErrMalformedMessage.
func DecodeMessage(data []byte) (Message, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, malformed("invalid JSON: %v", err)
	}
	if f.Action == nil {
		return nil, malformed("missing action")
	}

	switch *f.Action {
	case ActionHabitUpdate:
		return decodeUpsert(f)
	case ActionHabitCompletion:
		return decodeCompletion(f)
	case ActionHabitDeletion:
		id, name := deref(f.HabitID), deref(f.HabitName)
		if id == "" && name == "" {
			return nil, malformed("habitDeletion needs habitId or habitName")
		}
		return HabitDeletion{HabitID: id, HabitName: name}, nil
	case ActionRequestFullSync:
		return FullSyncRequest{}, nil
	default:
		return nil, malformed("unknown action %q", *f.Action)
	}
}

func decodeUpsert(f inboundFrame) (Message, error) {
	if f.Name == nil || f.Emoji == nil || f.DailyTarget == nil {
		return nil, malformed("habitUpdate needs name, emoji and dailyTarget")
	}
	if f.DailyCompletionCounts == nil && f.CompletedDays == nil {
		return nil, malformed("habitUpdate needs dailyCompletionCounts or completedDays")
	}

	color := f.ColorTag
	if color == nil {
		color = f.ColorRawValue
	}

	u := HabitUpsert{
		HabitID:         deref(f.HabitID),
		Name:            deref(f.Name),
		Emoji:           deref(f.Emoji),
		Color:           models.ColorOrDefault(deref(color)),
		DailyTarget:     models.ClampTarget(*f.DailyTarget),
		Counts:          map[string]int{},
		ReminderMessage: deref(f.ReminderMessage),
	}
	if f.RemindersEnabled != nil {
		u.RemindersEnabled = *f.RemindersEnabled
	}

	if f.DailyCompletionCounts != nil {
		for day, count := range f.DailyCompletionCounts {
			if !models.ValidDayKey(day) {
				return nil, malformed("invalid day key %q", day)
			}
			if count < 0 {
				return nil, malformed("negative count for %s", day)
			}
			if count > 0 {
				u.Counts[day] = count
			}
		}
	} else {
		for _, day := range f.CompletedDays {
			if !models.ValidDayKey(day) {
				return nil, malformed("invalid day key %q", day)
			}
			u.Counts[day] = u.DailyTarget
		}
	}

	h := u.habit()
	h.SetReminderTimes(f.ReminderTimes)
	if len(h.ReminderTimes) == 0 {
		h.ReminderTimes = nil
	}
	u.ReminderTimes = h.ReminderTimes
	if err := h.Validate(); err != nil {
		return nil, malformed("%v", err)
	}
	return u, nil
}

func decodeCompletion(f inboundFrame) (Message, error) {
	id, name := deref(f.HabitID), deref(f.HabitName)
	if id == "" && name == "" {
		return nil, malformed("habitCompletion needs habitId or habitName")
	}
	if f.Date == nil || f.CompletionCount == nil {
		return nil, malformed("habitCompletion needs date and completionCount")
	}
	date, err := time.Parse(time.RFC3339, *f.Date)
	if err != nil {
		return nil, malformed("invalid date %q", *f.Date)
	}

	c := HabitCompletionUpdate{
		HabitID:         id,
		HabitName:       name,
		Date:            date,
		CompletionCount: *f.CompletionCount,
	}
	if f.IsCompleted != nil {
		c.IsCompleted = *f.IsCompleted
	}
	return c, nil
}
