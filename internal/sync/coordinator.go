package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/julianstephens/geko/internal/constants"
	"github.com/julianstephens/geko/internal/logger"
	"github.com/julianstephens/geko/internal/models"
)

// CloudChannel reports whether the cloud account database is usable. Local
// writes reach it in the background; there is no explicit send.
type CloudChannel interface {
	AccountStatus(ctx context.Context) (bool, error)
}

// PeerChannel is the direct link to the paired device. Send is best effort.
type PeerChannel interface {
	IsReachable() bool
	Send(ctx context.Context, m Message) error
}

// MutationKind classifies a local change for fan-out.
type MutationKind int

const (
	MutationUpsert MutationKind = iota
	MutationCompletion
	MutationDeletion
)

func (k MutationKind) String() string {
	switch k {
	case MutationUpsert:
		return "upsert"
	case MutationCompletion:
		return "completion"
	case MutationDeletion:
		return "deletion"
	default:
		return "unknown"
	}
}

// Mutation is a committed local change. Day is set for completions.
type Mutation struct {
	Kind  MutationKind
	Habit models.Habit
	Day   string
}

// Options tune a Coordinator. Zero values pick defaults.
type Options struct {
	Location    *time.Location
	SendTimeout time.Duration
	// OutboxSize bounds the frames waiting for the peer. Frames beyond it
	// are dropped.
	OutboxSize int
}

// Coordinator tracks the sync status and fans local mutations out to the
// peer. Either channel may be nil, in which case it is never available.
type Coordinator struct {
	cloud       CloudChannel
	peer        PeerChannel
	loc         *time.Location
	sendTimeout time.Duration

	mu             gosync.RWMutex
	status         Status
	cloudAvailable bool
	peerReachable  bool
	closed         bool

	subsMu gosync.Mutex
	subs   map[int]chan Mutation
	nextID int

	// outbox is drained by a single sender so frames reach the peer in
	// the order they were notified.
	outbox chan Message
	done   chan struct{}
}

func NewCoordinator(cloud CloudChannel, peer PeerChannel, opts Options) *Coordinator {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = constants.DefaultSendTimeout
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = constants.PeerOutboxSize
	}
	c := &Coordinator{
		cloud:       cloud,
		peer:        peer,
		loc:         opts.Location,
		sendTimeout: opts.SendTimeout,
		status:      Offline,
		subs:        make(map[int]chan Mutation),
		done:        make(chan struct{}),
	}
	if peer == nil {
		close(c.done)
		return c
	}
	c.outbox = make(chan Message, opts.OutboxSize)
	go c.sendLoop()
	return c
}

// Status returns the current status. Sends may act on a status that is
// about to change.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Refresh polls both channels and recomputes the status. A cloud error is
// logged and counts as unavailable.
func (c *Coordinator) Refresh(ctx context.Context) Status {
	cloudOK := false
	if c.cloud != nil {
		ok, err := c.cloud.AccountStatus(ctx)
		if err != nil {
			logger.Warn("Cloud account status check failed", "error", err)
		}
		cloudOK = ok && err == nil
	}
	peerOK := c.peer != nil && c.peer.IsReachable()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cloudAvailable = cloudOK
	c.peerReachable = peerOK
	return c.recomputeLocked()
}

// SetPeerReachable records a reachability change pushed by the peer transport.
func (c *Coordinator) SetPeerReachable(reachable bool) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerReachable = reachable
	return c.recomputeLocked()
}

// SetCloudAvailable records a cloud availability change.
func (c *Coordinator) SetCloudAvailable(available bool) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cloudAvailable = available
	return c.recomputeLocked()
}

func (c *Coordinator) recomputeLocked() Status {
	next := ComputeStatus(c.cloudAvailable, c.peerReachable)
	if next != c.status {
		logger.Info("Sync status changed", "from", c.status, "to", next)
		c.status = next
	}
	return next
}

// NotifyMutation publishes m to local subscribers and, when the peer is
// live, sends the matching frame without waiting for it.
func (c *Coordinator) NotifyMutation(m Mutation) {
	c.Publish(m)

	status := c.Status()
	if !status.PeerLive() {
		logger.Debug("Mutation not sent to peer", "kind", m.Kind, "habit", m.Habit.Name, "status", status)
		return
	}

	var msg Message
	switch m.Kind {
	case MutationUpsert:
		msg = UpsertFromHabit(m.Habit)
	case MutationCompletion:
		completion, err := CompletionFromHabit(m.Habit, m.Day, c.loc)
		if err != nil {
			logger.Warn("Dropping completion mutation", "habit", m.Habit.Name, "error", err)
			return
		}
		msg = completion
	case MutationDeletion:
		msg = HabitDeletion{HabitID: m.Habit.ID, HabitName: m.Habit.Name}
	default:
		logger.Warn("Unknown mutation kind", "kind", m.Kind)
		return
	}
	c.send(msg)
}

// RequestFullSync asks the peer to resend its habits. It reports whether a
// request was sent; outside Hybrid and PeerOnly it does nothing.
func (c *Coordinator) RequestFullSync() bool {
	if !c.Status().PeerLive() {
		return false
	}
	c.send(FullSyncRequest{})
	return true
}

// RetryCloud re-checks the cloud and requests a full sync when it is live.
func (c *Coordinator) RetryCloud(ctx context.Context) Status {
	status := c.Refresh(ctx)
	if status.CloudLive() {
		c.RequestFullSync()
	}
	return status
}

// RetryPeer requests a full sync if the peer answers.
func (c *Coordinator) RetryPeer() bool {
	if c.peer == nil || !c.peer.IsReachable() {
		return false
	}
	c.SetPeerReachable(true)
	c.send(FullSyncRequest{})
	return true
}

// send queues msg for the peer without waiting. It is dropped when the
// coordinator is closed or the outbox is full.
func (c *Coordinator) send(msg Message) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.outbox == nil {
		return
	}
	select {
	case c.outbox <- msg:
	default:
		logger.Warn("Peer outbox full, dropping message", "action", msg.Action())
	}
}

func (c *Coordinator) sendLoop() {
	defer close(c.done)
	for msg := range c.outbox {
		if !c.peer.IsReachable() {
			logger.Debug("Peer unreachable, dropping message", "action", msg.Action())
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.sendTimeout)
		if err := c.peer.Send(ctx, msg); err != nil {
			logger.Warn("Peer send failed", "action", msg.Action(), "error", err)
		}
		cancel()
	}
}

// Subscribe returns a channel of local mutations. Slow subscribers miss
// mutations rather than block writers. Call the returned func to unsubscribe.
func (c *Coordinator) Subscribe(buffer int) (<-chan Mutation, func()) {
	ch := make(chan Mutation, buffer)

	c.subsMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subsMu.Unlock()

	var once gosync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			defer c.subsMu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}
}

// Publish delivers m to local subscribers only.
func (c *Coordinator) Publish(m Mutation) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- m:
		default:
			logger.Debug("Subscriber full, dropping mutation", "kind", m.Kind, "habit", m.Habit.Name)
		}
	}
}

// Close waits for queued sends and closes subscriber channels. Later sends
// are dropped. Close is idempotent.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		if c.outbox != nil {
			close(c.outbox)
		}
	}
	c.mu.Unlock()

	<-c.done

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}
