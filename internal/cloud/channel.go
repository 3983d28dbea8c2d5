package cloud

import (
	"context"
	"errors"
	"sync"

	"github.com/julianstephens/geko/internal/logger"
	"github.com/julianstephens/geko/internal/storage"
	"github.com/julianstephens/geko/internal/storage/postgres"
	gekosync "github.com/julianstephens/geko/internal/sync"
)

// RemoteStore is the account database as seen by the channel.
type RemoteStore interface {
	storage.HabitStore
	Init() error
	Ping(ctx context.Context) error
	Close() error
}

var openStore = func(dsn string) RemoteStore {
	return postgres.New(dsn)
}

// Channel reports cloud availability. The account is available when a
// connection string is configured and the database answers a ping.
type Channel struct {
	dsn string

	mu    sync.Mutex
	store RemoteStore
}

var _ gekosync.CloudChannel = (*Channel)(nil)

// NewChannel returns a channel for dsn. An empty dsn is never available.
func NewChannel(dsn string) *Channel {
	return &Channel{dsn: dsn}
}

// AccountStatus connects on first use and pings on every call. A failed ping
// drops the connection so the next call starts fresh.
func (c *Channel) AccountStatus(ctx context.Context) (bool, error) {
	if c.dsn == "" {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store == nil {
		store := openStore(c.dsn)
		if err := store.Init(); err != nil {
			store.Close()
			return false, err
		}
		logger.Info("Connected to cloud database")
		c.store = store
	}

	if err := c.store.Ping(ctx); err != nil {
		c.store.Close()
		c.store = nil
		return false, err
	}
	return true, nil
}

// Remote returns the connected account database, or an error when
// AccountStatus has not succeeded yet.
func (c *Channel) Remote() (storage.HabitStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil, errors.New("cloud database not connected")
	}
	return c.store, nil
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
