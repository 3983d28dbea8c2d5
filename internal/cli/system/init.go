package system

import (
	"fmt"
	"os"

	"github.com/julianstephens/geko/internal/backup"
	"github.com/julianstephens/geko/internal/cli"
)

type InitCmd struct {
	Force bool `help:"Force reset by deleting existing database before initialization."`
	Seed  bool `help:"Add the sample habits after initializing."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		dbPath := ctx.Store.GetConfigPath()
		if _, err := os.Stat(dbPath); err == nil {
			snapshot, err := backup.NewManager(dbPath).Create()
			if err != nil {
				return fmt.Errorf("failed to back up existing database: %w", err)
			}
			fmt.Printf("Saved a backup of the existing database to: %s\n", snapshot)

			// Close first so the file is not held open while it is removed
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to delete existing database: %w", err)
				}
			}
			fmt.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized geko storage at: %s\n", ctx.Store.GetConfigPath())

	if c.Seed {
		if ctx.Tracker == nil {
			ctx.Wire(nil, nil)
		}
		added, err := ctx.Tracker.SeedSampleHabits(4)
		if err != nil {
			return err
		}
		fmt.Printf("Added %d sample habits\n", len(added))
	}
	return nil
}
