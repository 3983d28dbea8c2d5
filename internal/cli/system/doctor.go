package system

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/julianstephens/geko/internal/backup"
	"github.com/julianstephens/geko/internal/cli"
	"github.com/julianstephens/geko/internal/keyring"
	"github.com/julianstephens/geko/internal/migration"
	"github.com/julianstephens/geko/internal/models"
	"github.com/julianstephens/geko/internal/storage/sqlite"
	"github.com/julianstephens/geko/migrations"
)

type DoctorCmd struct{}

type check struct {
	name    string
	run     func(*cli.Context) error
	needsDB bool
	warning bool
}

var checks = []check{
	{name: "Database reachable", run: checkDBReachable},
	{name: "Schema version", run: checkSchemaVersion, needsDB: true},
	{name: "Habit integrity", run: checkHabitsIntegrity, needsDB: true},
	{name: "Clock/timezone", run: checkClockTimezone},
	{name: "Backups present", run: checkBackupsPresent, warning: true},
	{name: "Keyring available", run: checkKeyring, warning: true},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	dbReachable := true
	for i, c := range checks {
		if c.needsDB && !dbReachable {
			fmt.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case c.warning:
			fmt.Printf("⚠ %s: WARNING\n", c.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", c.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
			if i == 0 {
				dbReachable = false
			}
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	fmt.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}

	if sqliteStore, ok := ctx.Store.(*sqlite.Store); ok {
		db := sqliteStore.GetDB()
		if db == nil {
			return fmt.Errorf("database connection is nil")
		}
		var result int
		if err := db.QueryRow("SELECT 1").Scan(&result); err != nil {
			return fmt.Errorf("failed to query database: %w", err)
		}
	}
	return nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	sqliteStore, ok := ctx.Store.(*sqlite.Store)
	if !ok {
		return nil
	}

	sub, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return err
	}
	st, err := migration.NewRunner(sqliteStore.GetDB(), sub, migration.SQLite).Status()
	if err != nil {
		return err
	}
	if !st.UpToDate() {
		return fmt.Errorf("schema version %d is behind %d (%d pending)", st.Current, st.Latest, len(st.Pending))
	}
	return nil
}

func checkHabitsIntegrity(ctx *cli.Context) error {
	habits, err := ctx.Store.GetAllHabitsIncludingDeleted()
	if err != nil {
		return fmt.Errorf("failed to load habits: %w", err)
	}

	var errs []error
	seen := make(map[string]bool, len(habits))
	for _, h := range habits {
		if seen[h.ID] {
			errs = append(errs, fmt.Errorf("duplicate habit id %s", h.ID))
		}
		seen[h.ID] = true
		if err := h.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("habit %q: %w", h.Name, err))
		}
		for day, n := range h.Completions {
			if !models.ValidDayKey(day) || n < 0 {
				errs = append(errs, fmt.Errorf("habit %q: bad completion %s=%d", h.Name, day, n))
			}
		}
	}
	return errors.Join(errs...)
}

func checkClockTimezone(ctx *cli.Context) error {
	now := time.Now()
	if now.Year() < 2020 {
		return fmt.Errorf("system clock looks wrong: %s", now.Format(time.RFC3339))
	}
	if ctx.Location == nil {
		return fmt.Errorf("no timezone resolved")
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	mgr := backup.NewManager(ctx.Store.GetConfigPath())
	backups, err := mgr.List()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found in %s (run 'geko backup')", mgr.Dir())
	}
	return nil
}

func checkKeyring(*cli.Context) error {
	if !keyring.IsAvailable() {
		return fmt.Errorf("system keyring is not available; cloud sync needs GEKO_CLOUD_DSN or --cloud")
	}
	return nil
}
