package system

import (
	"fmt"
	"io/fs"

	"github.com/julianstephens/geko/internal/cli"
	"github.com/julianstephens/geko/internal/migration"
	"github.com/julianstephens/geko/internal/storage/sqlite"
	"github.com/julianstephens/geko/migrations"
)

type MigrateCmd struct {
	DryRun bool `help:"List pending migrations without applying them." name:"dry-run"`
}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	sqliteStore, ok := ctx.Store.(*sqlite.Store)
	if !ok {
		return fmt.Errorf("migrate command only supports SQLite storage")
	}
	if err := sqliteStore.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	db := sqliteStore.GetDB()
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sub, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return err
	}
	runner := migration.NewRunner(db, sub, migration.SQLite)

	st, err := runner.Status()
	if err != nil {
		return err
	}
	if st.UpToDate() {
		fmt.Printf("No migrations to apply. Database is up to date (version %d).\n", st.Current)
		return nil
	}
	for _, m := range st.Pending {
		fmt.Printf("  %03d_%s\n", m.Version, m.Name)
	}
	if c.DryRun {
		fmt.Printf("%d migration(s) pending.\n", len(st.Pending))
		return nil
	}

	count, err := runner.ApplyMigrations()
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Printf("\nSuccessfully applied %d migration(s).\n", count)
	return nil
}
