package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/geko/internal/cli"
	"github.com/julianstephens/geko/internal/cli/grids"
	"github.com/julianstephens/geko/internal/cli/habits"
	"github.com/julianstephens/geko/internal/cli/system"
	"github.com/julianstephens/geko/internal/config"
	"github.com/julianstephens/geko/internal/constants"
	gekoerrors "github.com/julianstephens/geko/internal/errors"
	"github.com/julianstephens/geko/internal/logger"
	"github.com/julianstephens/geko/internal/storage/sqlite"
	"github.com/julianstephens/geko/internal/utils"
)

var CLI struct {
	Version      kong.VersionFlag
	Config       string `help:"Config file path." type:"string" default:"~/.config/geko/config.toml"`
	Store        string `help:"Habit database path (overrides store_path in config)."`
	Debug        bool   `help:"Enable debug logging."`
	Timezone     string `help:"IANA time zone for day boundaries (overrides config)."`
	FirstWeekday string `help:"First day of the week for grids (overrides config)."`
	CloudDSN     string `help:"Cloud PostgreSQL connection string. Credentials must NOT be embedded; use GEKO_CLOUD_DSN or the OS keyring instead." name:"cloud"`

	Init     system.InitCmd     `cmd:"" help:"Initialize geko storage."`
	Habit    habits.HabitCmd    `cmd:"" help:"Manage habits and completions." default:"1"`
	Grid     grids.GridCmd      `cmd:"" help:"Show completion grids."`
	Sync     system.SyncCmd     `cmd:"" help:"Inspect and run device sync."`
	Cloud    system.CloudCmd    `cmd:"" help:"Manage the cloud database connection."`
	Feedback system.FeedbackCmd `cmd:"" help:"Manage the feedback prompt."`
	Backup   system.BackupCmd   `cmd:"" help:"Manage habit store snapshots."`
	Doctor   system.DoctorCmd   `cmd:"" help:"Run health checks on the habit store."`
	Migrate  system.MigrateCmd  `cmd:"" help:"Apply pending schema migrations."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit tracker with calendar grids and device sync"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	component := ""
	if strings.HasPrefix(ctx.Command(), "sync serve") {
		component = "daemon"
	}
	appCtx, err := setup(component)
	gekoerrors.Fatal(err)

	// Init handles its own store lifecycle
	if ctx.Selected() != nil && ctx.Selected().Name != "init" {
		gekoerrors.Fatal(appCtx.Store.Load())
		appCtx.Wire(nil, nil)
	}

	err = ctx.Run(appCtx)
	appCtx.Close()
	if cerr := appCtx.Store.Close(); cerr != nil {
		logger.Warn("Failed to close store", "error", cerr)
	}
	gekoerrors.Fatal(err)
}

func setup(component string) (*cli.Context, error) {
	configPath, err := utils.ExpandHome(CLI.Config)
	if err != nil {
		return nil, err
	}
	configDir := filepath.Dir(configPath)

	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		return nil, err
	}
	if CLI.Store != "" {
		cfg.StorePath = CLI.Store
	}
	if CLI.Timezone != "" {
		cfg.Timezone = CLI.Timezone
	}
	if CLI.FirstWeekday != "" {
		cfg.FirstWeekday = CLI.FirstWeekday
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Debug:     CLI.Debug || cfg.Debug,
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		MaxSizeMB: cfg.Log.MaxSizeMB,
		ConfigDir: configDir,
		Component: component,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	storePath, err := cfg.ResolveStorePath(configDir)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	first, err := cfg.Weekday()
	if err != nil {
		return nil, err
	}

	return &cli.Context{
		Store:        sqlite.NewStore(storePath),
		Config:       cfg,
		ConfigDir:    configDir,
		CloudDSN:     CLI.CloudDSN,
		Location:     loc,
		FirstWeekday: first,
		Now:          time.Now,
	}, nil
}
