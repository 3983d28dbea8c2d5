// Package config loads the per-user config.toml, creating it with defaults on
// first use.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/julianstephens/geko/internal/constants"
	"github.com/julianstephens/geko/internal/logger"
	"github.com/julianstephens/geko/internal/utils"
)

type PeerConfig struct {
	ListenAddr  string `toml:"listen_addr"`
	LockfileDir string `toml:"lockfile_dir"`
	SendTimeout string `toml:"send_timeout"`
}

type CloudConfig struct {
	Enabled         bool   `toml:"enabled"`
	RefreshInterval string `toml:"refresh_interval"`
}

type WatchConfig struct {
	Debounce string `toml:"debounce"`
}

type LogConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	MaxSizeMB int    `toml:"max_size_mb"`
}

type Config struct {
	StorePath    string      `toml:"store_path"`
	Timezone     string      `toml:"timezone"`
	FirstWeekday string      `toml:"first_weekday"`
	HistoryWeeks int         `toml:"history_weeks"`
	Debug        bool        `toml:"debug"`
	Peer         PeerConfig  `toml:"peer"`
	Cloud        CloudConfig `toml:"cloud"`
	Watch        WatchConfig `toml:"watch"`
	Log          LogConfig   `toml:"log"`
}

// Default returns the configuration written on first run. Relative paths are
// resolved against the config directory.
func Default() Config {
	return Config{
		StorePath:    constants.DefaultStoreName,
		Timezone:     "Local",
		FirstWeekday: "sunday",
		HistoryWeeks: constants.DefaultHistoryWeeks,
		Peer: PeerConfig{
			ListenAddr:  constants.DefaultPeerListen,
			SendTimeout: constants.DefaultSendTimeout.String(),
		},
		Cloud: CloudConfig{
			Enabled:         true,
			RefreshInterval: constants.DefaultCloudRefresh.String(),
		},
		Watch: WatchConfig{
			Debounce: constants.DefaultWatchDebounce.String(),
		},
		Log: LogConfig{
			Level:     constants.DefaultLogLevel,
			Format:    constants.DefaultLogFormat,
			MaxSizeMB: constants.DefaultLogMaxSizeMB,
		},
	}
}

// LoadOrCreate reads path, writing the defaults there if it does not exist.
// Missing keys keep their default values.
func LoadOrCreate(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.StorePath == "" {
		cfg.StorePath = constants.DefaultStoreName
	}
	if cfg.HistoryWeeks < 1 {
		cfg.HistoryWeeks = constants.DefaultHistoryWeeks
	}
	return cfg, cfg.Validate()
}

func write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the fields that are parsed lazily.
func (c Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Weekday(); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	if _, err := logger.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("invalid log.format: %w", err)
	}
	for name, value := range map[string]string{
		"peer.send_timeout":      c.Peer.SendTimeout,
		"cloud.refresh_interval": c.Cloud.RefreshInterval,
		"watch.debounce":         c.Watch.Debounce,
	} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			return fmt.Errorf("invalid %s %q: must be a positive duration", name, value)
		}
	}
	return nil
}

// ResolveStorePath returns the absolute store path, relative paths being
// taken from configDir.
func (c Config) ResolveStorePath(configDir string) (string, error) {
	path, err := utils.ExpandHome(c.StorePath)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(configDir, path)
	}
	return path, nil
}

// ResolveLockfileDir returns the directory holding the peer lockfile,
// defaulting to configDir.
func (c Config) ResolveLockfileDir(configDir string) (string, error) {
	if c.Peer.LockfileDir == "" {
		return configDir, nil
	}
	return utils.ExpandHome(c.Peer.LockfileDir)
}

func (c Config) Location() (*time.Location, error) {
	return utils.LoadLocation(c.Timezone)
}

func (c Config) Weekday() (time.Weekday, error) {
	return utils.ParseWeekday(c.FirstWeekday)
}

func durationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (c Config) SendTimeout() time.Duration {
	return durationOr(c.Peer.SendTimeout, constants.DefaultSendTimeout)
}

func (c Config) RefreshInterval() time.Duration {
	return durationOr(c.Cloud.RefreshInterval, constants.DefaultCloudRefresh)
}

func (c Config) Debounce() time.Duration {
	return durationOr(c.Watch.Debounce, constants.DefaultWatchDebounce)
}
