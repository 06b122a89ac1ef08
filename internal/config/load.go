package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// CLIOverrides carries the subset of flags the user actually set on the
// command line (spec.md §6.2). Pointer/zero-value fields are only applied
// when non-nil/non-empty, so an unset flag never clobbers a file-layer
// value — "CLI overrides file" (spec.md §6.2), not "CLI replaces file."
type CLIOverrides struct {
	SyncPreset               string
	BaseDir                  string
	Account                  string
	ConsumerKey              string
	ConsumerSecret           string
	AccessToken              string
	AccessTokenSecret        string
	MacPhotosLibraryLocation string
	LogLevel                 string

	ForceRefresh *bool
	DryRun       *bool
	TestUpload   *bool
}

// Load resolves the effective Config from the four-layer override chain:
// built-in defaults, smugmug-sync.conf, smugmug-sync.my.conf, CLI flags.
// confPath/myConfPath override the default alongside-the-executable
// locations when non-empty (tests pass explicit paths).
func Load(confPath, myConfPath string, cli CLIOverrides) (*Config, error) {
	cfg := DefaultConfig()

	if confPath == "" {
		confPath = DefaultConfPath()
	}

	if myConfPath == "" {
		myConfPath = DefaultMyConfPath()
	}

	if err := decodeIfExists(confPath, cfg); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", confPath, err)
	}

	if err := decodeIfExists(myConfPath, cfg); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", myConfPath, err)
	}

	applyCLIOverrides(cfg, cli)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// decodeIfExists TOML-decodes path into cfg, leaving cfg untouched if the
// file does not exist (spec.md §6.2: config files are optional).
func decodeIfExists(path string, cfg *Config) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	_, err := toml.DecodeFile(path, cfg)

	return err
}

// applyCLIOverrides layers non-empty/non-nil CLI values over cfg, the
// highest-priority layer per spec.md §6.2.
func applyCLIOverrides(cfg *Config, cli CLIOverrides) {
	if cli.SyncPreset != "" {
		cfg.SyncPreset = SyncPreset(cli.SyncPreset)
	}

	if cli.BaseDir != "" {
		cfg.BaseDir = cli.BaseDir
	}

	if cli.Account != "" {
		cfg.Account = cli.Account
	}

	if cli.ConsumerKey != "" {
		cfg.ConsumerKey = cli.ConsumerKey
	}

	if cli.ConsumerSecret != "" {
		cfg.ConsumerSecret = cli.ConsumerSecret
	}

	if cli.AccessToken != "" {
		cfg.AccessToken = cli.AccessToken
	}

	if cli.AccessTokenSecret != "" {
		cfg.AccessTokenSecret = cli.AccessTokenSecret
	}

	if cli.MacPhotosLibraryLocation != "" {
		cfg.MacPhotosLibraryLocation = cli.MacPhotosLibraryLocation
	}

	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}

	if cli.ForceRefresh != nil {
		cfg.ForceRefresh = *cli.ForceRefresh
	}

	if cli.DryRun != nil {
		cfg.DryRun = *cli.DryRun
	}

	if cli.TestUpload != nil {
		cfg.TestUpload = *cli.TestUpload
	}
}
