// Package config implements TOML configuration loading, CLI-flag
// overrides, and validation for smugmug-sync, per spec.md §6.2. The
// override chain is four layers, highest priority last: built-in
// defaults, then smugmug-sync.conf, then smugmug-sync.my.conf, then CLI
// flags — the same shape as the teacher's internal/config, generalized
// from a multi-drive profile model to this CLI's single-run flag set.
package config

// SyncPreset is the closed set of named presets spec.md §6.2 requires for
// --sync.
type SyncPreset string

const (
	PresetLocalBackup       SyncPreset = "local_backup"
	PresetLocalBackupClean  SyncPreset = "local_backup_clean"
	PresetOnlineBackup      SyncPreset = "online_backup"
	PresetOnlineBackupClean SyncPreset = "online_backup_clean"
	PresetOptimize          SyncPreset = "optimize"
)

// ValidPresets is used by Validate and by the CLI's flag help text.
var ValidPresets = []SyncPreset{
	PresetLocalBackup,
	PresetLocalBackupClean,
	PresetOnlineBackup,
	PresetOnlineBackupClean,
	PresetOptimize,
}

// Config is the fully-resolved configuration for one run, assembled by
// Load from the four-layer override chain.
type Config struct {
	SyncPreset SyncPreset `toml:"sync_preset"`
	BaseDir    string     `toml:"base_dir"`
	Account    string     `toml:"account"`

	ConsumerKey       string `toml:"consumer_key"`
	ConsumerSecret    string `toml:"consumer_secret"`
	AccessToken       string `toml:"access_token"`
	AccessTokenSecret string `toml:"access_token_secret"`

	// MacPhotosLibraryLocation is accepted and stored per spec.md §6.2's
	// CLI surface; iPhone/Mac Photos ingestion itself is out of scope
	// (spec.md §1) so this field is never read by the core.
	MacPhotosLibraryLocation string `toml:"mac_photos_library_location"`

	// TestFolderURI names the remote folder URI that --test_upload routes
	// into, and that internal/remotescan excludes from ordinary scans
	// (spec.md §4.2's "test folder"). Config-file only: no CLI flag names
	// a specific URI, only the --test_upload boolean.
	TestFolderURI string `toml:"test_folder_uri"`

	ForceRefresh bool `toml:"force_refresh"`
	DryRun       bool `toml:"dry_run"`
	TestUpload   bool `toml:"test_upload"`

	LogLevel string `toml:"log_level"`
}

// Direction reports the reconciliation action a preset implies, and
// whether it is actionable at all (spec.md §1's optimizers are explicitly
// out of scope for deep design).
type Direction struct {
	Upload       bool
	DeleteOnDisk bool
	DeleteOnline bool
	Actionable   bool
}

// DirectionForPreset maps a validated SyncPreset onto the reconciliation
// engine's policy knobs (spec.md §4.4's sync_action column).
func DirectionForPreset(p SyncPreset) Direction {
	switch p {
	case PresetLocalBackup:
		return Direction{Upload: false, Actionable: true}
	case PresetLocalBackupClean:
		return Direction{Upload: false, DeleteOnDisk: true, Actionable: true}
	case PresetOnlineBackup:
		return Direction{Upload: true, Actionable: true}
	case PresetOnlineBackupClean:
		return Direction{Upload: true, DeleteOnline: true, Actionable: true}
	default:
		return Direction{}
	}
}
