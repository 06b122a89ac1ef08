package config

import (
	"fmt"
	"os"
)

// Validate checks a resolved Config for the configuration errors spec.md
// §7 names: missing required field, nonexistent path, invalid preset.
// Callers surface a non-nil error as exit code 1 (spec.md §6.2).
func Validate(cfg *Config) error {
	if cfg.SyncPreset == "" {
		return fmt.Errorf("config: --sync is required (one of %s)", presetNames())
	}

	if !isValidPreset(cfg.SyncPreset) {
		return fmt.Errorf("config: invalid --sync preset %q (must be one of %s)", cfg.SyncPreset, presetNames())
	}

	if cfg.BaseDir == "" {
		return fmt.Errorf("config: --base_dir is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		return fmt.Errorf("config: --base_dir %q: %w", cfg.BaseDir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("config: --base_dir %q is not a directory", cfg.BaseDir)
	}

	if cfg.Account == "" {
		return fmt.Errorf("config: --account is required")
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"consumer_key", cfg.ConsumerKey},
		{"consumer_secret", cfg.ConsumerSecret},
		{"access_token", cfg.AccessToken},
		{"access_token_secret", cfg.AccessTokenSecret},
	} {
		if field.value == "" {
			return fmt.Errorf("config: --%s is required", field.name)
		}
	}

	return nil
}

func isValidPreset(p SyncPreset) bool {
	for _, valid := range ValidPresets {
		if p == valid {
			return true
		}
	}

	return false
}

func presetNames() string {
	out := ""
	for i, p := range ValidPresets {
		if i > 0 {
			out += ", "
		}

		out += string(p)
	}

	return out
}
