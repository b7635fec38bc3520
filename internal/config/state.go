package config

import (
	"os"
	"path/filepath"
)

// defaultStateDir returns the per-user state directory for persisted job
// records, following XDG conventions with a home-relative fallback.
func defaultStateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "docwatch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docwatch-state"
	}
	return filepath.Join(home, ".local", "state", "docwatch")
}
