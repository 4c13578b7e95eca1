// Package paths provides XDG-compliant path resolution for mirror.
//
// Resolution order:
// 1. MIRROR_HOME (portable root) → $MIRROR_HOME/{config,state,cache}
// 2. XDG env vars → $XDG_*_HOME/mirror
// 3. Platform defaults → ~/.config/mirror, ~/.local/state/mirror, etc.
package paths

import (
	"os"
	"path/filepath"
)

const appName = "mirror"

// homeSubdir resolves one XDG base directory.
func homeSubdir(portable, xdgVar string, fallback ...string) string {
	if home := os.Getenv("MIRROR_HOME"); home != "" {
		return filepath.Join(home, portable)
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return xdg
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append([]string{homeDir}, fallback...)...)
	}
	return ""
}

// ConfigDir returns the mirror configuration directory.
// Used for the global mirror.yml / mirror.toml layer.
func ConfigDir() string {
	base := homeSubdir("config", "XDG_CONFIG_HOME", ".config")
	if base == "" {
		return ""
	}
	if os.Getenv("MIRROR_HOME") != "" {
		return base
	}
	return filepath.Join(base, appName)
}

// StateDir returns the mirror state directory.
// Used for persisted tabs and logs.
func StateDir() string {
	base := homeSubdir("state", "XDG_STATE_HOME", ".local", "state")
	if base == "" {
		return ""
	}
	if os.Getenv("MIRROR_HOME") != "" {
		return base
	}
	return filepath.Join(base, appName)
}

// CacheDir returns the mirror cache directory.
func CacheDir() string {
	base := homeSubdir("cache", "XDG_CACHE_HOME", ".cache")
	if base == "" {
		return ""
	}
	if os.Getenv("MIRROR_HOME") != "" {
		return base
	}
	return filepath.Join(base, appName)
}

// LogDir returns the directory for rotated log files.
func LogDir() string {
	return filepath.Join(StateDir(), "logs")
}

// TabStatePath returns the default location of persisted tab state for the
// given backend ("yaml" or "sqlite").
func TabStatePath(backend string) string {
	if backend == "sqlite" {
		return filepath.Join(StateDir(), "tabs.db")
	}
	return filepath.Join(StateDir(), "tabs.yml")
}

// EnsureDirs creates all mirror directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		StateDir(),
		CacheDir(),
		LogDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
