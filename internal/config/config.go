// Package config loads pmrun's run configuration and key-binding file from
// TOML, following the teacher's pkg/config loader: search a small set of
// XDG paths, decode with BurntSushi/toml over in-place defaults, apply
// environment overrides, and never hard-fail when no file is present
// (spec.md §[ADD] A2).
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"gitlab.com/tinyland/lab/pmrun/internal/inputrouter"
)

// PluginOverride holds per-plugin knobs a run-config file may set,
// overriding the plugin registry's compiled-in defaults (spec.md §[ADD]
// A2 "per-plugin enable/timeout overrides").
type PluginOverride struct {
	Enabled *bool    `toml:"enabled"`
	Timeout Duration `toml:"timeout"`
}

// RunConfig is the top-level shape of config.toml (spec.md §[ADD] A2).
type RunConfig struct {
	Concurrency        int                       `toml:"concurrency"`
	ContinueOnError    bool                      `toml:"continue_on_error"`
	DryRun             bool                      `toml:"dry_run"`
	PauseBetweenPhases bool                      `toml:"pause_between_phases"`
	MaxRetries         int                       `toml:"max_retries"`
	DefaultStallAfter  Duration                  `toml:"default_stall_after"`
	LogLevel           string                    `toml:"log_level"`
	Theme              string                    `toml:"theme"`
	ThemeFile          string                    `toml:"theme_file"`
	Plugins            map[string]PluginOverride `toml:"plugins"`
}

// DefaultRunConfig returns pmrun's built-in defaults, used whenever no
// config file is found (spec.md §[ADD] A2 "never hard-fail if absent").
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		Concurrency:        4,
		ContinueOnError:    false,
		DryRun:             false,
		PauseBetweenPhases: false,
		MaxRetries:         3,
		DefaultStallAfter:  Duration{30 * time.Second},
		LogLevel:           "info",
		Theme:              "default",
		ThemeFile:          "",
		Plugins:            map[string]PluginOverride{},
	}
}

// LoadRunConfig reads config.toml from the standard search path:
//  1. $XDG_CONFIG_HOME/pmrun/config.toml
//  2. ~/.config/pmrun/config.toml
//
// If no file exists, it returns DefaultRunConfig().
func LoadRunConfig() (*RunConfig, error) {
	for _, p := range searchPaths("config.toml") {
		if _, err := os.Stat(p); err == nil {
			return LoadRunConfigFile(p)
		}
	}
	return DefaultRunConfig(), nil
}

// LoadRunConfigFile reads a run config from a specific path.
func LoadRunConfigFile(path string) (*RunConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRunConfig(), nil
		}
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadRunConfigFromReader(f)
}

// LoadRunConfigFromReader decodes a run config from r over the defaults.
func LoadRunConfigFromReader(r io.Reader) (*RunConfig, error) {
	cfg := DefaultRunConfig()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets a small set of environment variables override the
// decoded config, following the teacher's applyEnvOverrides pattern.
func applyEnvOverrides(cfg *RunConfig) {
	if v := os.Getenv("PMRUN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PMRUN_CONCURRENCY"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			cfg.Concurrency = n
		}
	}
}

// keyBindingsFile mirrors the §6 tab_navigation/terminal/app TOML tables
// onto inputrouter.Bindings; string values are decoded then normalised so
// the file may use any casing/alias spelling Normalize accepts.
type keyBindingsFile struct {
	TabNavigation map[string]string `toml:"tab_navigation"`
	Terminal      map[string]string `toml:"terminal"`
	App           map[string]string `toml:"app"`
}

// LoadBindings reads the key-binding TOML file from the standard search
// path (spec.md §6), falling back to inputrouter.DefaultBindings() if
// absent.
func LoadBindings() (inputrouter.Bindings, error) {
	for _, p := range searchPaths("keybindings.toml") {
		if _, err := os.Stat(p); err == nil {
			return LoadBindingsFile(p)
		}
	}
	return inputrouter.DefaultBindings(), nil
}

// LoadBindingsFile reads a key-binding TOML file from a specific path.
func LoadBindingsFile(path string) (inputrouter.Bindings, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return inputrouter.DefaultBindings(), nil
		}
		return inputrouter.Bindings{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadBindingsFromReader(f)
}

// LoadBindingsFromReader decodes a key-binding file from r.
func LoadBindingsFromReader(r io.Reader) (inputrouter.Bindings, error) {
	var raw keyBindingsFile
	if _, err := toml.NewDecoder(r).Decode(&raw); err != nil {
		return inputrouter.Bindings{}, fmt.Errorf("config: decode bindings: %w", err)
	}

	b := inputrouter.Bindings{
		TabNavigation: make(map[string]inputrouter.Action, len(raw.TabNavigation)),
		Terminal:      make(map[string]inputrouter.Action, len(raw.Terminal)),
		App:           make(map[string]inputrouter.Action, len(raw.App)),
	}
	fold := func(src map[string]string, dst map[string]inputrouter.Action) {
		for action, keyStr := range src {
			dst[inputrouter.Normalize(keyStr)] = inputrouter.Action(action)
		}
	}
	fold(raw.TabNavigation, b.TabNavigation)
	fold(raw.Terminal, b.Terminal)
	fold(raw.App, b.App)
	return b, nil
}

// searchPaths returns the ordered XDG_CONFIG_HOME/~/.config candidates for
// a pmrun config file named filename, mirroring the teacher's
// configSearchPaths.
func searchPaths(filename string) []string {
	home, _ := os.UserHomeDir()
	var paths []string

	xdg := xdgConfigHome(home)
	paths = append(paths, filepath.Join(xdg, "pmrun", filename))

	defaultXDG := filepath.Join(home, ".config")
	if xdg != defaultXDG {
		paths = append(paths, filepath.Join(defaultXDG, "pmrun", filename))
	}
	return paths
}

func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}
