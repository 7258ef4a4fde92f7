// Package config loads EMS's four knobs (state-access delay, scan
// directory, max concurrent processes, max threads per process) through a
// precedence chain: defaults, then a global config, then a project config,
// then explicit CLI overrides, each one winning over the last.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds EMS's tunables.
type Config struct {
	StateAccessDelayMS uint   `json:"state_access_delay_ms,omitempty"`
	Path               string `json:"path,omitempty"`
	MaxProc            int    `json:"max_proc,omitempty"`
	MaxThreads         int    `json:"max_threads,omitempty"`
}

// Default returns EMS's built-in defaults.
func Default() Config {
	return Config{
		StateAccessDelayMS: 0,
		MaxProc:            20,
		MaxThreads:         2,
	}
}

// FileName is the project-local config file name.
const FileName = ".ems.json"

// Overrides carries CLI-flag values; a nil field means "not set on the
// command line", so it never masks a config file value.
type Overrides struct {
	StateAccessDelayMS *uint
	Path               *string
	MaxProc            *int
	MaxThreads         *int
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	ConfigPath string // explicit config file path from --config, if any
	Env        map[string]string
	CLI        Overrides
}

// Load resolves Config with precedence: defaults -> global config ->
// project config -> CLI overrides.
func Load(input LoadInput) (Config, error) {
	cfg := Default()

	globalCfg, err := loadGlobalConfig(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg = merge(cfg, globalCfg)

	projectCfg, err := loadProjectConfig(input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg = merge(cfg, projectCfg)

	cfg = applyOverrides(cfg, input.CLI)

	if cfg.MaxProc < 1 {
		return Config{}, ErrInvalidMaxProc
	}

	if cfg.MaxThreads < 1 {
		return Config{}, ErrInvalidMaxThreads
	}

	return cfg, nil
}

func getGlobalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "ems", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "ems", "config.json")
	}

	return ""
}

func loadGlobalConfig(env map[string]string) (Config, error) {
	path := getGlobalConfigPath(env)
	if path == "" {
		return Config{}, nil
	}

	cfg, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return Config{}, err
	}

	if !loaded {
		return Config{}, nil
	}

	return cfg, nil
}

func loadProjectConfig(explicitPath string) (Config, error) {
	if explicitPath == "" {
		explicitPath = FileName

		cfg, _, err := loadConfigFile(explicitPath, false)
		return cfg, err
	}

	cfg, loaded, err := loadConfigFile(explicitPath, true)
	if err != nil {
		return Config{}, err
	}

	if !loaded {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, explicitPath)
	}

	return cfg, nil
}

func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled CLI/config input
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}

			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func merge(base, overlay Config) Config {
	if overlay.StateAccessDelayMS != 0 {
		base.StateAccessDelayMS = overlay.StateAccessDelayMS
	}

	if overlay.Path != "" {
		base.Path = overlay.Path
	}

	if overlay.MaxProc != 0 {
		base.MaxProc = overlay.MaxProc
	}

	if overlay.MaxThreads != 0 {
		base.MaxThreads = overlay.MaxThreads
	}

	return base
}

func applyOverrides(base Config, o Overrides) Config {
	if o.StateAccessDelayMS != nil {
		base.StateAccessDelayMS = *o.StateAccessDelayMS
	}

	if o.Path != nil {
		base.Path = *o.Path
	}

	if o.MaxProc != nil {
		base.MaxProc = *o.MaxProc
	}

	if o.MaxThreads != nil {
		base.MaxThreads = *o.MaxThreads
	}

	return base
}
