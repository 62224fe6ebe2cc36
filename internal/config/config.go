// Package config loads adrlog configuration with layered precedence:
// defaults, then the global user config, then the project config file,
// then explicit CLI overrides. Config files are JWCC (JSON with comments
// and trailing commas) so hand-edited files stay forgiving.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// Config holds all configuration options.
type Config struct {
	Dir           string `json:"dir"`
	LockTimeoutMS int    `json:"lock_timeout_ms"`
}

// FileName is the project config file name, looked up in the working
// directory.
const FileName = ".adrlog.json"

// Defaults.
const (
	DefaultDir           = "docs/adr"
	DefaultLockTimeoutMS = 5000
)

var (
	errConfigRead    = errors.New("cannot read config file")
	errConfigInvalid = errors.New("invalid config file")
	errDirEmpty      = errors.New("dir cannot be empty")
)

// Default returns the default configuration.
func Default() Config {
	return Config{
		Dir:           DefaultDir,
		LockTimeoutMS: DefaultLockTimeoutMS,
	}
}

// LockTimeout returns the configured lock budget as a duration.
func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMS) * time.Millisecond
}

// Overrides carries CLI-level settings that win over every config file.
// Zero values mean "not set".
type Overrides struct {
	Dir string
}

// Load resolves the effective configuration for workDir. configPath, when
// non-empty, names an explicit config file that replaces the project-level
// lookup; it is an error for it to be missing.
func Load(workDir, configPath string, overrides Overrides) (Config, error) {
	cfg := Default()

	globalCfg, err := loadFile(globalConfigPath(), false)
	if err != nil {
		return Config{}, err
	}

	cfg = merge(cfg, globalCfg)

	projectPath := filepath.Join(workDir, FileName)
	required := false

	if configPath != "" {
		projectPath = configPath
		required = true
	}

	projectCfg, err := loadFile(projectPath, required)
	if err != nil {
		return Config{}, err
	}

	cfg = merge(cfg, projectCfg)

	if overrides.Dir != "" {
		cfg.Dir = overrides.Dir
	}

	if cfg.Dir == "" {
		return Config{}, fmt.Errorf("%w: %w", errConfigInvalid, errDirEmpty)
	}

	return cfg, nil
}

// globalConfigPath returns $XDG_CONFIG_HOME/adrlog/config.json, falling
// back to ~/.config/adrlog/config.json. Empty when no home is resolvable.
func globalConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "adrlog", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "adrlog", "config.json")
}

// loadFile reads one config file. A missing optional file is not an error
// and contributes nothing to the merge.
func loadFile(path string, required bool) (Config, error) {
	if path == "" {
		return Config{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from config resolution
	if err != nil {
		if os.IsNotExist(err) && !required {
			return Config{}, nil
		}

		return Config{}, fmt.Errorf("%w %s: %w", errConfigRead, path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, nil
}

// merge overlays non-zero fields of layer onto base.
func merge(base, layer Config) Config {
	if layer.Dir != "" {
		base.Dir = layer.Dir
	}

	if layer.LockTimeoutMS != 0 {
		base.LockTimeoutMS = layer.LockTimeoutMS
	}

	return base
}
