package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds posttree settings.
type Config struct {
	// APIURL is the collaborator base URL. Empty means the environment or the
	// built-in default decides (see api.ResolveBaseURL).
	APIURL       string
	PageSize     int
	PollInterval time.Duration
	LogDir       string
	LogLevel     string
	// MetricsAddr is the listen address for /metrics. Empty disables it.
	MetricsAddr string
}

const (
	defaultConfigPath   = "~/.config/posttree/config.toml"
	defaultLogDir       = "~/.local/state/posttree"
	defaultPageSize     = 25
	defaultPollInterval = 3 * time.Minute
	defaultLogLevel     = "info"
	maxPageSize         = 100
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		PageSize:     defaultPageSize,
		PollInterval: defaultPollInterval,
		LogDir:       mustExpand(defaultLogDir),
		LogLevel:     defaultLogLevel,
	}
}

// Load locates and parses the posttree config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL       string `toml:"api_url"`
		PageSize     int    `toml:"page_size"`
		PollInterval string `toml:"poll_interval"`
		LogDir       string `toml:"log_dir"`
		LogLevel     string `toml:"log_level"`
		MetricsAddr  string `toml:"metrics_addr"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.APIURL = strings.TrimSpace(raw.APIURL)

	switch {
	case raw.PageSize < 0:
		return Config{}, fmt.Errorf("parse config: page_size must not be negative")
	case raw.PageSize > maxPageSize:
		cfg.PageSize = maxPageSize
	case raw.PageSize > 0:
		cfg.PageSize = raw.PageSize
	}

	if interval := strings.TrimSpace(raw.PollInterval); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: poll_interval: %w", err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("parse config: poll_interval must be positive")
		}
		cfg.PollInterval = d
	}

	if dir := strings.TrimSpace(raw.LogDir); dir != "" {
		cfg.LogDir = mustExpand(dir)
	}
	if level := strings.ToLower(strings.TrimSpace(raw.LogLevel)); level != "" {
		cfg.LogLevel = level
	}
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)

	return cfg, nil
}

// LogPath returns the path of the posttree log file.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/posttree.log")
	}
	return filepath.Join(c.LogDir, "posttree.log")
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
