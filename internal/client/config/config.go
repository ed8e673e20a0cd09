// Package config loads the client settings file.
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

// Config holds the client settings after defaults and environment overrides.
type Config struct {
	ServerURL      string
	Profile        string
	Debug          bool
	LogFile        string
	SeedFile       string
	ReconnectDelay time.Duration
}

const (
	DefaultPath = "~/.config/cldzchat/config.toml"

	defaultServerURL = "ws://localhost:3567/ws"
	defaultProfile   = "default"
	defaultLogFile   = "~/.local/share/cldzchat/debug.log"
	defaultReconnect = 3 * time.Second

	EnvServer  = "CLDZCHAT_SERVER"
	EnvProfile = "CLDZCHAT_PROFILE"
)

// Default returns the settings used when no file exists.
func Default() Config {
	return Config{
		ServerURL:      defaultServerURL,
		Profile:        defaultProfile,
		LogFile:        mustExpand(defaultLogFile),
		ReconnectDelay: defaultReconnect,
	}
}

// Load reads the config at path (DefaultPath when empty). A missing file
// yields the defaults. Environment overrides are applied last.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
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
		ServerURL        string `toml:"server_url"`
		Profile          string `toml:"profile"`
		Debug            bool   `toml:"debug"`
		LogFile          string `toml:"log_file"`
		SeedFile         string `toml:"seed_file"`
		ReconnectSeconds int    `toml:"reconnect_seconds"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.ServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := strings.TrimSpace(raw.Profile); v != "" {
		cfg.Profile = v
	}
	cfg.Debug = raw.Debug
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.SeedFile); v != "" {
		cfg.SeedFile = mustExpand(v)
	}
	if raw.ReconnectSeconds > 0 {
		cfg.ReconnectDelay = time.Duration(raw.ReconnectSeconds) * time.Second
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvServer)); v != "" {
		cfg.ServerURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvProfile)); v != "" {
		cfg.Profile = v
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(DefaultPath)
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
