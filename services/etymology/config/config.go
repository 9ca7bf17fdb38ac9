// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the service configuration: YAML file, then
// environment overrides on top. Watch re-reads the file on change so
// tunables (TTL, credit budget, log level) can move without a restart.
//
// Thread Safety:
//
//	All exported functions and types are safe for concurrent use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/etymonlab/etymon/pkg/logging"
	"github.com/etymonlab/etymon/services/etymology/datatypes"
)

// MaxYAMLFileSize caps config reads at 1MB.
const MaxYAMLFileSize = 1024 * 1024

// Config is the service configuration.
type Config struct {
	// Server settings.
	Listen string `yaml:"listen"`

	// DataDir is the badger directory. Empty means in-memory.
	DataDir string `yaml:"data_dir"`

	// Cache tunables.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes"`

	// Credit tunables.
	MaxCredits           int `yaml:"max_credits"`
	CreditsIntervalHours int `yaml:"credits_interval_hours"`

	// Upstream selection: "openai" or "http".
	Upstream         string `yaml:"upstream"`
	UpstreamEndpoint string `yaml:"upstream_endpoint"`
	OpenAIModel      string `yaml:"openai_model"`

	// Logging.
	LogLevel string `yaml:"log_level"`
	LogDir   string `yaml:"log_dir"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Listen:               ":8080",
		DataDir:              "~/.etymon/data",
		CacheTTLMinutes:      int(datatypes.CacheTTL / time.Minute),
		MaxCredits:           datatypes.MaxCredits,
		CreditsIntervalHours: int(datatypes.CreditsInterval / time.Hour),
		Upstream:             "openai",
		LogLevel:             "info",
	}
}

// CacheTTL returns the cache TTL as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// CreditsInterval returns the credit window as a duration.
func (c Config) CreditsInterval() time.Duration {
	return time.Duration(c.CreditsIntervalHours) * time.Hour
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.CacheTTLMinutes <= 0 {
		return fmt.Errorf("config: cache_ttl_minutes must be positive, got %d", c.CacheTTLMinutes)
	}
	if c.MaxCredits <= 0 {
		return fmt.Errorf("config: max_credits must be positive, got %d", c.MaxCredits)
	}
	if c.CreditsIntervalHours <= 0 {
		return fmt.Errorf("config: credits_interval_hours must be positive, got %d", c.CreditsIntervalHours)
	}
	switch c.Upstream {
	case "openai":
	case "http":
		if c.UpstreamEndpoint == "" {
			return fmt.Errorf("config: upstream %q requires upstream_endpoint", c.Upstream)
		}
	default:
		return fmt.Errorf("config: unknown upstream %q", c.Upstream)
	}
	return nil
}

// Load reads path (when it exists), applies environment overrides,
// and validates. A missing file is not an error: defaults plus
// environment are a complete configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults it is.
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		case len(raw) > MaxYAMLFileSize:
			return Config{}, fmt.Errorf("config: %s exceeds %d bytes", path, MaxYAMLFileSize)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers ETYMON_* variables over the file values.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("ETYMON_LISTEN", &cfg.Listen)
	setString("ETYMON_DATA_DIR", &cfg.DataDir)
	setInt("ETYMON_CACHE_TTL_MINUTES", &cfg.CacheTTLMinutes)
	setInt("ETYMON_MAX_CREDITS", &cfg.MaxCredits)
	setInt("ETYMON_CREDITS_INTERVAL_HOURS", &cfg.CreditsIntervalHours)
	setString("ETYMON_UPSTREAM", &cfg.Upstream)
	setString("ETYMON_UPSTREAM_ENDPOINT", &cfg.UpstreamEndpoint)
	setString("ETYMON_OPENAI_MODEL", &cfg.OpenAIModel)
	setString("ETYMON_LOG_LEVEL", &cfg.LogLevel)
	setString("ETYMON_LOG_DIR", &cfg.LogDir)
	if v := os.Getenv("ETYMON_LOG_JSON"); v != "" {
		cfg.LogJSON = v == "true" || v == "1"
	}
}

// Watcher re-loads the config file when it changes and hands each
// valid new snapshot to the subscriber. Invalid snapshots are dropped;
// the previous configuration stays in force.
type Watcher struct {
	path    string
	logger  *logging.Logger
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current Config

	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher loads path and starts watching its directory. Watching
// the directory rather than the file survives the rename-and-replace
// dance editors and config management tools do.
func NewWatcher(path string, logger *logging.Logger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:    path,
		logger:  logger,
		watcher: fsw,
		current: cfg,
		done:    make(chan struct{}),
	}
	return w, nil
}

// Current returns the latest valid configuration snapshot.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run processes file events until Stop is called. Each valid reload is
// passed to onChange (which may be nil).
func (w *Watcher) Run(onChange func(Config)) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn("Config reload rejected", "path", w.path, "error", err)
				continue
			}
			w.mu.Lock()
			w.current = cfg
			w.mu.Unlock()
			w.logger.Info("Config reloaded", "path", w.path)
			if onChange != nil {
				onChange(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", "error", err)
		}
	}
}

// Stop ends the watch. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}
