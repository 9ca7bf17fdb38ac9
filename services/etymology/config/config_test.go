// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etymonlab/etymon/pkg/logging"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "etymon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 60*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 6*time.Hour, cfg.CreditsInterval())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
listen: ":9090"
cache_ttl_minutes: 30
max_credits: 5
upstream: http
upstream_endpoint: http://localhost:9000/v1/etymology
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 5, cfg.MaxCredits)
	assert.Equal(t, "http", cfg.Upstream)
	// Untouched keys keep defaults.
	assert.Equal(t, Default().CreditsIntervalHours, cfg.CreditsIntervalHours)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `max_credits: 5`)
	t.Setenv("ETYMON_MAX_CREDITS", "2")
	t.Setenv("ETYMON_LOG_JSON", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxCredits)
	assert.True(t, cfg.LogJSON)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(writeConfig(t, dir, `cache_ttl_minutes: -1`))
	assert.ErrorContains(t, err, "cache_ttl_minutes")

	_, err = Load(writeConfig(t, dir, `upstream: carrier-pigeon`))
	assert.ErrorContains(t, err, "unknown upstream")

	_, err = Load(writeConfig(t, dir, `upstream: http`))
	assert.ErrorContains(t, err, "upstream_endpoint")

	_, err = Load(writeConfig(t, dir, `listen: [not, a, string]`))
	assert.ErrorContains(t, err, "parse")
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `max_credits: 5`)

	w, err := NewWatcher(path, logging.Default())
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, 5, w.Current().MaxCredits)

	changed := make(chan Config, 1)
	go w.Run(func(cfg Config) { changed <- cfg })

	require.NoError(t, os.WriteFile(path, []byte(`max_credits: 7`), 0o644))

	select {
	case cfg := <-changed:
		assert.Equal(t, 7, cfg.MaxCredits)
		assert.Equal(t, 7, w.Current().MaxCredits)
	case <-time.After(5 * time.Second):
		t.Fatal("config reload not observed")
	}
}

func TestWatcher_KeepsLastGoodOnInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `max_credits: 5`)

	w, err := NewWatcher(path, logging.Default())
	require.NoError(t, err)
	defer w.Stop()

	go w.Run(nil)

	require.NoError(t, os.WriteFile(path, []byte(`max_credits: -3`), 0o644))

	// The invalid snapshot must never become current. Give the watcher a
	// moment to (not) apply it.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 5, w.Current().MaxCredits)
}
