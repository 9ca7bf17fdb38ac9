// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/etymonlab/etymon/pkg/logging"
	"github.com/etymonlab/etymon/services/etymology/cache"
	"github.com/etymonlab/etymon/services/etymology/config"
	"github.com/etymonlab/etymon/services/etymology/credits"
	"github.com/etymonlab/etymon/services/etymology/history"
	"github.com/etymonlab/etymon/services/etymology/lookup"
	"github.com/etymonlab/etymon/services/etymology/storage"
	"github.com/etymonlab/etymon/services/etymology/upstream"
	"github.com/etymonlab/etymon/services/etymology/validate"
)

// app holds the assembled service graph for one command invocation.
type app struct {
	cfg    config.Config
	logger *logging.Logger
	store  storage.Store

	cache   *cache.ResultCache
	ledger  *credits.Ledger
	history *history.Recorder
	lookup  *lookup.Service
}

// buildApp loads configuration and wires the pipeline. The caller must
// Close the app when done.
func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: "etymon",
		JSON:    cfg.LogJSON,
	})

	storeCfg := storage.InMemoryConfig()
	if cfg.DataDir != "" {
		storeCfg = storage.DefaultConfig()
		storeCfg.Path = expandHome(cfg.DataDir)
	}
	store, err := storage.Open(storeCfg)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	v := validate.New()
	rc := cache.New(store, v,
		cache.WithTTL(cfg.CacheTTL()),
		cache.WithLogger(logger),
	)
	ledger := credits.NewLedger(store,
		credits.WithLimits(cfg.MaxCredits, cfg.CreditsInterval()),
	)
	rec := history.NewRecorder(store)

	gen, err := buildGenerator(cfg, v, logger)
	if err != nil {
		store.Close()
		logger.Close()
		return nil, err
	}

	svc := lookup.New(rc, ledger, rec, gen, v, lookup.WithLogger(logger))

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		cache:   rc,
		ledger:  ledger,
		history: rec,
		lookup:  svc,
	}, nil
}

// buildGenerator selects the upstream from configuration.
func buildGenerator(cfg config.Config, v *validate.Validator, logger *logging.Logger) (upstream.Generator, error) {
	switch cfg.Upstream {
	case "http":
		return upstream.NewHTTPGenerator(cfg.UpstreamEndpoint), nil
	default:
		opts := []upstream.OpenAIOption{upstream.WithLogger(logger)}
		if cfg.OpenAIModel != "" {
			opts = append(opts, upstream.WithModel(cfg.OpenAIModel))
		}
		return upstream.NewOpenAIGenerator(v, opts...)
	}
}

// expandHome resolves a leading ~/ against the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Store close failed", "error", err)
	}
	a.logger.Close()
}
