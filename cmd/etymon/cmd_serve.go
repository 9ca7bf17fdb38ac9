// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/etymonlab/etymon/services/etymology/config"
	"github.com/etymonlab/etymon/services/etymology/routes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the etymology API server",
	Long: `Starts the HTTP API.

Endpoints:
  POST   /v1/etymology        Look a word up (generates on cache miss)
  GET    /v1/etymology/:word  Cache-only read
  GET    /v1/history          Search history (?grouped=true for buckets)
  DELETE /v1/history          Clear history
  GET    /v1/credits          Credit window state
  DELETE /v1/cache            Drop every cached definition
  POST   /v1/cache/sweep      Remove expired and corrupt entries
  GET    /health, /metrics

The configuration file is watched; cache TTL and credit limits apply
without a restart.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	routes.SetupRoutes(router, a.lookup, a.cache, a.ledger, a.history)

	watcher, err := config.NewWatcher(configPath, a.logger)
	if err != nil {
		a.logger.Warn("Config watch unavailable, tunables fixed until restart", "error", err)
	} else {
		defer watcher.Stop()
		go watcher.Run(func(cfg config.Config) {
			a.cache.SetTTL(cfg.CacheTTL())
			a.ledger.SetLimits(cfg.MaxCredits, cfg.CreditsInterval())
		})
	}

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("API server listening", "addr", a.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		a.logger.Info("Shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
