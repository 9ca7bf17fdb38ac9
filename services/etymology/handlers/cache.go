// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/etymonlab/etymon/services/etymology/cache"
)

// ClearCache resolves DELETE /v1/cache, dropping every cached
// definition. Credits and history are untouched.
func ClearCache(rc *cache.ResultCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := rc.ClearAll(c.Request.Context())
		if err != nil {
			slog.Error("Cache clear failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear cache"})
			return
		}
		slog.Info("Cache cleared", "evicted", n)
		c.JSON(http.StatusOK, gin.H{"status": "success", "evicted": n})
	}
}

// SweepCache resolves POST /v1/cache/sweep, removing expired and
// corrupt entries without touching fresh ones.
func SweepCache(rc *cache.ResultCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := rc.SweepExpired(c.Request.Context())
		if err != nil {
			slog.Error("Cache sweep failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sweep cache"})
			return
		}
		slog.Info("Cache swept", "evicted", n)
		c.JSON(http.StatusOK, gin.H{"status": "success", "evicted": n})
	}
}

// EvictWord resolves DELETE /v1/cache/:word for a single entry.
func EvictWord(rc *cache.ResultCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		word := c.Param("word")
		if err := rc.Evict(c.Request.Context(), word); err != nil {
			slog.Error("Cache evict failed", "word", word, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to evict word"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "word": word})
	}
}
