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

	"github.com/etymonlab/etymon/services/etymology/datatypes"
	"github.com/etymonlab/etymon/services/etymology/history"
)

// GetHistory resolves GET /v1/history. With ?grouped=true the entries
// come back bucketed by age, in display order.
func GetHistory(rec *history.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := rec.List(c.Request.Context())
		if err != nil {
			slog.Error("History read failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
			return
		}
		if entries == nil {
			entries = []datatypes.HistoryEntry{}
		}

		if c.Query("grouped") != "true" {
			c.JSON(http.StatusOK, gin.H{"entries": entries})
			return
		}

		groups := rec.GroupByAge(entries)
		ordered := make([]gin.H, 0, len(history.BucketOrder))
		for _, bucket := range history.BucketOrder {
			if len(groups[bucket]) == 0 {
				continue
			}
			ordered = append(ordered, gin.H{"bucket": bucket, "entries": groups[bucket]})
		}
		c.JSON(http.StatusOK, gin.H{"groups": ordered})
	}
}

// ClearHistory resolves DELETE /v1/history.
func ClearHistory(rec *history.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := rec.Clear(c.Request.Context()); err != nil {
			slog.Error("History clear failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}
