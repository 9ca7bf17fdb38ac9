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

	"github.com/etymonlab/etymon/services/etymology/credits"
)

// GetCredits resolves GET /v1/credits with the current window state.
func GetCredits(ledger *credits.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		used, err := ledger.Used(ctx)
		if err != nil {
			slog.Error("Credits read failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read credits"})
			return
		}
		remaining, err := ledger.Remaining(ctx)
		if err != nil {
			slog.Error("Credits read failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read credits"})
			return
		}
		hours, err := ledger.HoursUntilReset(ctx)
		if err != nil {
			slog.Error("Credits read failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read credits"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"used":              used,
			"remaining":         remaining,
			"max":               ledger.Max(),
			"reset_in_hours":    hours,
			"upstream_available": remaining > 0,
		})
	}
}
