// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP handlers for the etymology API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/etymonlab/etymon/services/etymology/cache"
	"github.com/etymonlab/etymon/services/etymology/datatypes"
	"github.com/etymonlab/etymon/services/etymology/lookup"
)

// statusClientClosedRequest is the nginx convention for a request the
// client abandoned; there is no net/http constant for it.
const statusClientClosedRequest = 499

type lookupRequest struct {
	Word string `json:"word"`
}

// HandleLookup resolves POST /v1/etymology.
//
// # Description
//
// Responds 200 with the definition, or 203 when the upstream exhausted
// its repair budget and this is its best effort. X-Etymon-Cache and
// X-Etymon-Attempts carry how the result was obtained.
func HandleLookup(svc *lookup.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req lookupRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Word == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a word"})
			return
		}

		res, err := svc.Lookup(c.Request.Context(), req.Word)
		if err != nil {
			status, message := statusFor(err)
			slog.Warn("Lookup request failed", "word", req.Word, "status", status, "error", err)
			c.JSON(status, gin.H{"error": message})
			return
		}

		cacheHeader := "miss"
		if res.FromCache {
			cacheHeader = "hit"
		}
		c.Header("X-Etymon-Cache", cacheHeader)
		c.Header("X-Etymon-Attempts", strconv.Itoa(res.Attempts))

		status := http.StatusOK
		if res.Partial {
			status = http.StatusNonAuthoritativeInfo
		}
		c.JSON(status, res.Definition)
	}
}

// GetCached resolves GET /v1/etymology/:word without touching the
// upstream: 200 from cache or 404.
func GetCached(rc *cache.ResultCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		word := c.Param("word")
		def := rc.Get(c.Request.Context(), word)
		if def == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "word is not cached"})
			return
		}
		c.Header("X-Etymon-Cache", "hit")
		c.JSON(http.StatusOK, def)
	}
}

// statusFor maps a lookup failure onto an HTTP status and a message
// safe to show the user.
func statusFor(err error) (int, string) {
	if errors.Is(err, lookup.ErrEmptyWord) {
		return http.StatusBadRequest, "Please enter a word"
	}

	switch datatypes.KindOf(err) {
	case datatypes.KindRateLimited:
		return http.StatusTooManyRequests, err.Error()
	case datatypes.KindTimeout:
		return http.StatusRequestTimeout, "Request timed out. Please try a shorter word."
	case datatypes.KindMismatch:
		return http.StatusUnprocessableEntity, "The result did not match the requested word. Please try again."
	case datatypes.KindCanceled:
		return statusClientClosedRequest, "The search was superseded or canceled."
	case datatypes.KindStorage:
		return http.StatusInternalServerError, "Storage failure. Please try again."
	default: // structural, upstream
		return http.StatusBadGateway, "The etymology service returned an unusable result. Please try again."
	}
}
