// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/etymonlab/etymon/services/etymology/cache"
	"github.com/etymonlab/etymon/services/etymology/credits"
	"github.com/etymonlab/etymon/services/etymology/handlers"
	"github.com/etymonlab/etymon/services/etymology/history"
	"github.com/etymonlab/etymon/services/etymology/lookup"
	"github.com/etymonlab/etymon/services/etymology/middleware"
)

// SetupRoutes wires the etymology API onto router.
func SetupRoutes(router *gin.Engine, svc *lookup.Service, rc *cache.ResultCache,
	ledger *credits.Ledger, rec *history.Recorder) {

	router.Use(middleware.RequestID(), middleware.RequestLogger())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/etymology", handlers.HandleLookup(svc))
		v1.GET("/etymology/:word", handlers.GetCached(rc))

		v1.GET("/history", handlers.GetHistory(rec))
		v1.DELETE("/history", handlers.ClearHistory(rec))

		v1.GET("/credits", handlers.GetCredits(ledger))

		cacheAdmin := v1.Group("/cache")
		{
			cacheAdmin.DELETE("", handlers.ClearCache(rc))
			cacheAdmin.DELETE("/:word", handlers.EvictWord(rc))
			cacheAdmin.POST("/sweep", handlers.SweepCache(rc))
		}
	}
}
