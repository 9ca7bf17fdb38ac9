// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache metrics. Evictions are labeled by cause so a rising
// "corrupt" or "identity" rate is visible separately from normal
// TTL turnover.
var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etymon_cache_hits_total",
		Help: "Cache reads that returned a valid definition",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etymon_cache_misses_total",
		Help: "Cache reads that found nothing usable",
	})

	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etymon_cache_evictions_total",
		Help: "Entries removed during reads or sweeps",
	}, []string{"cause"}) // expired, corrupt, identity, invalid

	cacheWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etymon_cache_writes_total",
		Help: "Definitions stored in the cache",
	})

	cacheWriteRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etymon_cache_write_retries_total",
		Help: "Writes retried after a sweep of expired entries",
	})
)
