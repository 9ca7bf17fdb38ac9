// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the lookup
// pipeline.
//
// # Description
//
// Metrics cover the lookup funnel end to end:
//   - Lookup outcomes (cache hit, generated, partial, failed, superseded)
//   - Attempts spent per lookup
//   - Credits charged
//   - Upstream generation latency by status
//
// The cache package registers its own hit/miss/eviction counters; this
// package owns everything above it.
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint on the API server.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "etymon"

// Lookup outcome labels.
const (
	OutcomeCacheHit   = "cache_hit"
	OutcomeGenerated  = "generated"
	OutcomePartial    = "partial"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
)

// Upstream status labels.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusError   = "error"
)

// LookupsTotal counts completed lookups by outcome.
var LookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: metricsNamespace,
	Name:      "lookups_total",
	Help:      "Completed lookups by outcome",
}, []string{"outcome"})

// LookupAttempts measures how many generation attempts a lookup needed
// before settling. Cache hits never reach the upstream and are not
// observed here.
var LookupAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: metricsNamespace,
	Name:      "lookup_attempts",
	Help:      "Generation attempts per lookup",
	Buckets:   []float64{1, 2, 3},
})

// UpstreamLatencySeconds measures one generation call, repair loop
// included.
var UpstreamLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: metricsNamespace,
	Name:      "upstream_latency_seconds",
	Help:      "Latency of upstream generation calls",
	Buckets:   prometheus.DefBuckets,
}, []string{"status"})

// CreditsSpent counts credits charged against the rolling window.
var CreditsSpent = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: metricsNamespace,
	Name:      "credits_spent_total",
	Help:      "Credits charged against the rolling window",
})

// LookupFailures counts terminal lookup failures by error kind.
var LookupFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: metricsNamespace,
	Name:      "lookup_failures_total",
	Help:      "Terminal lookup failures by error kind",
}, []string{"kind"})
