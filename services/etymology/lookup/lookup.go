// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package lookup orchestrates a word lookup end to end: cache check,
// credit gate, upstream generation with bounded retries, validation,
// and the write-backs (cache, history, credits) on acceptance.
//
// Retry policy: structural and upstream failures are transient and get
// up to two retries with a linear attempt*1s backoff. Mismatch,
// rate-limit, timeout, and cancellation are terminal; retrying them
// reproduces the failure or wastes budget.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/etymonlab/etymon/pkg/logging"
	"github.com/etymonlab/etymon/pkg/textnorm"
	"github.com/etymonlab/etymon/services/etymology/cache"
	"github.com/etymonlab/etymon/services/etymology/credits"
	"github.com/etymonlab/etymon/services/etymology/datatypes"
	"github.com/etymonlab/etymon/services/etymology/history"
	"github.com/etymonlab/etymon/services/etymology/observability"
	"github.com/etymonlab/etymon/services/etymology/upstream"
	"github.com/etymonlab/etymon/services/etymology/validate"
)

var tracer = otel.Tracer("etymon.lookup")

// ErrEmptyWord rejects blank queries before any work happens.
var ErrEmptyWord = errors.New("please enter a word")

// maxAttempts is the initial generation plus two retries.
const maxAttempts = 3

// defaultBackoff is the base of the linear backoff: attempt n sleeps
// n*defaultBackoff before the next try.
const defaultBackoff = time.Second

// Result is an accepted lookup.
type Result struct {
	Definition *datatypes.Definition
	// FromCache is set when the definition was served without touching
	// the upstream. No credit was spent.
	FromCache bool
	// Partial is set when the upstream exhausted its repair loop and
	// this is its best effort. Callers should present it with lower
	// confidence.
	Partial bool
	// Attempts counts generation calls. Zero for cache hits.
	Attempts int
}

// Service runs lookups.
//
// Thread Safety: safe for concurrent use. Concurrent lookups race on
// the supersede counter by design: when a newer lookup starts, older
// ones complete their cache write but report superseded instead of
// recording history.
type Service struct {
	cache     *cache.ResultCache
	credits   *credits.Ledger
	history   *history.Recorder
	gen       upstream.Generator
	validator *validate.Validator
	logger    *logging.Logger
	backoff   time.Duration
	attempts  int

	seq atomic.Uint64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger injects a logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithBackoff overrides the backoff base. Zero disables sleeping,
// which tests rely on.
func WithBackoff(d time.Duration) Option {
	return func(s *Service) { s.backoff = d }
}

// WithMaxAttempts overrides the attempt budget.
func WithMaxAttempts(n int) Option {
	return func(s *Service) { s.attempts = n }
}

// New assembles the lookup pipeline.
func New(c *cache.ResultCache, ledger *credits.Ledger, rec *history.Recorder,
	gen upstream.Generator, v *validate.Validator, opts ...Option) *Service {
	s := &Service{
		cache:     c,
		credits:   ledger,
		history:   rec,
		gen:       gen,
		validator: v,
		logger:    logging.Default(),
		backoff:   defaultBackoff,
		attempts:  maxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup resolves a word to a definition.
//
// # Description
//
// Cache hits return immediately and refresh the word's history row.
// Misses spend a credit path: the credit gate runs first, then up to
// three generation attempts with validation between them. An accepted
// definition is cached, recorded in history, and charged one credit.
//
// A lookup that finishes after a newer one has started still writes
// its cache entry, but reports a canceled error instead of touching
// history: the caller has moved on.
//
// # Inputs
//
//   - ctx: Cancellation and deadline for the whole lookup.
//   - word: The word as the user typed it.
//
// # Outputs
//
//   - Result: The accepted definition and how it was obtained.
//   - error: ErrEmptyWord, or a LookupError whose kind drives the
//     HTTP status / CLI message.
func (s *Service) Lookup(ctx context.Context, word string) (Result, error) {
	if strings.TrimSpace(word) == "" {
		return Result{}, ErrEmptyWord
	}

	ctx, span := tracer.Start(ctx, "Service.Lookup")
	defer span.End()
	span.SetAttributes(attribute.String("etymology.word", word))

	seq := s.seq.Add(1)

	if def := s.cache.Get(ctx, word); def != nil {
		observability.LookupsTotal.WithLabelValues(observability.OutcomeCacheHit).Inc()
		span.SetAttributes(attribute.Bool("etymology.cache_hit", true))
		if err := s.history.Record(ctx, word, def); err != nil {
			s.logger.Warn("History record failed", "word", word, "error", err)
		}
		return Result{Definition: def, FromCache: true}, nil
	}

	ok, err := s.credits.Available(ctx)
	if err != nil {
		return Result{}, s.fail(ctx, span, word, 0, err)
	}
	if !ok {
		hours, herr := s.credits.HoursUntilReset(ctx)
		if herr != nil {
			hours = 0
		}
		err := datatypes.NewLookupError(datatypes.KindRateLimited, word,
			fmt.Errorf("credit limit reached, resets in about %d hour(s)", hours))
		return Result{}, s.fail(ctx, span, word, 0, err)
	}

	// The search exists in history from the moment it is submitted;
	// meaning and origin fill in once a definition is accepted.
	if err := s.history.Record(ctx, word, nil); err != nil {
		s.logger.Warn("History record failed", "word", word, "error", err)
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= s.attempts; attempt++ {
		attempts = attempt
		res, err := s.generateOnce(ctx, word)
		if err == nil {
			return s.accept(ctx, span, word, seq, attempt, res)
		}
		lastErr = err

		if !datatypes.KindOf(err).Retriable() || attempt == s.attempts {
			break
		}
		s.logger.Warn("Lookup attempt failed, retrying",
			"word", word, "attempt", attempt, "kind", string(datatypes.KindOf(err)), "error", err)
		if err := s.sleep(ctx, attempt); err != nil {
			lastErr = datatypes.NewLookupError(datatypes.KindCanceled, word, err)
			break
		}
	}

	observability.LookupAttempts.Observe(float64(attempts))
	return Result{}, s.fail(ctx, span, word, attempts, lastErr)
}

// attemptResult carries one validated generation outcome.
type attemptResult struct {
	def     *datatypes.Definition
	partial bool
}

// generateOnce runs one upstream call and validates its output.
func (s *Service) generateOnce(ctx context.Context, word string) (attemptResult, error) {
	start := time.Now()
	def, partial, err := s.gen.Generate(ctx, word)
	status := observability.StatusOK
	switch {
	case err != nil:
		status = observability.StatusError
	case partial:
		status = observability.StatusPartial
	}
	observability.UpstreamLatencySeconds.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if err != nil {
		return attemptResult{}, err
	}

	res := s.validator.ValidateForWord(def, word)
	if res.Mismatch {
		return attemptResult{}, datatypes.NewLookupError(datatypes.KindMismatch, word,
			fmt.Errorf("definition analyzes a different word"))
	}

	if partial {
		// A partial result must at least hold its shape; deep wiring
		// issues are tolerated because this is explicitly best-effort.
		if err := def.Validate(); err != nil {
			return attemptResult{}, datatypes.NewLookupError(datatypes.KindStructural, word, err)
		}
		return attemptResult{def: def, partial: true}, nil
	}

	if len(res.Issues) > 0 {
		return attemptResult{}, datatypes.NewLookupError(datatypes.KindStructural, word,
			fmt.Errorf("definition failed validation: %s", strings.Join(res.Issues, "; ")))
	}
	return attemptResult{def: def}, nil
}

// accept performs the write-backs for a validated definition.
func (s *Service) accept(ctx context.Context, span trace.Span, word string, seq uint64,
	attempts int, res attemptResult) (Result, error) {

	observability.LookupAttempts.Observe(float64(attempts))

	if err := s.credits.Increment(ctx); err != nil {
		s.logger.Warn("Credit increment failed", "word", word, "error", err)
	} else {
		observability.CreditsSpent.Inc()
	}

	if err := s.cache.Set(ctx, word, res.def); err != nil {
		if res.partial && datatypes.KindOf(err) == datatypes.KindStructural {
			// Partial results may not meet the cache's bar; serve them
			// once without caching.
			s.logger.Info("Partial result not cacheable", "word", word, "error", err)
		} else {
			s.logger.Warn("Cache write failed", "word", word, "error", err)
		}
	}

	if s.seq.Load() != seq {
		observability.LookupsTotal.WithLabelValues(observability.OutcomeSuperseded).Inc()
		err := datatypes.NewLookupError(datatypes.KindCanceled, word,
			errors.New("superseded by a newer search"))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	if err := s.history.Record(ctx, word, res.def); err != nil {
		s.logger.Warn("History record failed", "word", word, "error", err)
	}

	outcome := observability.OutcomeGenerated
	if res.partial {
		outcome = observability.OutcomePartial
	}
	observability.LookupsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(
		attribute.Int("etymology.attempts", attempts),
		attribute.Bool("etymology.partial", res.partial),
	)
	return Result{Definition: res.def, Partial: res.partial, Attempts: attempts}, nil
}

// fail handles a terminal lookup failure: metrics, span status, and
// the cache hygiene the failure kind demands.
func (s *Service) fail(ctx context.Context, span trace.Span, word string, attempts int, err error) error {
	kind := datatypes.KindOf(err)
	observability.LookupsTotal.WithLabelValues(observability.OutcomeFailed).Inc()
	observability.LookupFailures.WithLabelValues(string(kind)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	switch kind {
	case datatypes.KindMismatch:
		// A mismatch means identity resolution went wrong somewhere;
		// stored entries can no longer be trusted.
		if n, cerr := s.cache.ClearAll(ctx); cerr != nil {
			s.logger.Warn("Cache reset after mismatch failed", "word", word, "error", cerr)
		} else {
			s.logger.Warn("Cache reset after mismatch", "word", word, "evicted", n)
		}
	case datatypes.KindRateLimited, datatypes.KindCanceled:
		// Nothing stored, nothing to clean.
	default:
		if cerr := s.cache.Evict(ctx, word); cerr != nil {
			s.logger.Warn("Evict after failed lookup failed", "word", word, "error", cerr)
		}
	}

	s.logger.Error("Lookup failed",
		"word", word, "kind", string(kind), "attempts", attempts, "error", err)
	return err
}

// sleep blocks for the linear backoff of the given attempt, honoring
// cancellation.
func (s *Service) sleep(ctx context.Context, attempt int) error {
	d := time.Duration(attempt) * s.backoff
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Normalized exposes the cache identity of a word, for callers that
// need to display or log the canonical form.
func (s *Service) Normalized(word string) string {
	return textnorm.Normalize(word)
}
