// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cache stores validated definitions under a 60-minute TTL.
//
// The cache treats its own contents as untrusted: every read re-checks
// the entry's word identity and re-runs the full validator, so entries
// written under older rules are evicted instead of served. Expiry is
// lazy. Nothing is removed on a timer; entries go when a read finds
// them stale or a sweep is asked for.
//
// A read never fails: any problem (corrupt JSON, expired TTL, identity
// drift, validation failure) self-heals into a miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/etymonlab/etymon/pkg/logging"
	"github.com/etymonlab/etymon/pkg/textnorm"
	"github.com/etymonlab/etymon/services/etymology/clock"
	"github.com/etymonlab/etymon/services/etymology/datatypes"
	"github.com/etymonlab/etymon/services/etymology/storage"
	"github.com/etymonlab/etymon/services/etymology/validate"
)

// ResultCache is the TTL cache for validated definitions.
//
// Thread Safety: safe for concurrent use when the underlying Store is.
type ResultCache struct {
	store     storage.Store
	validator *validate.Validator
	clk       clock.Clock
	logger    *logging.Logger

	mu  sync.RWMutex
	ttl time.Duration
}

// Option configures a ResultCache.
type Option func(*ResultCache)

// WithClock injects a time source. Tests use this to cross TTL
// boundaries without sleeping.
func WithClock(c clock.Clock) Option {
	return func(rc *ResultCache) { rc.clk = c }
}

// WithTTL overrides the default 60-minute TTL.
func WithTTL(ttl time.Duration) Option {
	return func(rc *ResultCache) { rc.ttl = ttl }
}

// WithLogger sets the logger. Defaults to the package default logger.
func WithLogger(l *logging.Logger) Option {
	return func(rc *ResultCache) { rc.logger = l }
}

// New creates a ResultCache over the given store.
func New(store storage.Store, validator *validate.Validator, opts ...Option) *ResultCache {
	rc := &ResultCache{
		store:     store,
		validator: validator,
		clk:       clock.System(),
		ttl:       datatypes.CacheTTL,
		logger:    logging.Default(),
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// SetTTL changes the TTL for subsequent reads and sweeps. Existing
// entries are judged against the new value, so shrinking the TTL
// retroactively expires old entries.
func (rc *ResultCache) SetTTL(ttl time.Duration) {
	rc.mu.Lock()
	rc.ttl = ttl
	rc.mu.Unlock()
}

// TTL returns the current TTL.
func (rc *ResultCache) TTL() time.Duration {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.ttl
}

// Key returns the store key for a word.
func Key(word string) string {
	return datatypes.CachePrefix + textnorm.Normalize(word)
}

// Get returns the cached definition for word, or nil on a miss.
//
// # Description
//
// A hit requires all of: the entry parses, its TTL has not elapsed,
// its stored original word still identifies the queried word, and the
// definition passes the full validator for the queried word. Entries
// failing any check are evicted before the miss is reported.
//
// # Inputs
//
//   - ctx: Cancellation.
//   - word: The word the user submitted, raw form.
//
// # Outputs
//
//   - *datatypes.Definition: The validated definition, or nil.
func (rc *ResultCache) Get(ctx context.Context, word string) *datatypes.Definition {
	key := Key(word)

	raw, err := rc.store.Get(ctx, key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		cacheMisses.Inc()
		return nil
	}
	if err != nil {
		rc.logger.Warn("cache read failed", "key", key, "error", err)
		cacheMisses.Inc()
		return nil
	}

	var entry datatypes.CachedEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		rc.evict(ctx, key, "corrupt")
		cacheMisses.Inc()
		return nil
	}

	if entry.ExpiredAt(rc.clk.Now(), rc.TTL()) {
		rc.evict(ctx, key, "expired")
		cacheMisses.Inc()
		return nil
	}

	if !rc.sameWord(word, entry.OriginalWord) {
		rc.evict(ctx, key, "identity")
		cacheMisses.Inc()
		return nil
	}

	if res := rc.validator.ValidateForWord(&entry.Data, word); !res.OK() {
		rc.logger.Warn("cached entry no longer validates",
			"key", key, "issues", len(res.Issues), "mismatch", res.Mismatch)
		rc.evict(ctx, key, "invalid")
		cacheMisses.Inc()
		return nil
	}

	cacheHits.Inc()
	return &entry.Data
}

// Set validates and stores a definition for word.
//
// # Description
//
// The definition must pass the full validator for the word; invalid or
// mismatched data is refused so the cache only ever holds servable
// entries. When the store rejects the write (quota, disk), expired
// entries are swept and the write retried once.
//
// # Outputs
//
//   - error: A LookupError (structural or mismatch kind) when the
//     definition is refused, a storage error when the write failed
//     after the sweep, nil on success.
func (rc *ResultCache) Set(ctx context.Context, word string, def *datatypes.Definition) error {
	if res := rc.validator.ValidateForWord(def, word); !res.OK() {
		if res.Mismatch {
			return datatypes.NewLookupError(datatypes.KindMismatch, word,
				errors.New("definition analyzes a different word"))
		}
		return datatypes.NewLookupError(datatypes.KindStructural, word,
			fmt.Errorf("definition failed validation: %s", res.Issues[0]))
	}

	entry := datatypes.CachedEntry{
		Data:         *def,
		Timestamp:    rc.clk.Now().UnixMilli(),
		OriginalWord: word,
	}
	raw, err := json.Marshal(&entry)
	if err != nil {
		return datatypes.NewLookupError(datatypes.KindStorage, word, err)
	}

	key := Key(word)
	if err := rc.store.Set(ctx, key, raw); err != nil {
		// Make room and retry once.
		if _, sweepErr := rc.SweepExpired(ctx); sweepErr != nil {
			rc.logger.Warn("cache sweep during write failed", "error", sweepErr)
		}
		cacheWriteRetries.Inc()
		if err := rc.store.Set(ctx, key, raw); err != nil {
			return datatypes.NewLookupError(datatypes.KindStorage, word, err)
		}
	}

	cacheWrites.Inc()
	return nil
}

// Evict removes the entry for word, if any.
func (rc *ResultCache) Evict(ctx context.Context, word string) error {
	return rc.store.Delete(ctx, Key(word))
}

// ClearAll removes every cache entry and returns how many went.
func (rc *ResultCache) ClearAll(ctx context.Context) (int, error) {
	keys, err := rc.store.Keys(ctx, datatypes.CachePrefix)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		if err := rc.store.Delete(ctx, key); err != nil {
			rc.logger.Warn("cache clear: delete failed", "key", key, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// ClearCorrupted removes entries whose payload no longer parses or
// validates, leaving sound entries in place.
func (rc *ResultCache) ClearCorrupted(ctx context.Context) (int, error) {
	keys, err := rc.store.Keys(ctx, datatypes.CachePrefix)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		raw, err := rc.store.Get(ctx, key)
		if err != nil {
			continue
		}

		var entry datatypes.CachedEntry
		if json.Unmarshal(raw, &entry) == nil && len(rc.validator.Validate(&entry.Data)) == 0 {
			continue
		}

		if err := rc.store.Delete(ctx, key); err != nil {
			continue
		}
		cacheEvictions.WithLabelValues("corrupt").Inc()
		removed++
	}
	return removed, nil
}

// SweepExpired removes entries past their TTL. Unparseable entries go
// too; they would never be served anyway.
func (rc *ResultCache) SweepExpired(ctx context.Context) (int, error) {
	keys, err := rc.store.Keys(ctx, datatypes.CachePrefix)
	if err != nil {
		return 0, err
	}

	now := rc.clk.Now()
	removed := 0
	for _, key := range keys {
		raw, err := rc.store.Get(ctx, key)
		if err != nil {
			continue
		}

		var entry datatypes.CachedEntry
		cause := "expired"
		if err := json.Unmarshal(raw, &entry); err != nil {
			cause = "corrupt"
		} else if !entry.ExpiredAt(now, rc.TTL()) {
			continue
		}

		if err := rc.store.Delete(ctx, key); err != nil {
			continue
		}
		cacheEvictions.WithLabelValues(cause).Inc()
		removed++
	}
	return removed, nil
}

// sameWord checks that the stored original word still identifies the
// queried word: equal normalized forms, or, when either side carries
// non-Latin runes, equal NFD folds or spelling within tolerance.
func (rc *ResultCache) sameWord(query, original string) bool {
	nq := textnorm.Normalize(query)
	no := textnorm.Normalize(original)
	if nq == no {
		return true
	}

	if textnorm.HasNonLatin(query) || textnorm.HasNonLatin(original) {
		if textnorm.Fold(nq) == textnorm.Fold(no) {
			return true
		}
		return textnorm.CloseEnough(nq, no)
	}
	return false
}

func (rc *ResultCache) evict(ctx context.Context, key, cause string) {
	if err := rc.store.Delete(ctx, key); err != nil {
		rc.logger.Warn("cache evict failed", "key", key, "error", err)
		return
	}
	cacheEvictions.WithLabelValues(cause).Inc()
}
