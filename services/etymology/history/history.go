// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package history records recent searches: newest first, capped at
// ten, deduplicated by normalized word. A repeat search moves the word
// to the front rather than adding a second row.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/etymonlab/etymon/pkg/textnorm"
	"github.com/etymonlab/etymon/services/etymology/clock"
	"github.com/etymonlab/etymon/services/etymology/datatypes"
	"github.com/etymonlab/etymon/services/etymology/storage"
)

// Age buckets for grouped display, newest bucket first.
const (
	BucketToday     = "Today"
	BucketYesterday = "Yesterday"
	BucketThisWeek  = "This Week"
	BucketThisMonth = "This Month"
	BucketEarlier   = "Earlier"
)

// BucketOrder lists the buckets in display order.
var BucketOrder = []string{
	BucketToday, BucketYesterday, BucketThisWeek, BucketThisMonth, BucketEarlier,
}

// Recorder maintains the search-history list in the store.
//
// Thread Safety: Record performs a read-modify-write on a single key;
// concurrent recorders may lose one of two simultaneous updates. One
// recorder per process is the intended shape.
type Recorder struct {
	store storage.Store
	clk   clock.Clock
	cap   int
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock injects a time source for bucket tests.
func WithClock(c clock.Clock) Option {
	return func(r *Recorder) { r.clk = c }
}

// WithCap overrides the default ten-entry cap.
func WithCap(n int) Option {
	return func(r *Recorder) { r.cap = n }
}

// NewRecorder creates a Recorder over the given store.
func NewRecorder(store storage.Store, opts ...Option) *Recorder {
	r := &Recorder{
		store: store,
		clk:   clock.System(),
		cap:   datatypes.MaxHistoryItems,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record upserts a search into the history.
//
// # Description
//
// The word keeps its display form but deduplicates by normalized
// form: an existing row for the same word is removed and the new row
// prepended. With a definition, the row carries the thought line and
// root origin; without one, an existing row's meaning and origin carry
// over so a cache-miss search doesn't erase what we knew. The list is
// truncated to the cap after the prepend.
//
// # Inputs
//
//   - ctx: Cancellation.
//   - word: The word as the user typed it.
//   - def: The accepted definition, or nil when none is available.
func (r *Recorder) Record(ctx context.Context, word string, def *datatypes.Definition) error {
	entries, err := r.List(ctx)
	if err != nil {
		return err
	}

	normalized := textnorm.Normalize(word)
	entry := datatypes.HistoryEntry{
		Word:      word,
		Timestamp: r.clk.Now().UnixMilli(),
	}
	if def != nil {
		entry.Meaning = def.Thought
		entry.Origin = def.RootOrigin()
	}

	kept := make([]datatypes.HistoryEntry, 0, len(entries)+1)
	for _, existing := range entries {
		if textnorm.Normalize(existing.Word) == normalized {
			if def == nil {
				entry.Meaning = existing.Meaning
				entry.Origin = existing.Origin
			}
			continue
		}
		kept = append(kept, existing)
	}

	updated := append([]datatypes.HistoryEntry{entry}, kept...)
	if len(updated) > r.cap {
		updated = updated[:r.cap]
	}

	raw, err := json.Marshal(updated)
	if err != nil {
		return datatypes.NewLookupError(datatypes.KindStorage, word, err)
	}
	if err := r.store.Set(ctx, datatypes.HistoryKey, raw); err != nil {
		return datatypes.NewLookupError(datatypes.KindStorage, word, err)
	}
	return nil
}

// List returns the history, newest first. An absent or unparseable
// record reads as empty.
func (r *Recorder) List(ctx context.Context) ([]datatypes.HistoryEntry, error) {
	raw, err := r.store.Get(ctx, datatypes.HistoryKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, datatypes.NewLookupError(datatypes.KindStorage, "", err)
	}

	var entries []datatypes.HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil
	}
	return entries, nil
}

// Clear removes the history record entirely.
func (r *Recorder) Clear(ctx context.Context) error {
	return r.store.Delete(ctx, datatypes.HistoryKey)
}

// GroupByAge buckets entries by how long ago they were searched,
// computed against the recorder's clock at call time.
//
// Buckets: today, yesterday, the past seven days, the past month,
// and everything earlier. Entry order within a bucket is preserved.
func (r *Recorder) GroupByAge(entries []datatypes.HistoryEntry) map[string][]datatypes.HistoryEntry {
	groups := map[string][]datatypes.HistoryEntry{
		BucketToday:     {},
		BucketYesterday: {},
		BucketThisWeek:  {},
		BucketThisMonth: {},
		BucketEarlier:   {},
	}

	now := r.clk.Now()
	today := midnight(now)
	yesterday := today.AddDate(0, 0, -1)
	weekAgo := today.AddDate(0, 0, -7)
	monthAgo := today.AddDate(0, -1, 0)

	for _, entry := range entries {
		at := entry.SearchedAt()
		switch {
		case !at.Before(today):
			groups[BucketToday] = append(groups[BucketToday], entry)
		case !at.Before(yesterday):
			groups[BucketYesterday] = append(groups[BucketYesterday], entry)
		case !at.Before(weekAgo):
			groups[BucketThisWeek] = append(groups[BucketThisWeek], entry)
		case !at.Before(monthAgo):
			groups[BucketThisMonth] = append(groups[BucketThisMonth], entry)
		default:
			groups[BucketEarlier] = append(groups[BucketEarlier], entry)
		}
	}
	return groups
}

// midnight returns the start of t's day in its location.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
