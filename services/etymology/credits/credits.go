// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package credits rate-limits upstream generations: 15 per rolling
// six-hour window. The window resets lazily. No timer runs; the first
// read after the window elapses zeroes the counter and stamps a new
// window start.
//
// The limit is a soft, single-process one. Concurrent processes
// sharing a store may each read-then-write and overspend by a few
// credits, which is accepted: the ledger protects an upstream budget,
// not an invariant.
package credits

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/etymonlab/etymon/services/etymology/clock"
	"github.com/etymonlab/etymon/services/etymology/datatypes"
	"github.com/etymonlab/etymon/services/etymology/storage"
)

// Ledger tracks credit spend against the rolling window.
//
// Thread Safety: safe for concurrent use when the Store is; see the
// package comment for the cross-process caveat.
type Ledger struct {
	store storage.Store
	clk   clock.Clock

	mu       sync.RWMutex
	max      int
	interval time.Duration
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock injects a time source for window tests.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) { l.clk = c }
}

// WithLimits overrides the default 15-per-6h budget.
func WithLimits(max int, interval time.Duration) Option {
	return func(l *Ledger) {
		l.max = max
		l.interval = interval
	}
}

// NewLedger creates a Ledger over the given store.
func NewLedger(store storage.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		clk:      clock.System(),
		max:      datatypes.MaxCredits,
		interval: datatypes.CreditsInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Max returns the per-window credit budget.
func (l *Ledger) Max() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.max
}

// SetLimits changes the budget and window for subsequent reads. The
// current window keeps its anchor; only the bounds move.
func (l *Ledger) SetLimits(max int, interval time.Duration) {
	l.mu.Lock()
	l.max = max
	l.interval = interval
	l.mu.Unlock()
}

func (l *Ledger) limits() (int, time.Duration) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.max, l.interval
}

// Used returns the credits spent in the current window, performing the
// lazy reset when the window has elapsed.
//
// # Outputs
//
//   - int: Credits spent since the window started. 0 right after a reset.
//   - error: Storage failure; the count is unusable.
func (l *Ledger) Used(ctx context.Context) (int, error) {
	startedAt, err := l.readInt(ctx, datatypes.CreditsTimestampKey)
	if err != nil {
		return 0, err
	}

	_, interval := l.limits()
	now := l.clk.Now()
	if now.Sub(time.UnixMilli(startedAt)) >= interval {
		// New window: zero the counter and stamp the start.
		if err := l.writeInt(ctx, datatypes.CreditsUsedKey, 0); err != nil {
			return 0, err
		}
		if err := l.writeInt(ctx, datatypes.CreditsTimestampKey, now.UnixMilli()); err != nil {
			return 0, err
		}
		return 0, nil
	}

	used, err := l.readInt(ctx, datatypes.CreditsUsedKey)
	return int(used), err
}

// Remaining returns how many credits are left in the window.
func (l *Ledger) Remaining(ctx context.Context) (int, error) {
	used, err := l.Used(ctx)
	if err != nil {
		return 0, err
	}
	remaining := l.Max() - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Available reports whether at least one credit is left.
func (l *Ledger) Available(ctx context.Context) (bool, error) {
	used, err := l.Used(ctx)
	if err != nil {
		return false, err
	}
	return used < l.Max(), nil
}

// Increment spends one credit.
//
// The window start is not refreshed: the window is anchored at its
// first read, so steady use cannot postpone the reset forever.
func (l *Ledger) Increment(ctx context.Context) error {
	used, err := l.Used(ctx)
	if err != nil {
		return err
	}
	if err := l.writeInt(ctx, datatypes.CreditsUsedKey, int64(used)+1); err != nil {
		return err
	}
	return nil
}

// TimeUntilReset returns how long until the current window elapses.
// Zero when the window has already elapsed.
func (l *Ledger) TimeUntilReset(ctx context.Context) (time.Duration, error) {
	startedAt, err := l.readInt(ctx, datatypes.CreditsTimestampKey)
	if err != nil {
		return 0, err
	}

	_, interval := l.limits()
	left := interval - l.clk.Now().Sub(time.UnixMilli(startedAt))
	if left < 0 {
		left = 0
	}
	return left, nil
}

// HoursUntilReset returns the ceiling of TimeUntilReset in hours, the
// granularity user messaging works in ("try again in ~2 hours").
func (l *Ledger) HoursUntilReset(ctx context.Context) (int, error) {
	left, err := l.TimeUntilReset(ctx)
	if err != nil {
		return 0, err
	}
	hours := int(left / time.Hour)
	if left%time.Hour > 0 {
		hours++
	}
	return hours, nil
}

// readInt reads a decimal value, treating an absent key as zero the
// way the original localStorage records did.
func (l *Ledger) readInt(ctx context.Context, key string) (int64, error) {
	raw, err := l.store.Get(ctx, key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, datatypes.NewLookupError(datatypes.KindStorage, "", err)
	}

	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		// Unparseable counter: treat as zero rather than wedging lookups.
		return 0, nil
	}
	return v, nil
}

func (l *Ledger) writeInt(ctx context.Context, key string, v int64) error {
	if err := l.store.Set(ctx, key, []byte(strconv.FormatInt(v, 10))); err != nil {
		return datatypes.NewLookupError(datatypes.KindStorage, "", err)
	}
	return nil
}
