// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the persisted record types: cached definitions,
// the credit window, and search history entries, plus the key layout
// of the underlying key-value store.
package datatypes

import "time"

// Key layout of the local store. Cache entries live under CachePrefix
// plus the normalized word; the remaining records use fixed keys.
const (
	// CachePrefix scopes cached definitions: "etymon_cache_<normalized>".
	CachePrefix = "etymon_cache_"

	// CreditsUsedKey holds the count of credits spent in the current window.
	CreditsUsedKey = "etymon_credits_used"

	// CreditsTimestampKey holds the epoch-ms start of the current window.
	CreditsTimestampKey = "etymon_credits_timestamp"

	// HistoryKey holds the full search-history list as one JSON document.
	HistoryKey = "etymon_search_history"
)

// Operational limits for the persisted records.
const (
	// CacheTTL is how long a cached definition stays fresh. Expiry is
	// lazy: entries are only removed when read or swept.
	CacheTTL = 60 * time.Minute

	// MaxCredits is the number of upstream generations allowed per window.
	MaxCredits = 15

	// CreditsInterval is the length of one credit window.
	CreditsInterval = 6 * time.Hour

	// MaxHistoryItems caps the search-history list. Older entries are
	// dropped from the tail.
	MaxHistoryItems = 10
)

// CachedEntry is the stored form of a successful lookup.
//
// # Fields
//
//   - Data: The validated definition.
//   - Timestamp: Unix epoch milliseconds (UTC) when the entry was written.
//   - OriginalWord: The word exactly as the user typed it. Kept so reads
//     can verify the entry still belongs to the queried word after
//     normalization rules change.
type CachedEntry struct {
	Data         Definition `json:"data" validate:"required"`
	Timestamp    int64      `json:"timestamp" validate:"required,gt=0"`
	OriginalWord string     `json:"originalWord" validate:"required"`
}

// WrittenAt returns the entry's write time.
func (e *CachedEntry) WrittenAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// ExpiredAt reports whether the entry is past its TTL at the given time.
func (e *CachedEntry) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.WrittenAt()) > ttl
}

// CreditWindow is the in-memory view of the credit ledger: credits
// spent since the window started. Stored as two separate keys so the
// counter and the window start can be updated independently.
type CreditWindow struct {
	Used      int   `json:"used"`
	StartedAt int64 `json:"startedAt"` // epoch ms; 0 means no window yet
}

// HistoryEntry is one row of the search history.
//
// # Fields
//
//   - Word: The word as the user typed it (display form).
//   - Timestamp: Unix epoch milliseconds of the most recent search.
//   - Meaning: The definition's thought line, when one was available.
//   - Origin: The first part's origin, when one was available.
type HistoryEntry struct {
	Word      string `json:"word" validate:"required"`
	Timestamp int64  `json:"timestamp" validate:"required,gt=0"`
	Meaning   string `json:"meaning,omitempty"`
	Origin    string `json:"origin,omitempty"`
}

// SearchedAt returns the entry's most recent search time.
func (h *HistoryEntry) SearchedAt() time.Time {
	return time.UnixMilli(h.Timestamp)
}
