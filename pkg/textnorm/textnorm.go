// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package textnorm provides the normalization and similarity primitives the
// etymology pipeline is built on: word normalization for cache keys and
// comparisons, script-class detection, Levenshtein distance, and Unicode
// NFD folding for accent-insensitive matching.
//
// All functions are pure and safe for concurrent use.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a word for keying and comparison.
//
// # Description
//
// Lowercases, trims, and strips every rune that is not a Unicode letter or
// number (which removes internal whitespace and punctuation). The result is
// stable: Normalize(Normalize(s)) == Normalize(s).
//
// # Inputs
//
//   - word: Raw user input. May contain mixed case, whitespace, punctuation.
//
// # Outputs
//
//   - string: The normalized form. Empty if the input had no letters/numbers.
func Normalize(word string) string {
	lowered := strings.ToLower(strings.TrimSpace(word))

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HasNonLatin reports whether s contains any rune outside the basic Latin
// range (0x00-0x7F). Used to decide when the strict spelling checks must be
// relaxed: the upstream model may legitimately answer an English query with
// the original Greek, Cyrillic, or Arabic spelling.
func HasNonLatin(s string) bool {
	for _, r := range s {
		if r > 0x7F {
			return true
		}
	}
	return false
}

// Fold returns the NFD (canonical decomposition) form of s.
//
// Two strings that differ only by precomposed vs. combining accents fold to
// the same byte sequence, so Fold(a) == Fold(b) detects accent-only
// spelling variants.
func Fold(s string) string {
	return norm.NFD.String(s)
}

// EditDistance computes the Levenshtein distance between a and b in runes.
//
// # Description
//
// Classic dynamic-programming edit distance with unit costs for insert,
// delete, and substitute. Symmetric, zero iff a == b, and satisfies the
// triangle inequality.
//
// # Inputs
//
//   - a, b: The strings to compare. Compared rune-wise, not byte-wise.
//
// # Outputs
//
//   - int: The minimum number of single-rune edits transforming a into b.
func EditDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for j := 0; j <= len(ra); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(rb); i++ {
		curr[0] = i
		for j := 1; j <= len(ra); j++ {
			cost := 1
			if ra[j-1] == rb[i-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(ra)]
}

// CloseEnough reports whether two normalized strings are within the spelling
// tolerance: an edit distance of at most 20% of the longer string's length,
// with a floor of one edit. The 20% tolerance balances false accepts against
// rejecting legitimate spelling and transliteration variants.
func CloseEnough(a, b string) bool {
	if a == b {
		return true
	}
	maxLen := len([]rune(a))
	if lb := len([]rune(b)); lb > maxLen {
		maxLen = lb
	}
	threshold := maxLen / 5
	if threshold < 1 {
		threshold = 1
	}
	return EditDistance(a, b) <= threshold
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
