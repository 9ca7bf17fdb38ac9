// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package mismatch decides whether an upstream response actually
// analyzes the word the user asked about. Language models confuse
// similar words often enough that accepting a response on faith would
// poison the cache and the history with wrong etymologies.
package mismatch

import (
	"strings"

	"github.com/etymonlab/etymon/pkg/textnorm"
)

// IsMismatch reports whether the response's final word refers to a
// different word than the query.
//
// # Description
//
// Applies a ladder of increasingly lenient checks, short-circuiting at
// the first acceptance:
//
//  1. Exact match of the normalized forms.
//  2. Containment either way ("run" vs "running").
//  3. For non-Latin response words, the model legitimately answers an
//     English query with the original script; accept when the thought
//     line mentions the normalized query.
//  4. NFD folding, so precomposed and combining accents compare equal.
//  5. Edit distance within max(1, 20% of the longer length), covering
//     spelling variants and transliteration drift.
//
// Only a response failing every rung is a mismatch.
//
// # Inputs
//
//   - query: The word the user submitted, raw form.
//   - final: The response's final combination text.
//   - thought: The response's reasoning line, consulted on rung 3.
//
// # Outputs
//
//   - bool: true when the response is about a different word.
func IsMismatch(query, final, thought string) bool {
	nq := textnorm.Normalize(query)
	nf := textnorm.Normalize(final)

	if nf == nq {
		return false
	}

	if strings.Contains(nf, nq) || strings.Contains(nq, nf) {
		return false
	}

	if textnorm.HasNonLatin(final) && strings.Contains(strings.ToLower(thought), nq) {
		return false
	}

	if textnorm.Fold(nq) == textnorm.Fold(nf) {
		return false
	}

	return !textnorm.CloseEnough(nq, nf)
}
