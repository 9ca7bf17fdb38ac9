// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the closed error taxonomy for lookups. Retry
// decisions are driven by the Kind field, never by matching message
// substrings.
package datatypes

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a lookup failure. The set is closed: every
// failure surfaced by the pipeline carries exactly one kind, and the
// kind alone decides whether the orchestrator may retry.
type ErrorKind string

const (
	// KindStructural means the upstream response failed schema or DAG
	// validation. Retriable: the model may produce a sound answer on
	// another attempt.
	KindStructural ErrorKind = "structural"

	// KindMismatch means the response analyzes a different word than
	// the one queried. Not retriable: repeating the same query tends to
	// reproduce the same confusion.
	KindMismatch ErrorKind = "mismatch"

	// KindRateLimited means the credit window is exhausted. Not
	// retriable within the window.
	KindRateLimited ErrorKind = "rate_limited"

	// KindTimeout means the attempt exceeded its time budget. Not
	// retriable: another attempt would likely exceed it too.
	KindTimeout ErrorKind = "timeout"

	// KindUpstream means the generation backend failed (transport
	// error, 5xx, malformed payload). Retriable.
	KindUpstream ErrorKind = "upstream"

	// KindStorage means the local store failed. Recovered locally where
	// possible; surfaces only when the lookup cannot proceed at all.
	KindStorage ErrorKind = "storage"

	// KindCanceled means the caller abandoned the lookup. Not retriable.
	KindCanceled ErrorKind = "canceled"
)

// Retriable reports whether the orchestrator may re-attempt after a
// failure of this kind.
func (k ErrorKind) Retriable() bool {
	switch k {
	case KindStructural, KindUpstream:
		return true
	default:
		return false
	}
}

// LookupError is the error type every stage of the lookup pipeline
// returns. It carries the classification, the queried word, and the
// attempt number for log correlation.
type LookupError struct {
	Kind    ErrorKind
	Word    string
	Attempt int // 1-based attempt the failure occurred on; 0 if N/A
	Err     error
}

// NewLookupError wraps err with a kind and word.
func NewLookupError(kind ErrorKind, word string, err error) *LookupError {
	return &LookupError{Kind: kind, Word: word, Err: err}
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: word %q: %v", e.Kind, e.Word, e.Err)
	}
	return fmt.Sprintf("%s: word %q", e.Kind, e.Word)
}

// Unwrap returns the wrapped cause, enabling errors.Is/As chains.
func (e *LookupError) Unwrap() error {
	return e.Err
}

// Retriable reports whether the orchestrator may re-attempt.
func (e *LookupError) Retriable() bool {
	return e.Kind.Retriable()
}

// KindOf extracts the ErrorKind from an error chain. Errors that do
// not carry a LookupError classify as KindUpstream, the conservative
// retriable default.
func KindOf(err error) ErrorKind {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUpstream
}
