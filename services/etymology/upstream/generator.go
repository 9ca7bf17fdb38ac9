// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package upstream produces definitions: either directly from an LLM
// with an internal generate-validate-repair loop, or by delegating to
// a remote generation service over HTTP.
package upstream

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/etymonlab/etymon/services/etymology/datatypes"
)

var tracer = otel.Tracer("etymon.upstream")

// AttemptTimeout is the time budget for one generation attempt.
// Exceeding it maps to the timeout kind, which the orchestrator does
// not retry: a word that blew the budget once will blow it again.
const AttemptTimeout = 30 * time.Second

// maxModelAttempts bounds the internal repair loop: one initial
// generation plus two repair rounds.
const maxModelAttempts = 3

// Generator produces a definition for a word.
//
// # Outputs
//
//   - *datatypes.Definition: The generated definition.
//   - bool: true when the result is best-effort partial: every repair
//     attempt still carried validation issues and the last output is
//     returned anyway.
//   - error: A LookupError classifying the failure.
type Generator interface {
	Generate(ctx context.Context, word string) (*datatypes.Definition, bool, error)
}

// classifyTransport maps a transport-level failure onto the error
// taxonomy: deadline to timeout, cancellation to canceled, everything
// else to upstream.
func classifyTransport(ctx context.Context, word string, err error) *datatypes.LookupError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return datatypes.NewLookupError(datatypes.KindTimeout, word, err)
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return datatypes.NewLookupError(datatypes.KindCanceled, word, err)
	default:
		return datatypes.NewLookupError(datatypes.KindUpstream, word, err)
	}
}
