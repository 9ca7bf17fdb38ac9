// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/etymonlab/etymon/services/etymology/datatypes"
)

// HTTPGenerator delegates generation to a remote etymology service:
// POST {endpoint} with {"word": ...}. The remote runs its own repair
// loop and answers 200 for a clean result or 203 for a best-effort
// partial one.
//
// A client-side rate limiter paces requests so a burst of lookups
// cannot hammer the remote; the remote's own quota still applies.
type HTTPGenerator struct {
	client   *http.Client
	endpoint string
	limiter  *rate.Limiter
}

// HTTPOption configures an HTTPGenerator.
type HTTPOption func(*HTTPGenerator)

// WithHTTPClient substitutes the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(g *HTTPGenerator) { g.client = c }
}

// WithRateLimit overrides the default pacing of one request per second
// with a burst of three.
func WithRateLimit(r rate.Limit, burst int) HTTPOption {
	return func(g *HTTPGenerator) { g.limiter = rate.NewLimiter(r, burst) }
}

// NewHTTPGenerator creates a generator targeting the given endpoint.
func NewHTTPGenerator(endpoint string, opts ...HTTPOption) *HTTPGenerator {
	g := &HTTPGenerator{
		client:   &http.Client{Timeout: AttemptTimeout},
		endpoint: endpoint,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 3),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type generateRequest struct {
	Word string `json:"word"`
}

type generateError struct {
	Error string `json:"error"`
}

// Generate implements Generator.
func (g *HTTPGenerator) Generate(ctx context.Context, word string) (*datatypes.Definition, bool, error) {
	ctx, span := tracer.Start(ctx, "HTTPGenerator.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("etymology.word", word))

	def, partial, err := g.generate(ctx, word)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	span.SetAttributes(attribute.Bool("etymology.partial", partial))
	return def, partial, nil
}

func (g *HTTPGenerator) generate(ctx context.Context, word string) (*datatypes.Definition, bool, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, false, classifyTransport(ctx, word, err)
	}

	body, err := json.Marshal(generateRequest{Word: word})
	if err != nil {
		return nil, false, datatypes.NewLookupError(datatypes.KindUpstream, word, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, datatypes.NewLookupError(datatypes.KindUpstream, word, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, false, classifyTransport(ctx, word, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, false, classifyTransport(ctx, word, err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNonAuthoritativeInfo:
		var def datatypes.Definition
		if err := json.Unmarshal(raw, &def); err != nil {
			return nil, false, datatypes.NewLookupError(datatypes.KindUpstream, word,
				fmt.Errorf("unparseable response: %w", err))
		}
		return &def, resp.StatusCode == http.StatusNonAuthoritativeInfo, nil
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return nil, false, datatypes.NewLookupError(datatypes.KindTimeout, word,
			fmt.Errorf("remote timed out: %s", remoteMessage(raw, resp.StatusCode)))
	case http.StatusTooManyRequests:
		return nil, false, datatypes.NewLookupError(datatypes.KindRateLimited, word,
			fmt.Errorf("remote rate limit: %s", remoteMessage(raw, resp.StatusCode)))
	default:
		return nil, false, datatypes.NewLookupError(datatypes.KindUpstream, word,
			fmt.Errorf("remote returned %d: %s", resp.StatusCode, remoteMessage(raw, resp.StatusCode)))
	}
}

// remoteMessage pulls the error field from a JSON error body, falling
// back to the status text.
func remoteMessage(raw []byte, status int) string {
	var e generateError
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return http.StatusText(status)
}
