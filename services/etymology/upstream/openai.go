// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/etymonlab/etymon/pkg/logging"
	"github.com/etymonlab/etymon/services/etymology/datatypes"
	"github.com/etymonlab/etymon/services/etymology/validate"
)

const defaultOpenAIModel = "gpt-4o-mini"

// chatClient is the slice of the OpenAI client the generator needs.
// Tests substitute a scripted implementation.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIGenerator produces definitions from the OpenAI chat API with an
// internal repair loop: a response that fails validation is sent back
// to the model together with its issues, up to three model calls per
// word. If the last attempt still carries issues it is returned as a
// partial result rather than discarded.
type OpenAIGenerator struct {
	client    chatClient
	model     string
	validator *validate.Validator
	logger    *logging.Logger
	timeout   time.Duration
}

// OpenAIOption configures an OpenAIGenerator.
type OpenAIOption func(*OpenAIGenerator)

// WithModel overrides the model from OPENAI_MODEL.
func WithModel(model string) OpenAIOption {
	return func(g *OpenAIGenerator) { g.model = model }
}

// WithLogger injects a logger.
func WithLogger(l *logging.Logger) OpenAIOption {
	return func(g *OpenAIGenerator) { g.logger = l }
}

// WithChatClient substitutes the OpenAI client, bypassing the API-key
// lookup. Intended for tests.
func WithChatClient(c chatClient) OpenAIOption {
	return func(g *OpenAIGenerator) { g.client = c }
}

// WithAttemptTimeout overrides the per-attempt time budget.
func WithAttemptTimeout(d time.Duration) OpenAIOption {
	return func(g *OpenAIGenerator) { g.timeout = d }
}

// NewOpenAIGenerator creates a generator from the environment.
//
// # Description
//
// Reads OPENAI_API_KEY (falling back to the /run/secrets/openai_api_key
// file for container deployments) and OPENAI_MODEL. Fails when no key
// is available and no client was injected.
func NewOpenAIGenerator(v *validate.Validator, opts ...OpenAIOption) (*OpenAIGenerator, error) {
	g := &OpenAIGenerator{
		model:     defaultOpenAIModel,
		validator: v,
		logger:    logging.Default(),
		timeout:   AttemptTimeout,
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		g.model = model
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.client == nil {
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			if raw, err := os.ReadFile("/run/secrets/openai_api_key"); err == nil {
				apiKey = strings.TrimSpace(string(raw))
			}
		}
		if apiKey == "" {
			return nil, errors.New("upstream: OPENAI_API_KEY is not set")
		}
		g.client = openai.NewClient(apiKey)
	}
	return g, nil
}

// Generate implements Generator.
//
// # Description
//
// Runs up to three model calls. Each response is validated; a clean
// one returns immediately. A response with repairable issues is fed
// back to the model verbatim alongside the issues. When every call
// carried issues, the last response is returned with partial set, and
// the caller decides whether it is still servable.
func (g *OpenAIGenerator) Generate(ctx context.Context, word string) (*datatypes.Definition, bool, error) {
	ctx, span := tracer.Start(ctx, "OpenAIGenerator.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", g.model),
		attribute.String("etymology.word", word),
	)

	var attempts []attemptRecord
	for len(attempts) < maxModelAttempts {
		def, err := g.complete(ctx, word, attempts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, false, err
		}

		res := g.validator.ValidateForWord(def, word)
		if res.OK() {
			span.SetAttributes(attribute.Int("etymology.model_attempts", len(attempts)+1))
			return def, false, nil
		}

		issues := res.Issues
		if res.Mismatch {
			issues = append(issues, mismatchIssue(word, def))
		}
		g.logger.Warn("Definition rejected, asking model to repair",
			"word", word, "attempt", len(attempts)+1, "issues", issues)
		attempts = append(attempts, attemptRecord{output: def, issues: issues})
	}

	last := attempts[len(attempts)-1]
	span.SetAttributes(
		attribute.Int("etymology.model_attempts", len(attempts)),
		attribute.Bool("etymology.partial", true),
	)
	g.logger.Warn("Repair attempts exhausted, returning partial result",
		"word", word, "issues", last.issues)
	return last.output, true, nil
}

// complete performs one model call under the attempt budget.
func (g *OpenAIGenerator) complete(ctx context.Context, word string, attempts []attemptRecord) (*datatypes.Definition, error) {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(cctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(word, attempts)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, classifyTransport(ctx, word, err)
	}
	if len(resp.Choices) == 0 {
		return nil, datatypes.NewLookupError(datatypes.KindUpstream, word,
			errors.New("completion returned no choices"))
	}

	var def datatypes.Definition
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &def); err != nil {
		return nil, datatypes.NewLookupError(datatypes.KindUpstream, word,
			fmt.Errorf("unparseable completion: %w", err))
	}
	return &def, nil
}

// mismatchIssue phrases a word-identity failure as a repair
// instruction, so the model gets one chance to fix it before the
// mismatch becomes terminal downstream.
func mismatchIssue(word string, def *datatypes.Definition) string {
	final := def.FinalCombination()
	if final == nil {
		return fmt.Sprintf("The result does not analyze the input word %q.", word)
	}
	return fmt.Sprintf("The final combination %q does not match the input word %q.", final.Text, word)
}
