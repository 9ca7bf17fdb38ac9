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
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etymonlab/etymon/services/etymology/datatypes"
	"github.com/etymonlab/etymon/services/etymology/validate"
)

// scriptedChat replays canned responses and records every request.
type scriptedChat struct {
	responses []string
	errs      []error
	requests  []openai.ChatCompletionRequest
}

func (s *scriptedChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	if idx < len(s.errs) && s.errs[idx] != nil {
		return openai.ChatCompletionResponse{}, s.errs[idx]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.responses[idx]}},
		},
	}, nil
}

func validTestDef() *datatypes.Definition {
	return &datatypes.Definition{
		Thought: "Test traces to Latin testum, an earthen vessel used for assaying.",
		Parts: []datatypes.Part{
			{ID: "testum", Text: "test", OriginalWord: "testum", Origin: "Latin", Meaning: "earthen pot"},
		},
		Combinations: [][]datatypes.Combination{
			{
				{ID: "test_final", Text: "test", Definition: "a trial or assay", SourceIDs: []string{"testum"}},
			},
		},
		SimilarWords: []datatypes.SimilarWord{
			{Word: "testify", Explanation: "to bear witness", SharedOrigin: "Latin testis"},
		},
	}
}

// brokenTestDef has two entries in its final layer, a repairable
// structural problem.
func brokenTestDef() *datatypes.Definition {
	def := validTestDef()
	def.Parts = []datatypes.Part{
		{ID: "te", Text: "te", OriginalWord: "te", Origin: "Latin", Meaning: "a"},
		{ID: "st", Text: "st", OriginalWord: "st", Origin: "Latin", Meaning: "b"},
	}
	def.Combinations = [][]datatypes.Combination{
		{
			{ID: "c1", Text: "te", Definition: "x", SourceIDs: []string{"te"}},
			{ID: "c2", Text: "st", Definition: "y", SourceIDs: []string{"st"}},
		},
	}
	return def
}

func mustJSON(t *testing.T, def *datatypes.Definition) string {
	t.Helper()
	raw, err := json.Marshal(def)
	require.NoError(t, err)
	return string(raw)
}

func newScriptedGenerator(t *testing.T, chat *scriptedChat) *OpenAIGenerator {
	t.Helper()
	g, err := NewOpenAIGenerator(validate.New(), WithChatClient(chat), WithModel("scripted"))
	require.NoError(t, err)
	return g
}

func TestOpenAIGenerator_CleanFirstAttempt(t *testing.T) {
	chat := &scriptedChat{responses: []string{mustJSON(t, validTestDef())}}
	g := newScriptedGenerator(t, chat)

	def, partial, err := g.Generate(context.Background(), "test")
	require.NoError(t, err)
	assert.False(t, partial)
	assert.Equal(t, *validTestDef(), *def)

	require.Len(t, chat.requests, 1)
	req := chat.requests[0]
	assert.Equal(t, "scripted", req.Model)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "Deconstruct the word: test", req.Messages[1].Content)
}

func TestOpenAIGenerator_RepairLoopFeedsIssuesBack(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		mustJSON(t, brokenTestDef()),
		mustJSON(t, validTestDef()),
	}}
	g := newScriptedGenerator(t, chat)

	def, partial, err := g.Generate(context.Background(), "test")
	require.NoError(t, err)
	assert.False(t, partial)
	assert.Equal(t, *validTestDef(), *def)

	require.Len(t, chat.requests, 2)
	repair := chat.requests[1].Messages[1].Content
	assert.Contains(t, repair, "Previous attempts:")
	assert.Contains(t, repair, "Attempt 1:")
	assert.Contains(t, repair, "The last layer should have exactly one item")
	assert.Contains(t, repair, "Please fix all the issues and try again.")
}

func TestOpenAIGenerator_PartialAfterExhaustion(t *testing.T) {
	broken := mustJSON(t, brokenTestDef())
	chat := &scriptedChat{responses: []string{broken, broken, broken}}
	g := newScriptedGenerator(t, chat)

	def, partial, err := g.Generate(context.Background(), "test")
	require.NoError(t, err)
	assert.True(t, partial)
	require.NotNil(t, def)
	assert.Len(t, chat.requests, maxModelAttempts)
}

func TestOpenAIGenerator_MismatchFedBackAsIssue(t *testing.T) {
	wrong := validTestDef()
	wrong.Thought = "Toast traces to Latin tostum."
	wrong.Parts[0].Text = "test"
	wrong.Combinations[0][0].Text = "toast"

	chat := &scriptedChat{responses: []string{
		mustJSON(t, wrong),
		mustJSON(t, validTestDef()),
	}}
	g := newScriptedGenerator(t, chat)

	def, partial, err := g.Generate(context.Background(), "test")
	require.NoError(t, err)
	assert.False(t, partial)
	assert.Equal(t, *validTestDef(), *def)

	require.Len(t, chat.requests, 2)
	assert.Contains(t, chat.requests[1].Messages[1].Content,
		fmt.Sprintf("The final combination %q does not match the input word %q.", "toast", "test"))
}

func TestOpenAIGenerator_TransportError(t *testing.T) {
	chat := &scriptedChat{errs: []error{errors.New("connection refused")}}
	g := newScriptedGenerator(t, chat)

	_, _, err := g.Generate(context.Background(), "test")
	require.Error(t, err)
	assert.Equal(t, datatypes.KindUpstream, datatypes.KindOf(err))
}

func TestOpenAIGenerator_DeadlineMapsToTimeout(t *testing.T) {
	chat := &scriptedChat{errs: []error{fmt.Errorf("call: %w", context.DeadlineExceeded)}}
	g := newScriptedGenerator(t, chat)

	_, _, err := g.Generate(context.Background(), "test")
	require.Error(t, err)
	assert.Equal(t, datatypes.KindTimeout, datatypes.KindOf(err))
}

func TestOpenAIGenerator_CanceledContext(t *testing.T) {
	chat := &scriptedChat{errs: []error{context.Canceled}}
	g := newScriptedGenerator(t, chat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := g.Generate(ctx, "test")
	require.Error(t, err)
	assert.Equal(t, datatypes.KindCanceled, datatypes.KindOf(err))
}

func TestOpenAIGenerator_UnparseableCompletion(t *testing.T) {
	chat := &scriptedChat{responses: []string{"not json at all"}}
	g := newScriptedGenerator(t, chat)

	_, _, err := g.Generate(context.Background(), "test")
	require.Error(t, err)
	assert.Equal(t, datatypes.KindUpstream, datatypes.KindOf(err))
	assert.Contains(t, err.Error(), "unparseable completion")
}

func TestBuildPrompt_FirstAttemptIsBare(t *testing.T) {
	prompt := buildPrompt("philosophy", nil)
	assert.Equal(t, "Deconstruct the word: philosophy", prompt)
}

func TestBuildPrompt_ReplaysEveryAttempt(t *testing.T) {
	attempts := []attemptRecord{
		{output: brokenTestDef(), issues: []string{"first issue"}},
		{output: brokenTestDef(), issues: []string{"second issue", "third issue"}},
	}
	prompt := buildPrompt("test", attempts)

	assert.True(t, strings.HasPrefix(prompt, "Deconstruct the word: test"))
	assert.Contains(t, prompt, "Attempt 1:")
	assert.Contains(t, prompt, "Attempt 2:")
	assert.Contains(t, prompt, "- first issue")
	assert.Contains(t, prompt, "- second issue")
	assert.Contains(t, prompt, "- third issue")
}
