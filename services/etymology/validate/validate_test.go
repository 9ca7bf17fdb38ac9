// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etymonlab/etymon/services/etymology/datatypes"
)

// philosophyDef builds the canonical two-part definition used across
// these tests: philo + sophy merging into philosophy.
func philosophyDef() *datatypes.Definition {
	return &datatypes.Definition{
		Thought: "Philosophy traces to Ancient Greek philosophia, love of wisdom.",
		Parts: []datatypes.Part{
			{ID: "philo", Text: "philo", OriginalWord: "φίλος", Origin: "Ancient Greek", Meaning: "loving"},
			{ID: "sophy", Text: "sophy", OriginalWord: "σοφία", Origin: "Ancient Greek", Meaning: "wisdom"},
		},
		Combinations: [][]datatypes.Combination{
			{
				{ID: "philosophia", Text: "philosophy", Definition: "love of wisdom", SourceIDs: []string{"philo", "sophy"}},
			},
		},
		SimilarWords: []datatypes.SimilarWord{
			{Word: "philology", Explanation: "love of words", SharedOrigin: "Greek philos"},
		},
	}
}

// layeredDef builds a three-layer DAG: un + break + able, with
// "unbreak" merged first and "unbreakable" on top.
func layeredDef() *datatypes.Definition {
	return &datatypes.Definition{
		Thought: "unbreakable combines un-, break, and -able",
		Parts: []datatypes.Part{
			{ID: "un", Text: "un", OriginalWord: "un-", Origin: "Old English", Meaning: "not"},
			{ID: "break", Text: "break", OriginalWord: "brecan", Origin: "Old English", Meaning: "to shatter"},
			{ID: "able", Text: "able", OriginalWord: "habilis", Origin: "Latin", Meaning: "capable of"},
		},
		Combinations: [][]datatypes.Combination{
			{
				{ID: "unbreak", Text: "unbreak", Definition: "not break", SourceIDs: []string{"un", "break"}},
			},
			{
				{ID: "unbreakable", Text: "unbreakable", Definition: "cannot be broken", SourceIDs: []string{"unbreak", "able"}},
			},
		},
		SimilarWords: []datatypes.SimilarWord{
			{Word: "capable", Explanation: "from the same Latin suffix family", SharedOrigin: "Latin habilis"},
		},
	}
}

func TestValidate_SoundDefinitions(t *testing.T) {
	v := New()
	assert.Empty(t, v.Validate(philosophyDef()))
	assert.Empty(t, v.Validate(layeredDef()))
}

func TestValidate_StructuralFailureShortCircuits(t *testing.T) {
	v := New()
	def := philosophyDef()
	def.Thought = ""

	issues := v.Validate(def)
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0], "Thought")
}

func TestValidate_DuplicateIDs(t *testing.T) {
	v := New()

	t.Run("combination reuses part id", func(t *testing.T) {
		def := philosophyDef()
		def.Combinations[0][0].ID = "philo"
		issues := v.Validate(def)
		require.Len(t, issues, 1)
		assert.Contains(t, issues[0], `ID "philo"`)
		assert.Contains(t, issues[0], "already used in parts")
	})

	t.Run("duplicate part ids", func(t *testing.T) {
		def := philosophyDef()
		def.Parts[1].ID = "philo"
		def.Combinations[0][0].SourceIDs = []string{"philo"}
		issues := v.Validate(def)
		assert.NotEmpty(t, issues)
	})
}

func TestValidate_FinalLayerMustHoldOneEntry(t *testing.T) {
	v := New()
	def := layeredDef()

	// Flatten into one layer with two entries: no single final word.
	def.Combinations = [][]datatypes.Combination{
		{
			{ID: "unbreak", Text: "unbreak", Definition: "not break", SourceIDs: []string{"un", "break"}},
			{ID: "ablepart", Text: "able", Definition: "capable", SourceIDs: []string{"able"}},
		},
	}

	issues := v.Validate(def)
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0], "exactly one item")
}

func TestValidate_ForwardReferenceRejected(t *testing.T) {
	v := New()
	def := layeredDef()

	// unbreak now references unbreakable, which lives in a later layer.
	def.Combinations[0][0].SourceIDs = []string{"un", "unbreakable"}
	def.Combinations[1][0].SourceIDs = []string{"unbreak", "break", "able"}

	issues := v.Validate(def)
	found := false
	for _, issue := range issues {
		if containsAll(issue, `"unbreakable"`, "does not exist in previous layers") {
			found = true
		}
	}
	assert.True(t, found, "expected forward-reference issue, got %v", issues)
}

func TestValidate_SameLayerReferenceRejected(t *testing.T) {
	v := New()
	def := layeredDef()

	// Move unbreakable into the first layer alongside its source.
	def.Combinations = [][]datatypes.Combination{
		{
			{ID: "unbreak", Text: "unbreak", Definition: "not break", SourceIDs: []string{"un", "break"}},
		},
		{
			{ID: "breakable", Text: "breakable", Definition: "can break", SourceIDs: []string{"able"}},
			{ID: "unbreakable", Text: "unbreakable", Definition: "cannot be broken", SourceIDs: []string{"unbreak", "breakable"}},
		},
		{
			{ID: "final", Text: "unbreakable", Definition: "cannot be broken", SourceIDs: []string{"unbreakable"}},
		},
	}

	issues := v.Validate(def)
	found := false
	for _, issue := range issues {
		if containsAll(issue, `"breakable"`, "does not exist in previous layers") {
			found = true
		}
	}
	assert.True(t, found, "expected same-layer reference issue, got %v", issues)
}

func TestValidate_SingleConsumer(t *testing.T) {
	v := New()

	t.Run("orphan node", func(t *testing.T) {
		def := layeredDef()
		// able is never consumed.
		def.Combinations[1][0].SourceIDs = []string{"unbreak"}
		issues := v.Validate(def)
		found := false
		for _, issue := range issues {
			if containsAll(issue, `"able"`, "not used as a source") {
				found = true
			}
		}
		assert.True(t, found, "expected orphan issue, got %v", issues)
	})

	t.Run("double consumption", func(t *testing.T) {
		def := layeredDef()
		// un is consumed by both layers.
		def.Combinations[1][0].SourceIDs = []string{"unbreak", "able", "un"}
		issues := v.Validate(def)
		found := false
		for _, issue := range issues {
			if containsAll(issue, `"un"`, "used 2 times") {
				found = true
			}
		}
		assert.True(t, found, "expected double-consumption issue, got %v", issues)
	})
}

func TestValidateForWord_Accepts(t *testing.T) {
	v := New()
	res := v.ValidateForWord(philosophyDef(), "philosophy")
	assert.True(t, res.OK(), "issues: %v", res.Issues)

	res = v.ValidateForWord(layeredDef(), "Unbreakable")
	assert.True(t, res.OK(), "issues: %v", res.Issues)
}

func TestValidateForWord_PartsMustSpellWord(t *testing.T) {
	v := New()
	def := philosophyDef()
	def.Parts[1].Text = "sophia"

	res := v.ValidateForWord(def, "philosophy")
	require.NotEmpty(t, res.Issues)
	assert.Contains(t, res.Issues[0], "do not combine to form")
}

func TestValidateForWord_PartsRuleWaivedForNonLatin(t *testing.T) {
	v := New()
	def := philosophyDef()
	// Greek-script decomposition of an English query.
	def.Parts[0].Text = "Φιλο"
	def.Parts[1].Text = "σοφία"
	def.Combinations[0][0].Text = "Φιλοσοφία"

	res := v.ValidateForWord(def, "philosophy")
	assert.True(t, res.OK(), "issues: %v", res.Issues)
}

func TestValidateForWord_NonLatinFinalNeedsThoughtMention(t *testing.T) {
	v := New()
	def := philosophyDef()
	def.Parts[0].Text = "Φιλο"
	def.Parts[1].Text = "σοφία"
	def.Combinations[0][0].Text = "Φιλοσοφία"
	def.Thought = "From Ancient Greek, love of wisdom." // no mention

	res := v.ValidateForWord(def, "philosophy")
	assert.False(t, res.Mismatch)
	require.NotEmpty(t, res.Issues)
	assert.Contains(t, res.Issues[0], "doesn't mention the search term")
}

func TestValidateForWord_Mismatch(t *testing.T) {
	v := New()
	def := philosophyDef()
	def.Parts = []datatypes.Part{
		{ID: "demo", Text: "demo", OriginalWord: "δῆμος", Origin: "Ancient Greek", Meaning: "people"},
		{ID: "cracy", Text: "cracy", OriginalWord: "κράτος", Origin: "Ancient Greek", Meaning: "rule"},
	}
	def.Combinations = [][]datatypes.Combination{
		{
			{ID: "democracy", Text: "democracy", Definition: "rule by the people", SourceIDs: []string{"demo", "cracy"}},
		},
	}
	def.Thought = "From Greek demokratia."

	res := v.ValidateForWord(def, "philosophy")
	assert.True(t, res.Mismatch)
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
