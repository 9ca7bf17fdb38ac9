// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validate enforces the definition invariants that go beyond
// struct tags: ID uniqueness, DAG layer ordering, single-consumer
// wiring, and the word-identity rules. The same validator runs on
// upstream responses, cache writes, and cache reads, so a definition
// that was valid when stored is re-checked against today's rules when
// read.
//
// Issues are returned as human-readable strings because they serve two
// audiences: log lines, and the repair prompt fed back to the upstream
// model on retry.
package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/etymonlab/etymon/pkg/textnorm"
	"github.com/etymonlab/etymon/services/etymology/datatypes"
	"github.com/etymonlab/etymon/services/etymology/mismatch"
)

// Result is the outcome of a word-aware validation pass.
//
// Issues are repairable: the model can be asked to fix them. Mismatch
// is terminal: the response analyzes a different word, and retrying
// the same query tends to reproduce the confusion.
type Result struct {
	Issues   []string
	Mismatch bool
}

// OK reports whether the definition passed every check.
func (r Result) OK() bool {
	return len(r.Issues) == 0 && !r.Mismatch
}

// Validator runs the deep definition checks.
type Validator struct{}

// New returns a Validator.
func New() *Validator {
	return &Validator{}
}

// Validate runs the word-independent checks: structural tags, global
// ID uniqueness, layer ordering, and single-consumer wiring.
//
// # Outputs
//
//   - []string: One entry per violation, empty when sound. Phrased as
//     instructions so they can be fed back to the model verbatim.
func (v *Validator) Validate(def *datatypes.Definition) []string {
	var issues []string

	if err := def.Validate(); err != nil {
		issues = append(issues, structuralIssues(err)...)
		// Deep checks assume the basic shape holds.
		return issues
	}

	issues = append(issues, v.checkUniqueIDs(def)...)
	issues = append(issues, v.checkDAG(def)...)
	return issues
}

// ValidateForWord runs Validate plus the checks that tie the
// definition to the queried word: parts concatenation, the final-layer
// identity gate, and the mismatch detector.
//
// # Inputs
//
//   - def: The definition to check.
//   - word: The word the user submitted, raw form.
//
// # Outputs
//
//   - Result: Issues for repairable problems; Mismatch set when the
//     response is about a different word.
func (v *Validator) ValidateForWord(def *datatypes.Definition, word string) Result {
	res := Result{Issues: v.Validate(def)}
	res.Issues = append(res.Issues, v.checkPartsSpellWord(def, word)...)

	final := def.FinalCombination()
	if final == nil {
		return res
	}

	if textnorm.HasNonLatin(final.Text) {
		// The model may answer an English query in the original script.
		// Require the reasoning to mention the queried word instead of
		// comparing spellings.
		if !strings.Contains(strings.ToLower(def.Thought), strings.ToLower(word)) &&
			!strings.Contains(strings.ToLower(def.Thought), textnorm.Normalize(word)) {
			res.Issues = append(res.Issues, fmt.Sprintf(
				"The etymology explanation doesn't mention the search term %q. Please ensure the etymology is for the correct word.", word))
		}
		return res
	}

	if textnorm.HasNonLatin(word) {
		// Non-Latin query with a Latin final form: spelling comparison
		// across scripts is meaningless, so let it pass.
		return res
	}

	if mismatch.IsMismatch(word, final.Text, def.Thought) {
		res.Mismatch = true
	}
	return res
}

// checkPartsSpellWord verifies that the part texts concatenate to the
// queried word. Waived when any part carries non-Latin runes, because
// the model may legitimately decompose into the original script.
func (v *Validator) checkPartsSpellWord(def *datatypes.Definition, word string) []string {
	var combined strings.Builder
	names := make([]string, 0, len(def.Parts))
	for _, p := range def.Parts {
		combined.WriteString(p.Text)
		names = append(names, p.Text)
	}

	if textnorm.HasNonLatin(combined.String()) {
		return nil
	}

	if textnorm.Normalize(combined.String()) != textnorm.Normalize(word) {
		return []string{fmt.Sprintf(
			"The parts %q do not combine to form the word %q",
			strings.Join(names, ", "), word)}
	}
	return nil
}

// checkUniqueIDs enforces global ID uniqueness across parts and every
// combination layer.
func (v *Validator) checkUniqueIDs(def *datatypes.Definition) []string {
	var issues []string
	seen := make(map[string]string, len(def.Parts))

	for _, part := range def.Parts {
		if where, dup := seen[part.ID]; dup {
			issues = append(issues, fmt.Sprintf(
				"ID %q in parts is already used in %s. IDs must be unique across both parts and combinations.",
				part.ID, where))
			continue
		}
		seen[part.ID] = "parts"
	}

	for layerIdx, layer := range def.Combinations {
		loc := fmt.Sprintf("combinations layer %d", layerIdx+1)
		for _, combo := range layer {
			if where, dup := seen[combo.ID]; dup {
				issues = append(issues, fmt.Sprintf(
					"ID %q in %s is already used in %s. IDs must be unique across both parts and combinations.",
					combo.ID, loc, where))
				continue
			}
			seen[combo.ID] = loc
		}
	}
	return issues
}

// checkDAG enforces the layer structure: the final layer holds exactly
// one entry, every sourceId resolves to a part or a strictly earlier
// layer, and every node except the final one feeds exactly one
// consumer.
func (v *Validator) checkDAG(def *datatypes.Definition) []string {
	var issues []string

	lastLayer := def.Combinations[len(def.Combinations)-1]
	if len(lastLayer) != 1 {
		issues = append(issues, fmt.Sprintf(
			"The last layer should have exactly one item, which should be the original word, but you have %d items. You may need to add one more layer and move the final word to the next layer.",
			len(lastLayer)))
	}

	// Resolvable IDs grow layer by layer; a combination may only
	// reference parts or combinations from earlier layers.
	resolvable := make(map[string]bool, len(def.Parts))
	consumed := make(map[string]int, len(def.Parts))
	for _, part := range def.Parts {
		resolvable[part.ID] = true
		consumed[part.ID] = 0
	}

	for _, layer := range def.Combinations {
		for _, combo := range layer {
			for _, sourceID := range combo.SourceIDs {
				if !resolvable[sourceID] {
					issues = append(issues, fmt.Sprintf(
						"The sourceId %q in combination %q does not exist in previous layers.",
						sourceID, combo.ID))
					continue
				}
				consumed[sourceID]++
			}
		}
		// Register this layer's IDs only after its sources resolved, so
		// same-layer references are rejected.
		for _, combo := range layer {
			resolvable[combo.ID] = true
			consumed[combo.ID] = 0
		}
	}

	finalID := ""
	if len(lastLayer) == 1 {
		finalID = lastLayer[0].ID
	}
	for _, id := range orderedIDs(def) {
		if id == finalID {
			continue
		}
		switch count := consumed[id]; {
		case count == 0:
			issues = append(issues, fmt.Sprintf(
				"The node %q is not used as a source for any combinations. Make sure to use it as a source in a future layer.", id))
		case count > 1:
			issues = append(issues, fmt.Sprintf(
				"The node %q is used %d times as a source, but should only be used once. Remove extra uses.", id, count))
		}
	}

	return issues
}

// orderedIDs returns every node ID in document order, so issue output
// is deterministic.
func orderedIDs(def *datatypes.Definition) []string {
	ids := make([]string, 0, len(def.Parts))
	for _, p := range def.Parts {
		ids = append(ids, p.ID)
	}
	for _, layer := range def.Combinations {
		for _, c := range layer {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// structuralIssues flattens validator tag failures into issue strings.
func structuralIssues(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	issues := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, fmt.Sprintf(
			"Field %q failed the %q constraint.", fe.Namespace(), fe.Tag()))
	}
	return issues
}
