// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the etymology service.
//
// This file contains the definition aggregate the upstream model returns:
// the morphological breakdown of a word as a layered combination DAG.
// For cache and history records, see cached.go. For the error taxonomy,
// see errors.go.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// Validation limits for the definition aggregate.
const (
	// MaxSimilarWords is the maximum number of related-word entries
	// a definition may carry.
	MaxSimilarWords = 3

	// MinSimilarWords is the minimum number of related-word entries.
	MinSimilarWords = 1
)

// defValidate is the validator instance for definition datatypes.
// Initialized in init().
var defValidate *validator.Validate

func init() {
	defValidate = validator.New()
}

// Part is a leaf morpheme of the analyzed word.
//
// # Fields
//
//   - ID: Required. Unique identifier within the definition, referenced
//     by Combination.SourceIDs.
//   - Text: Required. The surface fragment of the queried word this part
//     covers. Concatenating every part's Text in order must reproduce the
//     normalized query (waived for non-Latin originals).
//   - OriginalWord: Required. The source-language word the fragment
//     descends from, in its original script.
//   - Origin: Required. The source language/culture ("Ancient Greek").
//   - Meaning: Required. What the source word meant.
type Part struct {
	ID           string `json:"id" validate:"required"`
	Text         string `json:"text" validate:"required"`
	OriginalWord string `json:"originalWord" validate:"required"`
	Origin       string `json:"origin" validate:"required"`
	Meaning      string `json:"meaning" validate:"required"`
}

// Combination is one node of the combination DAG: a merge of earlier
// parts or combinations into a larger unit of meaning.
//
// # Fields
//
//   - ID: Required. Unique identifier within the definition.
//   - Text: Required. The merged surface form.
//   - Definition: Required. The meaning of the merged unit.
//   - SourceIDs: Required, non-empty. IDs of the parts or earlier-layer
//     combinations this node merges. Forward references are invalid.
//   - Origin: Optional. Language of the merged form, when it differs
//     from its sources.
type Combination struct {
	ID         string   `json:"id" validate:"required"`
	Text       string   `json:"text" validate:"required"`
	Definition string   `json:"definition" validate:"required"`
	SourceIDs  []string `json:"sourceIds" validate:"required,min=1,dive,required"`
	Origin     string   `json:"origin,omitempty"`
}

// SimilarWord is a modern word sharing ancestry with the queried word.
type SimilarWord struct {
	Word         string `json:"word" validate:"required"`
	Explanation  string `json:"explanation" validate:"required"`
	SharedOrigin string `json:"sharedOrigin" validate:"required"`
}

// Definition is the full etymology analysis of one word.
//
// # Description
//
// The aggregate the upstream model produces and the renderer consumes.
// Parts are the leaves; Combinations is a layered DAG where each layer
// merges nodes from strictly earlier layers, and the final layer holds
// exactly one entry: the queried word itself. That last invariant (and
// the rest of the DAG rules) goes beyond what struct tags can express
// and is enforced by the validate package.
//
// # Validation
//
// Uses go-playground/validator:
//   - Thought: required
//   - Parts: required, >= 1 element, each element validated
//   - Combinations: required, >= 1 layer, each layer >= 1 entry
//   - SimilarWords: required, 1-3 elements, each element validated
type Definition struct {
	Thought      string          `json:"thought" validate:"required"`
	Parts        []Part          `json:"parts" validate:"required,min=1,dive"`
	Combinations [][]Combination `json:"combinations" validate:"required,min=1,dive,min=1,dive"`
	SimilarWords []SimilarWord   `json:"similarWords" validate:"required,min=1,max=3,dive"`
}

// Validate performs the structural (tag-level) validation pass.
//
// This checks field presence and cardinality only. The deep DAG
// invariants (ID uniqueness, layer ordering, single final entry,
// parts concatenation) are the validate package's job.
//
// Returns:
//   - error: validator.ValidationErrors describing every failed field,
//     or nil if the structure is sound.
func (d *Definition) Validate() error {
	return defValidate.Struct(d)
}

// FinalCombination returns the single entry of the last combination
// layer, which represents the queried word itself.
//
// Returns:
//   - *Combination: The final node, or nil if the DAG is empty or the
//     last layer does not hold exactly one entry.
func (d *Definition) FinalCombination() *Combination {
	if len(d.Combinations) == 0 {
		return nil
	}
	last := d.Combinations[len(d.Combinations)-1]
	if len(last) != 1 {
		return nil
	}
	return &last[0]
}

// RootOrigin returns the origin of the first part, used as the headline
// origin when recording history. Empty if there are no parts.
func (d *Definition) RootOrigin() string {
	if len(d.Parts) == 0 {
		return ""
	}
	return d.Parts[0].Origin
}
