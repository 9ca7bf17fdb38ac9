// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package upstream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/etymonlab/etymon/services/etymology/datatypes"
)

// systemPrompt frames the model as an etymology analyst and pins the
// output contract. The schema description matters: JSON mode only
// guarantees syntax, not shape.
const systemPrompt = `You are an expert etymology analysis system, specializing in Indo-European languages, particularly:
- Ancient and Modern Greek
- Latin and Romance languages (Spanish, French, Italian, Portuguese, Romanian)
- Germanic languages (English, German, Dutch)
- Their historical interconnections and shared roots

Your task is to break down words into their components and explain their origins with scholarly precision.

Key Requirements:
1. Break words into meaningful morphemes (roots, prefixes, suffixes)
2. Focus on direct etymological connections
3. Provide 1-3 similar words sharing significant roots
4. Keep all explanations brief and precise
5. Never split or add dashes to the main word in the top level display
6. For Greek words or words with Greek origins: Always include original Greek script in originalWord and thought fields

IMPORTANT: When analyzing English words with Greek origins, you should:
- Include the original Greek form in the thought field
- Use Greek script in the originalWord field for Greek components
- Ensure the final word in combinations matches the input word (in English)
- For example, if analyzing "comedy", mention "κωμωδία" (kōmōdía) in the thought field, but keep "Comedy" as the final word

Respond with a single JSON object, no surrounding text, with this exact shape:
{
  "thought": string,        // brief etymology explanation
  "parts": [                // the morphemes, in order
    {"id": string, "text": string, "originalWord": string, "origin": string, "meaning": string}
  ],
  "combinations": [         // layers of combination, bottom up; the last layer holds exactly one item: the full word
    [{"id": string, "text": string, "definition": string, "sourceIds": [string]}]
  ],
  "similarWords": [         // 1-3 entries
    {"word": string, "explanation": string, "sharedOrigin": string}
  ]
}

Every id must be unique across parts and combinations. Every sourceId must refer to a part or to a combination in an earlier layer. Every part and every intermediate combination must be used as a sourceId exactly once.

Example (Latin word):
{
  "thought": "From Latin 'circumscribere', combining 'circum' (around) and 'scribere' (to write). Originally meaning 'to draw a line around, to define, to limit'.",
  "parts": [
    {"id": "circum", "text": "Circum", "originalWord": "circum", "origin": "Latin", "meaning": "around, about"},
    {"id": "scribere", "text": "scribe", "originalWord": "scribere", "origin": "Latin", "meaning": "to write, draw"}
  ],
  "combinations": [
    [{"id": "circumscribe", "text": "Circumscribe", "definition": "to draw a line around; to limit or restrict", "sourceIds": ["circum", "scribere"]}]
  ],
  "similarWords": [
    {"word": "describe", "explanation": "to write down, from 'de-' (down) + 'scribere'", "sharedOrigin": "Latin scribere 'to write'"},
    {"word": "prescribe", "explanation": "to write before/for, from 'prae-' (before) + 'scribere'", "sharedOrigin": "Latin scribere 'to write'"}
  ]
}

Example (Greek word):
{
  "thought": "From Ancient Greek 'φιλοσοφία' (philosophia), combining 'φίλος' (philos) 'loving' and 'σοφία' (sophia) 'wisdom'. The concept emerged in ancient Greece as the systematic study of knowledge.",
  "parts": [
    {"id": "phil", "text": "Φιλο", "originalWord": "φίλος", "origin": "Ancient Greek", "meaning": "loving, fond of"},
    {"id": "sophia", "text": "σοφία", "originalWord": "σοφία", "origin": "Ancient Greek", "meaning": "wisdom, knowledge"}
  ],
  "combinations": [
    [{"id": "philosophia", "text": "Φιλοσοφία", "definition": "the love or pursuit of wisdom and knowledge", "sourceIds": ["phil", "sophia"]}]
  ],
  "similarWords": [
    {"word": "φιλόλογος", "explanation": "one who loves learning/words (philology)", "sharedOrigin": "Greek φίλος (philos) 'loving'"},
    {"word": "φιλάνθρωπος", "explanation": "lover of humanity (philanthropy)", "sharedOrigin": "Greek φίλος (philos) 'loving'"}
  ]
}`

// attemptRecord pairs one rejected model output with the issues that
// rejected it, so the repair prompt can show the model its own work.
type attemptRecord struct {
	output *datatypes.Definition
	issues []string
}

// buildPrompt returns the user prompt for the given attempt history.
// The first attempt is a bare request; repair attempts replay each
// prior output alongside its issues.
func buildPrompt(word string, attempts []attemptRecord) string {
	if len(attempts) == 0 {
		return fmt.Sprintf("Deconstruct the word: %s", word)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Deconstruct the word: %s\n\nPrevious attempts:\n", word)
	for i, attempt := range attempts {
		raw, err := json.MarshalIndent(attempt.output, "", "  ")
		if err != nil {
			raw = []byte("{}")
		}
		fmt.Fprintf(&b, "\nAttempt %d:\n%s\nErrors:\n", i+1, raw)
		for _, issue := range attempt.issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}
	b.WriteString("\nPlease fix all the issues and try again.")
	return b.String()
}
