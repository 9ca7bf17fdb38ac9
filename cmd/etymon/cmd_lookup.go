// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/etymonlab/etymon/services/etymology/datatypes"
)

var lookupJSONOutput bool

var lookupCmd = &cobra.Command{
	Use:   "lookup WORD",
	Short: "Look up the etymology of a word",
	Long: `Resolves a word to its etymology: cached when fresh, generated
otherwise. Generation spends one credit from the rolling window.

Examples:
  etymon lookup philosophy
  etymon lookup --json circumscribe`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().BoolVar(&lookupJSONOutput, "json", false,
		"Print the raw definition as JSON")
}

func runLookup(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.lookup.Lookup(context.Background(), args[0])
	if err != nil {
		return err
	}

	if lookupJSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Definition)
	}

	printDefinition(args[0], res.Definition)
	switch {
	case res.FromCache:
		fmt.Println("\n(from cache)")
	case res.Partial:
		fmt.Printf("\n(best effort after %d attempt(s); some checks did not pass)\n", res.Attempts)
	}
	return nil
}

// printDefinition renders the breakdown as an indented tree, parts
// first, then each combination layer up to the full word.
func printDefinition(word string, def *datatypes.Definition) {
	fmt.Printf("%s\n\n%s\n\nParts:\n", strings.ToUpper(word), def.Thought)
	for _, p := range def.Parts {
		fmt.Printf("  %-12s %s (%s) %q\n", p.Text, p.OriginalWord, p.Origin, p.Meaning)
	}

	for i, layer := range def.Combinations {
		fmt.Printf("\nLayer %d:\n", i+1)
		for _, c := range layer {
			fmt.Printf("  %s = %s  [%s]\n", c.Text, strings.Join(c.SourceIDs, " + "), c.Definition)
		}
	}

	if len(def.SimilarWords) > 0 {
		fmt.Println("\nSimilar words:")
		for _, s := range def.SimilarWords {
			fmt.Printf("  %-12s %s (%s)\n", s.Word, s.Explanation, s.SharedOrigin)
		}
	}
}
