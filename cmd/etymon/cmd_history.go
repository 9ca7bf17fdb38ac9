// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/etymonlab/etymon/services/etymology/datatypes"
	"github.com/etymonlab/etymon/services/etymology/history"
)

var historyClear bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent searches, grouped by age",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Clear the search history")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := context.Background()

	if historyClear {
		if err := a.history.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("History cleared")
		return nil
	}

	entries, err := a.history.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No searches yet")
		return nil
	}

	groups := a.history.GroupByAge(entries)
	for _, bucket := range history.BucketOrder {
		rows := groups[bucket]
		if len(rows) == 0 {
			continue
		}
		fmt.Printf("%s:\n", bucket)
		for _, e := range rows {
			printHistoryRow(e)
		}
	}
	return nil
}

func printHistoryRow(e datatypes.HistoryEntry) {
	if e.Meaning != "" {
		fmt.Printf("  %-16s %s\n", e.Word, e.Meaning)
		return
	}
	fmt.Printf("  %s\n", e.Word)
}
