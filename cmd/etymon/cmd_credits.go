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
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Show the credit window state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		used, err := a.ledger.Used(ctx)
		if err != nil {
			return err
		}
		remaining, err := a.ledger.Remaining(ctx)
		if err != nil {
			return err
		}
		hours, err := a.ledger.HoursUntilReset(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Credits: %d/%d used, %d remaining\n", used, a.ledger.Max(), remaining)
		if remaining == 0 {
			fmt.Printf("Window resets in about %d hour(s)\n", hours)
		}
		return nil
	},
}
