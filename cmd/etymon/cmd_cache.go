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

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the definition cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached definition",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.cache.ClearAll(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d cached definition(s)\n", n)
		return nil
	},
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired and corrupt cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.cache.SweepExpired(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Swept %d cache entries\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheSweepCmd)
}
