// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command etymon runs the word-etymology service and its CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "etymon",
	Short: "Word etymology explorer",
	Long: `Etymon breaks words into their historical components.

Definitions are generated by a language model, validated for structural
soundness and word identity, and cached locally. A credit ledger keeps
upstream spend bounded.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config",
		defaultConfigPath(), "Path to the YAML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(creditsCmd)
	rootCmd.AddCommand(historyCmd)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "etymon.yaml"
	}
	return home + "/.etymon/etymon.yaml"
}
