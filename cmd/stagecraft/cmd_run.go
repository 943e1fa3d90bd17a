// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

var (
	runSkipStages []string // Stage ids to skip without touching files
	runCritical   []string // Boundary ids whose failure aborts the session
)

// runCmd starts a new migration session.
//
// # Description
//
// Analyzes the project, plans boundary-ordered stages, and drives the
// migration state machine. Exit code 0 means the session completed;
// 1 means it aborted or was interrupted (interrupted sessions can be
// resumed).
//
// # Examples
//
//	stagecraft run
//	stagecraft run --critical auth --critical billing
//	stagecraft run --skip-stage legacy-part2
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a new staged migration session",
	Long: `Starts a new migration session over the configured project.

Files are grouped into boundaries by top-level directory, ordered by
inter-boundary dependency, and migrated stage by stage. Each stage is
validated with the configured build and test commands; failures are
rolled back and retried up to max_retries times.

Examples:
  stagecraft run                           # migrate everything
  stagecraft run --critical auth           # abort if the auth boundary fails
  stagecraft run --skip-stage vendor       # leave a stage untouched`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd, "", runSkipStages, runCritical)
	},
}

func init() {
	runCmd.Flags().StringArrayVar(&runSkipStages, "skip-stage", nil,
		"Stage id to skip (repeatable)")
	runCmd.Flags().StringArrayVar(&runCritical, "critical", nil,
		"Boundary id whose permanent failure aborts the session (repeatable)")
}
