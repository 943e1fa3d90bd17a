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
	resumeSkipStages []string
	resumeCritical   []string
)

// resumeCmd continues an interrupted session. Stages recorded as
// VALIDATED in the session manifest are skipped without re-producing
// patches or touching their files.
var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume an interrupted migration session",
	Long: `Resumes a migration session that was interrupted or cancelled.

The session manifest records every stage transition, so already-validated
stages are skipped outright and work continues at the first stage that
never validated. Deterministic patches make the resumed outcome identical
to an uninterrupted run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd, args[0], resumeSkipStages, resumeCritical)
	},
}

func init() {
	resumeCmd.Flags().StringArrayVar(&resumeSkipStages, "skip-stage", nil,
		"Stage id to skip (repeatable)")
	resumeCmd.Flags().StringArrayVar(&resumeCritical, "critical", nil,
		"Boundary id whose permanent failure aborts the session (repeatable)")
}
