// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stagecraft-dev/stagecraft/eval"
	"github.com/stagecraft-dev/stagecraft/manifest"
	"github.com/stagecraft-dev/stagecraft/migrate"
	"github.com/stagecraft-dev/stagecraft/producer"
)

var (
	evaluateLogPath string
	evaluateJSON    bool
)

// evaluateCmd scores a completed run's processing log.
//
// Exit codes: 0 when the result is acceptable, 1 when a full or partial
// rerun is recommended or the session did not complete, 2 on an
// internal evaluator error (for example an empty or unreadable log).
var evaluateCmd = &cobra.Command{
	Use:   "evaluate <session-id>",
	Short: "Score a session's results and recommend accept or rerun",
	Long: `Evaluates the per-file processing log of a migration session.

The confidence score combines how much of the run went through the AI
producer, how many files came back empty, and how many items were
extracted per file. Auto-merge is only recommended when the score clears
the configured threshold AND the session completed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return exitWith(2, err)
		}
		logger := newLogger(cfg.WorkDir)
		defer logger.Close()

		sessionID := args[0]
		logPath := evaluateLogPath
		if logPath == "" {
			logPath = processingLogPath(cfg.WorkDir, sessionID)
		}

		entries, err := producer.ReadLogFile(logPath)
		if err != nil {
			return exitWith(2, err)
		}
		report, err := eval.Evaluate(entries)
		if err != nil {
			return exitWith(2, err)
		}

		completed := false
		store, err := manifest.Open(manifest.Options{Dir: filepath.Join(cfg.WorkDir, "manifest")})
		if err == nil {
			if rec, err := store.GetSession(sessionID); err == nil {
				completed = rec.Status == string(migrate.SessionCompleted)
			}
			store.Close()
		}
		merge := eval.AutoMerge(report, completed, cfg.ConfidenceThreshold)

		out := cmd.OutOrStdout()
		if evaluateJSON {
			payload := struct {
				eval.Report
				SessionCompleted bool `json:"session_completed"`
				AutoMerge        bool `json:"auto_merge"`
			}{report, completed, merge}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(payload); err != nil {
				return exitWith(2, err)
			}
		} else {
			fmt.Fprintf(out, "Confidence:     %.1f\n", report.Confidence)
			fmt.Fprintf(out, "AI rate:        %.0f%%\n", report.AIRate*100)
			fmt.Fprintf(out, "Empty rate:     %.0f%%\n", report.EmptyRate*100)
			fmt.Fprintf(out, "Avg items:      %.1f\n", report.AvgItems)
			fmt.Fprintf(out, "Recommendation: %s\n", report.Recommendation)
			for _, reason := range report.Reasons {
				fmt.Fprintf(out, "  - %s\n", reason)
			}
			if len(report.CriticalFiles) > 0 {
				fmt.Fprintf(out, "Flagged files:  %d\n", len(report.CriticalFiles))
			}
			fmt.Fprintf(out, "Auto-merge:     %v (session completed: %v)\n", merge, completed)
		}

		if report.Recommendation != eval.RecommendAccept {
			return exitWith(1, nil)
		}
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateLogPath, "log", "",
		"Processing log path (default: the session's log under the work dir)")
	evaluateCmd.Flags().BoolVar(&evaluateJSON, "json", false,
		"Emit the report as JSON")
}
