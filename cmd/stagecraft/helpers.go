// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stagecraft-dev/stagecraft/analysis"
	"github.com/stagecraft-dev/stagecraft/checks"
	"github.com/stagecraft-dev/stagecraft/graph"
	"github.com/stagecraft-dev/stagecraft/manifest"
	"github.com/stagecraft-dev/stagecraft/migrate"
	"github.com/stagecraft-dev/stagecraft/producer"
	"github.com/stagecraft-dev/stagecraft/safety"
)

// runSession is the shared pipeline behind run and resume: analyze,
// plan, and drive the stage state machine. An empty sessionID starts a
// new session; a non-empty one resumes it against the same manifest.
func runSession(cmd *cobra.Command, sessionID string, skips, critical []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return exitWith(1, err)
	}
	logger := newLogger(cfg.WorkDir)
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyzer, err := analysis.NewAnalyzer(cfg.ProjectRoot, analysis.WithLogger(logger))
	if err != nil {
		return exitWith(1, err)
	}
	records, err := analyzer.Analyze(ctx, cfg.Include, cfg.Exclude)
	if err != nil {
		return exitWith(1, err)
	}
	if len(records) == 0 {
		return exitWith(1, fmt.Errorf("no files matched the include patterns under %s", cfg.ProjectRoot))
	}
	logger.Info("analysis complete", "files", len(records), "skipped", analyzer.SkippedCount())

	g := graph.Build(records)
	for _, cycle := range g.DetectCycles() {
		logger.Warn("dependency cycle detected", "cycle", cycle.String())
	}

	boundaries := deriveBoundaries(records, critical)
	stages := migrate.PlanStages(boundaries, g, cfg.MaxStageSize)
	logger.Info("planned migration", "boundaries", len(boundaries), "stages", len(stages))

	store, err := manifest.Open(manifest.Options{Dir: filepath.Join(cfg.WorkDir, "manifest")})
	if err != nil {
		return exitWith(1, err)
	}
	session := migrate.NewSession(sessionID, logger, store)
	defer session.Close()

	safe, err := safety.NewManager(cfg.ProjectRoot,
		filepath.Join(cfg.WorkDir, "backups", session.ID), session.Logger)
	if err != nil {
		return exitWith(1, err)
	}
	if sessionID != "" {
		// A resumed session must see the prior process's snapshots, or
		// the first write would re-backup half-migrated live content.
		if err := safe.LoadMirror(); err != nil {
			return exitWith(1, err)
		}
	}

	procLog := &producer.Log{}
	var primary producer.Producer
	if cfg.OpenAIAPIKey != "" {
		primary, err = producer.NewOpenAIProducer(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.ProjectRoot, session.Logger)
		if err != nil {
			return exitWith(1, err)
		}
	} else {
		session.Logger.Warn("no OpenAI API key configured, all patches come from the template producer")
	}
	prod := producer.NewFallbackProducer(primary,
		producer.NewTemplateProducer(cfg.ProjectRoot), procLog, session.Logger)

	validator := checks.NewCommandValidator(cfg.ProjectRoot,
		cfg.BuildCommand, cfg.TestCommand, cfg.BuildTimeout, cfg.TestTimeout, session.Logger)

	runner := migrate.NewRunner(session, migrate.Config{
		MaxRetries:                   cfg.MaxRetries,
		MaxStageSize:                 cfg.MaxStageSize,
		ContinueOnNonCriticalFailure: cfg.ContinueOnNonCriticalFailure,
	}, prod, validator, safe, cfg.ProjectRoot, migrate.WithSkipStages(skips))

	report, runErr := runner.Run(ctx, stages)

	if entries := procLog.Entries(); len(entries) > 0 {
		logPath := processingLogPath(cfg.WorkDir, session.ID)
		if err := producer.WriteLogFile(logPath, entries); err != nil {
			session.Logger.Error("writing processing log failed", "error", err)
		}
	}

	printReport(cmd, report)

	if runErr != nil {
		return exitWith(1, runErr)
	}
	return nil
}

// deriveBoundaries groups analyzed files by top-level directory. Files
// at the root form their own boundary.
func deriveBoundaries(records []analysis.FileRecord, critical []string) []migrate.Boundary {
	criticalSet := make(map[string]bool, len(critical))
	for _, id := range critical {
		criticalSet[id] = true
	}

	groups := make(map[string][]string)
	var order []string
	for _, r := range records {
		id := "root"
		if i := strings.IndexByte(r.Path, '/'); i > 0 {
			id = r.Path[:i]
		}
		if _, seen := groups[id]; !seen {
			order = append(order, id)
		}
		groups[id] = append(groups[id], r.Path)
	}

	boundaries := make([]migrate.Boundary, 0, len(order))
	for _, id := range order {
		boundaries = append(boundaries, migrate.Boundary{
			ID:       id,
			Files:    groups[id],
			Critical: criticalSet[id],
		})
	}
	return boundaries
}

func processingLogPath(workDir, sessionID string) string {
	return filepath.Join(workDir, "sessions", sessionID, "processing.json")
}

func printReport(cmd *cobra.Command, report migrate.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session:  %s\n", report.SessionID)
	fmt.Fprintf(out, "Status:   %s\n", report.Status)
	fmt.Fprintf(out, "Duration: %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	for _, s := range report.Stages {
		fmt.Fprintf(out, "  stage %-24s %-20s retries=%d files=%d\n",
			s.StageID, s.Status, s.RetryCount, len(s.Files))
	}
	if len(report.ModifiedFiles) > 0 {
		fmt.Fprintf(out, "Modified: %d files\n", len(report.ModifiedFiles))
	}
	if len(report.RestoredFiles) > 0 {
		fmt.Fprintf(out, "Restored: %d files\n", len(report.RestoredFiles))
	}
	fmt.Fprintf(out, "Backups:  %s\n", report.BackupDir)

	switch report.Status {
	case migrate.SessionAborted:
		fmt.Fprintln(out, "Session aborted. Tracked files were restored; the backup directory holds the pre-migration tree.")
	case migrate.SessionRunning:
		fmt.Fprintf(out, "Session interrupted. Resume with: stagecraft resume %s\n", report.SessionID)
	}
}
