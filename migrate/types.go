// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package migrate is the staged migration runner: it partitions patch
// targets into ordered stages, applies each stage through the safety
// layer, validates with the project's build and test commands, and
// rolls back on failure. Stage and session state is persisted after
// every transition so an interrupted run can resume.
package migrate

import (
	"errors"
	"time"
)

// StageStatus is the lifecycle state of one stage.
type StageStatus string

// Stage states. Transitions run strictly forward except the bounded
// FAILED -> APPLYING retry loop.
const (
	StagePending           StageStatus = "PENDING"
	StageApplying          StageStatus = "APPLYING"
	StageValidating        StageStatus = "VALIDATING"
	StageValidated         StageStatus = "VALIDATED"
	StageFailed            StageStatus = "FAILED"
	StagePermanentlyFailed StageStatus = "PERMANENTLY_FAILED"
)

// SessionStatus is the lifecycle state of a migration session.
type SessionStatus string

// Session states. COMPLETED and ABORTED are terminal.
const (
	SessionRunning   SessionStatus = "RUNNING"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionAborted   SessionStatus = "ABORTED"
)

var (
	// ErrStageFailed wraps a stage that exhausted its retry budget.
	ErrStageFailed = errors.New("stage permanently failed")

	// ErrSessionAborted wraps a session abort; files were restored.
	ErrSessionAborted = errors.New("migration session aborted")

	// ErrRestore wraps a rollback failure. It is fatal: the tree may be
	// in a mixed state and the backup directory is the recovery path.
	ErrRestore = errors.New("rollback failed")
)

// Stage is one boundary's files applied and validated together.
type Stage struct {
	ID         string
	Boundary   string
	Files      []string
	Critical   bool
	Status     StageStatus
	RetryCount int

	// TouchedFiles are the paths actually written during the latest
	// APPLYING pass; scoped rollback restores exactly these.
	TouchedFiles []string

	// created marks touched paths that did not exist before this stage;
	// rollback removes them instead of restoring.
	created map[string]bool
}

// Config bounds a session's behavior.
type Config struct {
	MaxRetries                   int
	MaxStageSize                 int
	ContinueOnNonCriticalFailure bool
}

// StageOutcome summarizes one stage for the final report.
type StageOutcome struct {
	StageID    string
	Status     StageStatus
	RetryCount int
	Files      []string
}

// Report is the runner's account of what happened, produced whether the
// session completed or aborted.
type Report struct {
	SessionID     string
	Status        SessionStatus
	Stages        []StageOutcome
	ModifiedFiles []string
	RestoredFiles []string
	BackupDir     string
	StartedAt     time.Time
	FinishedAt    time.Time
}
