// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package migrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/stagecraft-dev/stagecraft/checks"
	"github.com/stagecraft-dev/stagecraft/manifest"
	"github.com/stagecraft-dev/stagecraft/producer"
	"github.com/stagecraft-dev/stagecraft/safety"
)

// Runner drives the session state machine over a planned stage
// sequence. Stages run strictly sequentially; within one stage, writes
// to disjoint paths run concurrently and validation waits for all of
// them.
type Runner struct {
	session   *Session
	cfg       Config
	producer  producer.Producer
	validator checks.Validator
	safety    *safety.Manager
	root      string
	skip      map[string]bool

	// validationSlot serializes validation per session. One slot today;
	// an explicit semaphore keeps the invariant when sessions ever run
	// concurrently.
	validationSlot *semaphore.Weighted
}

// Option configures a Runner.
type Option func(*Runner)

// WithSkipStages marks stage ids to skip without touching their files.
func WithSkipStages(ids []string) Option {
	return func(r *Runner) {
		for _, id := range ids {
			r.skip[id] = true
		}
	}
}

// NewRunner wires the runner to its collaborators. root is the project
// root that stage file paths are relative to.
func NewRunner(session *Session, cfg Config, prod producer.Producer, validator checks.Validator, safe *safety.Manager, root string, opts ...Option) *Runner {
	r := &Runner{
		session:        session,
		cfg:            cfg,
		producer:       prod,
		validator:      validator,
		safety:         safe,
		root:           root,
		skip:           make(map[string]bool),
		validationSlot: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes the stage sequence and returns a report whether the
// session completed, aborted, or was cancelled.
//
// # Description
//
// Already-VALIDATED stages (from a previous interrupted run of the same
// session) are skipped without invoking the producer or the safety
// layer. A stage exhausting its retries becomes PERMANENTLY_FAILED; a
// critical one aborts the session and restores every tracked file,
// a non-critical one is stepped over when the config allows it.
// Cancellation is honored between stages and mid-validation; the
// session is left RUNNING in the manifest so it can be resumed.
func (r *Runner) Run(ctx context.Context, stages []Stage) (Report, error) {
	log := r.session.Logger
	report := Report{
		SessionID: r.session.ID,
		Status:    SessionRunning,
		BackupDir: r.safety.MirrorDir(),
		StartedAt: r.session.StartedAt,
	}

	stageIDs := make([]string, len(stages))
	for i, s := range stages {
		stageIDs[i] = s.ID
	}
	if err := r.persistSession(SessionRunning, 0, stageIDs); err != nil {
		return report, err
	}

	for i := range stages {
		stage := &stages[i]

		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now()
			return r.finishCancelled(report, stages[:i+1], err)
		}

		if prior, err := r.session.Store.GetStage(r.session.ID, stage.ID); err == nil &&
			StageStatus(prior.Status) == StageValidated {
			stage.Status = StageValidated
			stage.RetryCount = prior.RetryCount
			stage.TouchedFiles = prior.TouchedFiles
			log.Info("skipping already-validated stage", "stage", stage.ID)
			continue
		}

		if r.skip[stage.ID] {
			log.Info("skipping stage by directive", "stage", stage.ID)
			continue
		}

		r.persistSessionIndex(i)
		err := r.runStage(ctx, stage)
		switch {
		case err == nil:
			// advance

		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			report.FinishedAt = time.Now()
			return r.finishCancelled(report, stages[:i+1], err)

		case errors.Is(err, ErrStageFailed):
			if !stage.Critical && r.cfg.ContinueOnNonCriticalFailure {
				log.Warn("non-critical stage permanently failed, continuing",
					"stage", stage.ID, "retries", stage.RetryCount)
				continue
			}
			return r.abort(report, stages, stage, err)

		default:
			// Restore failures and manifest write failures are fatal.
			report.Status = SessionAborted
			report.FinishedAt = time.Now()
			fillOutcomes(&report, stages)
			return report, err
		}
	}

	report.Status = SessionCompleted
	report.FinishedAt = time.Now()
	fillOutcomes(&report, stages)
	for _, s := range stages {
		if s.Status == StageValidated {
			report.ModifiedFiles = append(report.ModifiedFiles, s.TouchedFiles...)
		}
	}
	sort.Strings(report.ModifiedFiles)

	if err := r.persistSession(SessionCompleted, len(stages), stageIDs); err != nil {
		return report, err
	}
	log.Info("migration session completed",
		"stages", len(stages), "files_modified", len(report.ModifiedFiles))
	return report, nil
}

// runStage drives one stage through APPLYING and VALIDATING, retrying
// until it validates or exhausts the budget.
func (r *Runner) runStage(ctx context.Context, stage *Stage) error {
	log := r.session.Logger.With("stage", stage.ID)

	for {
		if err := r.transition(stage, StageApplying); err != nil {
			return err
		}

		patches, err := r.produce(ctx, stage)
		if err == nil {
			err = r.apply(ctx, stage, patches)
		}
		if err != nil {
			if ctx.Err() != nil {
				return r.suspendStage(stage, ctx.Err())
			}
			log.Warn("stage application failed", "error", err)
			if ferr := r.fail(stage); ferr != nil {
				return ferr
			}
			if stage.Status == StagePermanentlyFailed {
				return fmt.Errorf("%w: %s: %v", ErrStageFailed, stage.ID, err)
			}
			continue
		}

		if err := r.transition(stage, StageValidating); err != nil {
			return err
		}

		verr := r.validate(ctx)
		if verr == nil {
			if err := r.transition(stage, StageValidated); err != nil {
				return err
			}
			r.session.Metrics.StagesValidated.Inc()
			log.Info("stage validated", "files", len(stage.TouchedFiles), "retries", stage.RetryCount)
			return nil
		}
		if ctx.Err() != nil {
			return r.suspendStage(stage, ctx.Err())
		}

		log.Warn("stage validation failed",
			"attempt", stage.RetryCount+1, "max_retries", r.cfg.MaxRetries, "error", verr)
		if err := r.fail(stage); err != nil {
			return err
		}
		if stage.Status == StagePermanentlyFailed {
			return fmt.Errorf("%w: %s: %v", ErrStageFailed, stage.ID, verr)
		}
	}
}

// produce collects patches for every file in the stage. Production is
// deferred to application time so resumed sessions never re-produce
// validated stages.
func (r *Runner) produce(ctx context.Context, stage *Stage) ([]producer.Patch, error) {
	var patches []producer.Patch
	for _, target := range stage.Files {
		out, err := r.producer.Produce(ctx, stage.Boundary, target)
		if err != nil {
			return nil, fmt.Errorf("producing %s: %w", target, err)
		}
		patches = append(patches, out...)
	}
	return patches, nil
}

// apply writes all patches through the safety layer. Writes to distinct
// paths run concurrently; any single failure fails the whole stage.
func (r *Runner) apply(ctx context.Context, stage *Stage, patches []producer.Patch) error {
	touched := make([]string, 0, len(patches))
	created := make(map[string]bool, len(patches))
	for _, p := range patches {
		touched = append(touched, p.Path)
		if _, err := os.Stat(filepath.Join(r.root, p.Path)); os.IsNotExist(err) {
			created[p.Path] = true
		}
	}
	stage.TouchedFiles = touched
	stage.created = created

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range patches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := r.safety.SafeWrite(p.Path, []byte(p.Content)); err != nil {
				return fmt.Errorf("writing %s: %w", p.Path, err)
			}
			r.session.Metrics.FilesWritten.Inc()
			return nil
		})
	}
	// Validation is a barrier: every write lands before build or test.
	return g.Wait()
}

// validate runs build and test under the session's single validation
// slot.
func (r *Runner) validate(ctx context.Context) error {
	if err := r.validationSlot.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.validationSlot.Release(1)

	start := time.Now()
	err := r.validator.Validate(ctx)
	r.session.Metrics.ValidationSeconds.Observe(time.Since(start).Seconds())
	return err
}

// fail records a failed attempt: scoped rollback of the stage's touched
// files, then FAILED or PERMANENTLY_FAILED depending on the budget.
func (r *Runner) fail(stage *Stage) error {
	if err := r.rollbackStage(stage); err != nil {
		return err
	}
	stage.RetryCount++
	if stage.RetryCount >= r.cfg.MaxRetries {
		if err := r.transition(stage, StagePermanentlyFailed); err != nil {
			return err
		}
		r.session.Metrics.StagesFailed.Inc()
		return nil
	}
	if err := r.transition(stage, StageFailed); err != nil {
		return err
	}
	r.session.Metrics.Retries.Inc()
	return nil
}

// rollbackStage restores only this stage's touched files. Files the
// stage created from nothing are removed instead of restored.
func (r *Runner) rollbackStage(stage *Stage) error {
	var errs []error
	for _, path := range stage.TouchedFiles {
		if stage.created[path] {
			if err := os.Remove(filepath.Join(r.root, path)); err != nil && !os.IsNotExist(err) {
				errs = append(errs, fmt.Errorf("removing created file %s: %w", path, err))
			}
			continue
		}
		// A path with no backup entry was never written in this stage
		// (backup precedes every write); its live content is untouched.
		if _, ok := r.safety.Entry(path); !ok {
			continue
		}
		if err := r.safety.Restore(path); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: stage %s: %v", ErrRestore, stage.ID, err)
	}
	r.session.Metrics.Rollbacks.WithLabelValues("stage").Inc()
	return nil
}

// suspendStage handles cancellation mid-stage: the stage's writes are
// rolled back and it returns to PENDING so a resume replays it whole.
func (r *Runner) suspendStage(stage *Stage, cause error) error {
	if err := r.rollbackStage(stage); err != nil {
		return err
	}
	stage.TouchedFiles = nil
	if err := r.transition(stage, StagePending); err != nil {
		return err
	}
	return cause
}

// abort ends the session after a critical permanent failure: every
// tracked file is restored and the session is terminal.
func (r *Runner) abort(report Report, stages []Stage, failed *Stage, cause error) (Report, error) {
	log := r.session.Logger
	log.Error("critical stage permanently failed, aborting session",
		"stage", failed.ID, "error", cause)

	if err := r.safety.RestoreAll(); err != nil {
		// The tree may be partially restored; the backup directory is
		// the manual recovery path.
		report.Status = SessionAborted
		report.FinishedAt = time.Now()
		fillOutcomes(&report, stages)
		return report, fmt.Errorf("%w: session abort: %v", ErrRestore, err)
	}
	r.session.Metrics.Rollbacks.WithLabelValues("session").Inc()

	report.Status = SessionAborted
	report.FinishedAt = time.Now()
	fillOutcomes(&report, stages)
	report.RestoredFiles = r.safety.TrackedPaths()
	sort.Strings(report.RestoredFiles)

	stageIDs := make([]string, len(stages))
	for i, s := range stages {
		stageIDs[i] = s.ID
	}
	if err := r.persistSession(SessionAborted, 0, stageIDs); err != nil {
		return report, err
	}
	log.Warn("session aborted, all tracked files restored",
		"restored", len(report.RestoredFiles), "backup_dir", report.BackupDir)
	return report, fmt.Errorf("%w: stage %s", ErrSessionAborted, failed.ID)
}

// finishCancelled leaves the manifest RUNNING and reports what ran.
func (r *Runner) finishCancelled(report Report, stages []Stage, cause error) (Report, error) {
	fillOutcomes(&report, stages)
	for _, s := range stages {
		if s.Status == StageValidated {
			report.ModifiedFiles = append(report.ModifiedFiles, s.TouchedFiles...)
		}
	}
	sort.Strings(report.ModifiedFiles)
	r.session.Logger.Warn("session cancelled, resume with the same session id",
		"files_modified", len(report.ModifiedFiles))
	return report, cause
}

// transition moves a stage to the next state and persists it; every
// transition is durable before the runner acts on it.
func (r *Runner) transition(stage *Stage, next StageStatus) error {
	stage.Status = next
	rec := manifest.StageRecord{
		SessionID:    r.session.ID,
		StageID:      stage.ID,
		Boundary:     stage.Boundary,
		Status:       string(next),
		Critical:     stage.Critical,
		RetryCount:   stage.RetryCount,
		TouchedFiles: stage.TouchedFiles,
	}
	if err := r.session.Store.PutStage(rec); err != nil {
		return fmt.Errorf("persisting stage %s: %w", stage.ID, err)
	}
	return nil
}

func (r *Runner) persistSession(status SessionStatus, index int, stageIDs []string) error {
	rec := manifest.SessionRecord{
		ID:           r.session.ID,
		Status:       string(status),
		CurrentIndex: index,
		StageIDs:     stageIDs,
		BackupDir:    r.safety.MirrorDir(),
		StartedAt:    r.session.StartedAt,
	}
	if err := r.session.Store.PutSession(rec); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}

func (r *Runner) persistSessionIndex(index int) {
	rec, err := r.session.Store.GetSession(r.session.ID)
	if err != nil {
		return
	}
	rec.CurrentIndex = index
	if err := r.session.Store.PutSession(rec); err != nil {
		r.session.Logger.Warn("persisting session index failed", "error", err)
	}
}

func fillOutcomes(report *Report, stages []Stage) {
	report.Stages = report.Stages[:0]
	for _, s := range stages {
		report.Stages = append(report.Stages, StageOutcome{
			StageID:    s.ID,
			Status:     s.Status,
			RetryCount: s.RetryCount,
			Files:      s.TouchedFiles,
		})
	}
}
