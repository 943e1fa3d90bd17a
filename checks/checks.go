// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package checks runs the project's build and test commands to validate
// an applied stage. Any non-zero exit is a failure regardless of output;
// a timeout kills the external process before being reported.
package checks

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/stagecraft-dev/stagecraft/pkg/logging"
)

var (
	// ErrCheckFailed wraps a non-zero exit from a validation command.
	ErrCheckFailed = errors.New("validation check failed")

	// ErrTimeout wraps a validation command exceeding its deadline.
	ErrTimeout = errors.New("validation check timed out")
)

// outputTailBytes bounds how much command output is carried in errors.
const outputTailBytes = 4096

// Validator runs external validation checks against an applied stage.
type Validator interface {
	Validate(ctx context.Context) error
}

// CommandValidator validates by running a build command and then,
// when configured, a test command. Each runs in the project root under
// its own timeout.
type CommandValidator struct {
	root         string
	buildCommand []string
	testCommand  []string
	buildTimeout time.Duration
	testTimeout  time.Duration
	logger       *logging.Logger
}

// NewCommandValidator builds a validator for the project at root.
// Commands are argv form. The test command may be empty to skip the
// test phase.
func NewCommandValidator(root string, buildCommand, testCommand []string, buildTimeout, testTimeout time.Duration, logger *logging.Logger) *CommandValidator {
	return &CommandValidator{
		root:         root,
		buildCommand: buildCommand,
		testCommand:  testCommand,
		buildTimeout: buildTimeout,
		testTimeout:  testTimeout,
		logger:       logger,
	}
}

// Validate runs build then test. The test phase only runs when the
// build phase passes.
func (v *CommandValidator) Validate(ctx context.Context) error {
	if err := v.run(ctx, "build", v.buildCommand, v.buildTimeout); err != nil {
		return err
	}
	if len(v.testCommand) == 0 {
		return nil
	}
	return v.run(ctx, "test", v.testCommand, v.testTimeout)
}

func (v *CommandValidator) run(ctx context.Context, phase string, command []string, timeout time.Duration) error {
	if len(command) == 0 {
		return fmt.Errorf("%w: empty %s command", ErrCheckFailed, phase)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// CommandContext kills the process group leader when the context
	// expires, so a hung build does not outlive the validation.
	cmd := exec.CommandContext(runCtx, command[0], command[1:]...)
	cmd.Dir = v.root

	start := time.Now()
	v.logger.Debug("running validation command", "phase", phase, "command", command)
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			v.logger.Warn("validation command timed out",
				"phase", phase, "command", command, "timeout", timeout)
			return fmt.Errorf("%w: %s command exceeded %s", ErrTimeout, phase, timeout)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		v.logger.Warn("validation command failed",
			"phase", phase, "command", command, "elapsed", elapsed, "error", err)
		return fmt.Errorf("%w: %s: %v\n%s", ErrCheckFailed, phase, err, tail(output))
	}

	v.logger.Debug("validation command passed", "phase", phase, "elapsed", elapsed)
	return nil
}

func tail(output []byte) string {
	if len(output) <= outputTailBytes {
		return string(output)
	}
	return "..." + string(output[len(output)-outputTailBytes:])
}
