// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package checks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stagecraft-dev/stagecraft/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Quiet: true})
}

func TestValidatePassingCommands(t *testing.T) {
	v := NewCommandValidator(t.TempDir(), []string{"true"}, []string{"true"}, time.Second, time.Second, quietLogger())
	if err := v.Validate(context.Background()); err != nil {
		t.Errorf("passing commands reported failure: %v", err)
	}
}

func TestValidateBuildFailure(t *testing.T) {
	v := NewCommandValidator(t.TempDir(), []string{"false"}, []string{"true"}, time.Second, time.Second, quietLogger())
	err := v.Validate(context.Background())
	if !errors.Is(err, ErrCheckFailed) {
		t.Errorf("expected ErrCheckFailed, got %v", err)
	}
}

func TestValidateTestFailure(t *testing.T) {
	v := NewCommandValidator(t.TempDir(), []string{"true"}, []string{"false"}, time.Second, time.Second, quietLogger())
	err := v.Validate(context.Background())
	if !errors.Is(err, ErrCheckFailed) {
		t.Errorf("expected ErrCheckFailed, got %v", err)
	}
}

func TestValidateSkipsEmptyTestCommand(t *testing.T) {
	v := NewCommandValidator(t.TempDir(), []string{"true"}, nil, time.Second, time.Second, quietLogger())
	if err := v.Validate(context.Background()); err != nil {
		t.Errorf("empty test command should be skipped: %v", err)
	}
}

func TestValidateTimeoutKillsProcess(t *testing.T) {
	v := NewCommandValidator(t.TempDir(), []string{"sleep", "5"}, nil, 50*time.Millisecond, time.Second, quietLogger())

	start := time.Now()
	err := v.Validate(context.Background())
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("timed-out command was left running for %s", elapsed)
	}
}

func TestValidateHonorsCancellation(t *testing.T) {
	v := NewCommandValidator(t.TempDir(), []string{"sleep", "5"}, nil, 10*time.Second, time.Second, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := v.Validate(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestValidateFailureCarriesOutput(t *testing.T) {
	v := NewCommandValidator(t.TempDir(), []string{"sh", "-c", "echo broken output; exit 3"}, nil, time.Second, time.Second, quietLogger())
	err := v.Validate(context.Background())
	if err == nil {
		t.Fatal("expected failure from non-zero exit")
	}
	if !errors.Is(err, ErrCheckFailed) {
		t.Errorf("expected ErrCheckFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken output") {
		t.Errorf("error does not carry command output: %v", err)
	}
}
