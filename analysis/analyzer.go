// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/stagecraft-dev/stagecraft/pkg/logging"
)

// Analyzer resolves glob patterns against a project root and produces
// FileRecords via the parser registry.
type Analyzer struct {
	root     string
	registry *Registry
	logger   *logging.Logger

	// skipped counts files dropped by per-file analysis errors.
	skipped int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRegistry replaces the default parser registry.
func WithRegistry(r *Registry) Option {
	return func(a *Analyzer) { a.registry = r }
}

// WithLogger sets the logger. Defaults to logging.Default().
func WithLogger(l *logging.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// NewAnalyzer creates an Analyzer for the given project root.
func NewAnalyzer(root string, opts ...Option) (*Analyzer, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", absRoot)
	}

	a := &Analyzer{
		root:     absRoot,
		registry: NewRegistry(),
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Analyze resolves include/exclude patterns and extracts a FileRecord for
// every matching file with a registered parser.
//
// # Description
//
// Patterns use doublestar syntax relative to the project root. A file is
// analyzed when it matches at least one include pattern and no exclude
// pattern. Files whose extension has no registered parser are ignored.
// Per-file read or scan failures are logged and skipped; they never abort
// the pass. Records are returned sorted by path for determinism.
//
// # Inputs
//
//   - ctx: Cancellation is observed between files.
//   - patterns: Include globs. Must be non-empty.
//   - excludes: Exclude globs. May be nil.
//
// # Outputs
//
//   - []FileRecord: One record per analyzed file.
//   - error: Non-nil on bad patterns or cancellation, not per-file failures.
func (a *Analyzer) Analyze(ctx context.Context, patterns, excludes []string) ([]FileRecord, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("at least one include pattern is required")
	}

	fsys := os.DirFS(a.root)
	matched := make(map[string]struct{})
	for _, pattern := range patterns {
		paths, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
		}
		for _, p := range paths {
			matched[p] = struct{}{}
		}
	}

	paths := make([]string, 0, len(matched))
nextPath:
	for p := range matched {
		for _, exclude := range excludes {
			if doublestar.MatchUnvalidated(exclude, p) {
				continue nextPath
			}
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)

	a.skipped = 0
	records := make([]FileRecord, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		parser := a.registry.ParserFor(path)
		if parser == nil {
			continue
		}

		record, err := a.analyzeFile(path, parser)
		if err != nil {
			a.skipped++
			a.logger.Warn("skipping file",
				"path", path,
				"error", err)
			continue
		}
		records = append(records, record)
	}

	a.logger.Info("analysis complete",
		"files", len(records),
		"skipped", a.skipped)
	return records, nil
}

// SkippedCount returns the number of files dropped by the last Analyze
// call due to per-file errors.
func (a *Analyzer) SkippedCount() int { return a.skipped }

func (a *Analyzer) analyzeFile(path string, parser SymbolParser) (FileRecord, error) {
	full := filepath.Join(a.root, filepath.FromSlash(path))
	info, err := os.Stat(full)
	if err != nil {
		return FileRecord{}, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}
	if info.IsDir() {
		return FileRecord{}, fmt.Errorf("%w: %s is a directory", ErrAnalysis, path)
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return FileRecord{}, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}

	syms, err := parser.Parse(path, content)
	if err != nil {
		return FileRecord{}, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}

	sum := sha256.Sum256(content)
	return FileRecord{
		Path:         path,
		Hash:         hex.EncodeToString(sum[:]),
		Language:     parser.Language(),
		Imports:      syms.Imports,
		Declarations: syms.Declarations,
	}, nil
}
