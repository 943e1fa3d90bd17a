// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package producer generates migration patches for target files.
//
// A Producer receives a boundary id and a target file and returns full
// replacement content for one or more paths. The AI-backed producer may
// fail; FallbackProducer degrades to a deterministic template instead of
// aborting, and records every outcome in the processing Log consumed by
// the evaluator.
package producer

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrProduce is the sentinel wrapped by patch production failures.
var ErrProduce = errors.New("patch production failed")

// Patch is a proposed full replacement (or new) content for one file.
// Content is never a unified diff; screening rejects diff-shaped output.
type Patch struct {
	Path        string `json:"path"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// Producer generates patches for one target file within a boundary.
type Producer interface {
	// Name identifies the production method in the processing log.
	Name() string

	// Produce returns replacement content for the target file. Target is
	// a path relative to the project root.
	Produce(ctx context.Context, boundary, target string) ([]Patch, error)
}

// Entry records how one target file was processed.
type Entry struct {
	Path      string `json:"path"`
	Method    string `json:"method"`
	Rules     int    `json:"rules"`
	Patterns  int    `json:"patterns"`
	Workflows int    `json:"workflows"`
	Empty     bool   `json:"empty"`
}

// Log accumulates per-file processing entries across a run.
//
// # Thread Safety
//
// Safe for concurrent appends; a stage may produce files in parallel.
type Log struct {
	mu      sync.Mutex
	entries []Entry
}

// Append records one processing entry.
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entries returns a copy of everything recorded so far.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// countItems tallies bullet items under rule, pattern, and workflow
// headings across the produced content. The scan is lexical: a markdown
// heading selects the active counter and list items increment it.
func countItems(patches []Patch) (rules, patterns, workflows int) {
	for _, p := range patches {
		active := ""
		for _, line := range strings.Split(p.Content, "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "#") {
				heading := strings.ToLower(trimmed)
				switch {
				case strings.Contains(heading, "rule"):
					active = "rules"
				case strings.Contains(heading, "pattern"):
					active = "patterns"
				case strings.Contains(heading, "workflow"):
					active = "workflows"
				default:
					active = ""
				}
				continue
			}
			if !strings.HasPrefix(trimmed, "- ") && !strings.HasPrefix(trimmed, "* ") {
				continue
			}
			switch active {
			case "rules":
				rules++
			case "patterns":
				patterns++
			case "workflows":
				workflows++
			}
		}
	}
	return rules, patterns, workflows
}

// isEmpty reports whether the produced patches carry no usable content.
func isEmpty(patches []Patch) bool {
	for _, p := range patches {
		if strings.TrimSpace(p.Content) != "" {
			return false
		}
	}
	return true
}
