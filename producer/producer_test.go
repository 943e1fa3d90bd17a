// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package producer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stagecraft-dev/stagecraft/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Quiet: true})
}

type failingProducer struct{}

func (failingProducer) Name() string { return "ai" }
func (failingProducer) Produce(context.Context, string, string) ([]Patch, error) {
	return nil, errors.New("model unavailable")
}

type fixedProducer struct {
	patches []Patch
}

func (fixedProducer) Name() string { return "ai" }
func (p fixedProducer) Produce(context.Context, string, string) ([]Patch, error) {
	return p.patches, nil
}

func writeTarget(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestTemplateProducerDeterministic(t *testing.T) {
	root := t.TempDir()
	writeTarget(t, root, "docs/auth.md", "## Rules\n- no plaintext passwords\n")

	tp := NewTemplateProducer(root)
	first, err := tp.Produce(context.Background(), "auth", "docs/auth.md")
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	second, err := tp.Produce(context.Background(), "auth", "docs/auth.md")
	if err != nil {
		t.Fatalf("Produce again: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected one patch per call, got %d and %d", len(first), len(second))
	}
	if first[0].Content != second[0].Content {
		t.Error("template output differed between identical calls")
	}
	if first[0].Path != "docs/auth.md" {
		t.Errorf("unexpected patch path %s", first[0].Path)
	}
}

func TestTemplateProducerMissingTarget(t *testing.T) {
	tp := NewTemplateProducer(t.TempDir())
	patches, err := tp.Produce(context.Background(), "auth", "docs/new.md")
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(patches) != 1 || patches[0].Content == "" {
		t.Fatal("expected a skeleton patch for a missing target")
	}
}

func TestFallbackOnPrimaryFailure(t *testing.T) {
	root := t.TempDir()
	writeTarget(t, root, "auth.md", "- keep sessions short\n")

	log := &Log{}
	fp := NewFallbackProducer(failingProducer{}, NewTemplateProducer(root), log, quietLogger())

	patches, err := fp.Produce(context.Background(), "auth", "auth.md")
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("expected one patch, got %d", len(patches))
	}

	entries := log.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if entries[0].Method != "template" {
		t.Errorf("expected template method after primary failure, got %s", entries[0].Method)
	}
}

func TestFallbackRecordsPrimarySuccess(t *testing.T) {
	log := &Log{}
	primary := fixedProducer{patches: []Patch{{
		Path:    "auth.md",
		Content: "## Rules\n- a\n- b\n\n## Workflows\n- deploy\n",
	}}}
	fp := NewFallbackProducer(primary, NewTemplateProducer(t.TempDir()), log, quietLogger())

	if _, err := fp.Produce(context.Background(), "auth", "auth.md"); err != nil {
		t.Fatalf("Produce: %v", err)
	}

	entries := log.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Method != "ai" {
		t.Errorf("expected ai method, got %s", e.Method)
	}
	if e.Rules != 2 || e.Workflows != 1 || e.Patterns != 0 {
		t.Errorf("unexpected counts: %+v", e)
	}
	if e.Empty {
		t.Error("non-empty output flagged empty")
	}
}

func TestFallbackFlagsEmptyOutput(t *testing.T) {
	log := &Log{}
	primary := fixedProducer{patches: []Patch{{Path: "auth.md", Content: "  \n"}}}
	fp := NewFallbackProducer(primary, NewTemplateProducer(t.TempDir()), log, quietLogger())

	if _, err := fp.Produce(context.Background(), "auth", "auth.md"); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if entries := log.Entries(); !entries[0].Empty {
		t.Error("blank output not flagged empty")
	}
}

func TestScreenRejectsUnifiedDiff(t *testing.T) {
	patches := []Patch{{
		Path: "auth.md",
		Content: "--- a/auth.md\n+++ b/auth.md\n@@ -1,1 +1,1 @@\n-old\n+new\n",
	}}
	err := Screen(patches)
	if !errors.Is(err, ErrRejected) {
		t.Errorf("expected ErrRejected for diff content, got %v", err)
	}
}

func TestScreenRejectsEscapingPath(t *testing.T) {
	for _, bad := range []string{"", "/etc/passwd", "../outside.md"} {
		err := Screen([]Patch{{Path: bad, Content: "x"}})
		if !errors.Is(err, ErrRejected) {
			t.Errorf("path %q: expected ErrRejected, got %v", bad, err)
		}
	}
}

func TestScreenAcceptsPlainContent(t *testing.T) {
	patches := []Patch{{Path: "auth.md", Content: "## Rules\n- dashes are fine --- even here\n"}}
	if err := Screen(patches); err != nil {
		t.Errorf("plain content rejected: %v", err)
	}
}
