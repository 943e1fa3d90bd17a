// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stagecraft-dev/stagecraft/pkg/logging"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Quiet: true})
}

func TestAnalyzeGlobAndExclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/main.go", "package main\n\nimport \"fmt\"\n\nfunc main() {}\n")
	writeFile(t, root, "app/util.py", "import os\n\ndef helper():\n    pass\n")
	writeFile(t, root, "vendor/dep.go", "package dep\n")
	writeFile(t, root, "notes.txt", "not source\n")

	a, err := NewAnalyzer(root, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	records, err := a.Analyze(context.Background(), []string{"**/*.go", "**/*.py"}, []string{"vendor/**"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2: %+v", len(records), records)
	}
	// Sorted by path.
	if records[0].Path != "app/main.go" || records[1].Path != "app/util.py" {
		t.Errorf("unexpected paths: %s, %s", records[0].Path, records[1].Path)
	}
	if records[0].Language != "go" {
		t.Errorf("Language = %q, want go", records[0].Language)
	}
	if len(records[0].Hash) != 64 {
		t.Errorf("Hash length = %d, want 64 hex chars", len(records[0].Hash))
	}
	if len(records[0].Imports) != 1 || records[0].Imports[0] != "fmt" {
		t.Errorf("Imports = %v, want [fmt]", records[0].Imports)
	}
}

func TestAnalyzeSkipsUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are ignored when running as root")
	}
	root := t.TempDir()
	writeFile(t, root, "ok.go", "package ok\n")
	writeFile(t, root, "bad.go", "package bad\n")
	if err := os.Chmod(filepath.Join(root, "bad.go"), 0000); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	a, err := NewAnalyzer(root, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	records, err := a.Analyze(context.Background(), []string{"*.go"}, nil)
	if err != nil {
		t.Fatalf("Analyze should not abort on a per-file error: %v", err)
	}
	if len(records) != 1 || records[0].Path != "ok.go" {
		t.Errorf("records = %+v, want only ok.go", records)
	}
	if a.SkippedCount() != 1 {
		t.Errorf("SkippedCount = %d, want 1", a.SkippedCount())
	}
}

func TestAnalyzeNoPatterns(t *testing.T) {
	a, err := NewAnalyzer(t.TempDir(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	if _, err := a.Analyze(context.Background(), nil, nil); err == nil {
		t.Error("expected error for empty pattern list")
	}
}

func TestAnalyzeCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")

	a, err := NewAnalyzer(root, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Analyze(ctx, []string{"*.go"}, nil); err == nil {
		t.Error("expected context error")
	}
}

func TestNewAnalyzerRejectsFileRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "f.go", "package f\n")
	if _, err := NewAnalyzer(filepath.Join(root, "f.go")); err == nil {
		t.Error("expected error for non-directory root")
	}
}
