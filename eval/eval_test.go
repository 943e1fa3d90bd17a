// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eval

import (
	"errors"
	"testing"

	"github.com/stagecraft-dev/stagecraft/producer"
)

// makeEntries builds a log with the given rates: total files, how many
// AI-processed, how many empty, and items per file.
func makeEntries(total, ai, empty, itemsPerFile int) []producer.Entry {
	entries := make([]producer.Entry, total)
	for i := range entries {
		method := "template"
		if i < ai {
			method = "ai"
		}
		entries[i] = producer.Entry{
			Path:   "file" + string(rune('a'+i)) + ".md",
			Method: method,
			Rules:  itemsPerFile,
			Empty:  i < empty,
		}
	}
	return entries
}

func TestEvaluateEmptyLog(t *testing.T) {
	_, err := Evaluate(nil)
	if !errors.Is(err, ErrEvaluation) {
		t.Errorf("expected ErrEvaluation for empty log, got %v", err)
	}
}

func TestConfidenceOrdering(t *testing.T) {
	// 20 files: 18 AI (0.9), 1 empty (0.05), 3 items each.
	strong, err := Evaluate(makeEntries(20, 18, 1, 3))
	if err != nil {
		t.Fatalf("Evaluate strong: %v", err)
	}
	// 20 files: 1 AI (0.05), 18 empty (0.9), 0 items.
	weak, err := Evaluate(makeEntries(20, 1, 18, 0))
	if err != nil {
		t.Fatalf("Evaluate weak: %v", err)
	}

	if strong.Confidence <= weak.Confidence {
		t.Errorf("strong run (%.1f) should outscore weak run (%.1f)",
			strong.Confidence, weak.Confidence)
	}
	if strong.NeedsRerun {
		t.Error("strong run flagged for rerun")
	}
	if !weak.NeedsRerun {
		t.Error("weak run not flagged for rerun")
	}
	if weak.Recommendation != RecommendFullRerun {
		t.Errorf("weak run recommendation = %s, want %s", weak.Recommendation, RecommendFullRerun)
	}
}

func TestConfidenceBounds(t *testing.T) {
	// All AI, nothing empty, items well past the ceiling.
	report, err := Evaluate(makeEntries(10, 10, 0, 50))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.Confidence != 100 {
		t.Errorf("max-quality run scored %.1f, want 100", report.Confidence)
	}

	report, err = Evaluate(makeEntries(10, 0, 10, 0))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.Confidence != 0 {
		t.Errorf("min-quality run scored %.1f, want 0", report.Confidence)
	}
}

func TestPartialRerunTier(t *testing.T) {
	// Healthy rates but sparse items: aiRate=0.5, emptyRate=0.2, avgItems=0.
	// confidence = 25 + 24 + 0 = 49: below the partial cutoff, above the
	// rerun gates.
	report, err := Evaluate(makeEntries(10, 5, 2, 0))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.NeedsRerun {
		t.Error("run should not need a full rerun")
	}
	if report.Recommendation != RecommendPartialRerun {
		t.Errorf("recommendation = %s, want %s", report.Recommendation, RecommendPartialRerun)
	}
	if len(report.CriticalFiles) != 2 {
		t.Errorf("expected 2 critical files, got %d", len(report.CriticalFiles))
	}
}

func TestAcceptTier(t *testing.T) {
	report, err := Evaluate(makeEntries(10, 9, 0, 4))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.Recommendation != RecommendAccept {
		t.Errorf("recommendation = %s, want %s", report.Recommendation, RecommendAccept)
	}
	if len(report.Reasons) != 0 {
		t.Errorf("accepted run carries reasons: %v", report.Reasons)
	}
}

func TestAutoMergeRequiresBothGates(t *testing.T) {
	report := Report{Confidence: 85}

	if !AutoMerge(report, true, 70) {
		t.Error("confident completed run should auto-merge")
	}
	if AutoMerge(report, false, 70) {
		t.Error("aborted session must never auto-merge")
	}
	if AutoMerge(Report{Confidence: 60}, true, 70) {
		t.Error("low-confidence run must not auto-merge")
	}
}
