// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package eval scores a run's processing log and recommends whether the
// result can be accepted, needs a partial rerun of weak files, or needs
// a full rerun.
package eval

import (
	"errors"
	"fmt"
	"math"

	"github.com/stagecraft-dev/stagecraft/producer"
)

// ErrEvaluation is the sentinel wrapped by evaluator failures. Callers
// map it to a distinct process exit code.
var ErrEvaluation = errors.New("evaluation failed")

// Weights and thresholds of the confidence formula.
const (
	aiWeight      = 50.0
	fillWeight    = 30.0
	itemWeight    = 20.0
	itemCeiling   = 5.0
	minAIRate     = 0.10
	maxEmptyRate  = 0.80
	partialCutoff = 70.0
)

// Recommendation tiers, weakest outcome first.
const (
	RecommendFullRerun    = "full-rerun"
	RecommendPartialRerun = "partial-rerun"
	RecommendAccept       = "accept"
)

// Report is the evaluator's verdict over one run.
type Report struct {
	Confidence     float64  `json:"confidence"`
	NeedsRerun     bool     `json:"needs_rerun"`
	Recommendation string   `json:"recommendation"`
	Reasons        []string `json:"reasons"`
	CriticalFiles  []string `json:"critical_files"`

	AIRate    float64 `json:"ai_rate"`
	EmptyRate float64 `json:"empty_rate"`
	AvgItems  float64 `json:"avg_items"`
}

// Evaluate computes the confidence score and recommendation for a
// processing log. An empty log is an evaluator error, not a zero score.
//
// # Description
//
// confidence = aiRate*50 + (1-emptyRate)*30 + min(avgItems/5, 1)*20,
// clamped to [0,100]. A run needs a rerun when almost nothing went
// through the AI path (aiRate < 0.10) or almost everything came back
// empty (emptyRate > 0.80). Below the partial cutoff the weak files are
// listed for a scoped rerun instead of a full one.
func Evaluate(entries []producer.Entry) (Report, error) {
	if len(entries) == 0 {
		return Report{}, fmt.Errorf("%w: processing log is empty", ErrEvaluation)
	}

	total := float64(len(entries))
	var aiProcessed, emptyResults, items int
	var critical []string

	for _, e := range entries {
		if e.Method == "ai" {
			aiProcessed++
		}
		if e.Empty {
			emptyResults++
			critical = append(critical, e.Path)
		}
		items += e.Rules + e.Patterns + e.Workflows
	}

	aiRate := float64(aiProcessed) / total
	emptyRate := float64(emptyResults) / total
	avgItems := float64(items) / total

	confidence := aiRate*aiWeight +
		(1-emptyRate)*fillWeight +
		math.Min(avgItems/itemCeiling, 1)*itemWeight
	confidence = math.Max(0, math.Min(100, confidence))

	report := Report{
		Confidence:    confidence,
		NeedsRerun:    aiRate < minAIRate || emptyRate > maxEmptyRate,
		CriticalFiles: critical,
		AIRate:        aiRate,
		EmptyRate:     emptyRate,
		AvgItems:      avgItems,
	}

	switch {
	case report.NeedsRerun:
		report.Recommendation = RecommendFullRerun
		if aiRate < minAIRate {
			report.Reasons = append(report.Reasons,
				fmt.Sprintf("only %.0f%% of files were AI-processed", aiRate*100))
		}
		if emptyRate > maxEmptyRate {
			report.Reasons = append(report.Reasons,
				fmt.Sprintf("%.0f%% of files produced empty results", emptyRate*100))
		}
	case confidence < partialCutoff:
		report.Recommendation = RecommendPartialRerun
		report.Reasons = append(report.Reasons,
			fmt.Sprintf("confidence %.1f below %.0f, rerun %d flagged files",
				confidence, partialCutoff, len(critical)))
	default:
		report.Recommendation = RecommendAccept
	}

	return report, nil
}

// AutoMerge reports whether the run may be merged without review. Both
// gates are required: a confident evaluation of an aborted session is
// still not mergeable.
func AutoMerge(report Report, sessionCompleted bool, threshold float64) bool {
	return sessionCompleted && report.Confidence >= threshold
}
