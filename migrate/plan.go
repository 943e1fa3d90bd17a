// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package migrate

import (
	"fmt"

	"github.com/stagecraft-dev/stagecraft/graph"
)

// Boundary is a logical grouping of files migrated as one unit.
type Boundary struct {
	ID       string
	Files    []string
	Critical bool
}

// PlanStages turns boundaries into an ordered stage sequence.
//
// # Description
//
// Boundaries are ordered by inter-boundary dependency when a graph is
// available: if any file in boundary A imports a file in boundary B,
// B's stages run first. Cyclic or graph-less boundaries keep their
// discovery order. A boundary holding more than maxStageSize files is
// split into numbered parts to bound the blast radius of a failed
// validation.
//
// # Inputs
//   - boundaries: groupings in discovery order.
//   - g: dependency graph over the analyzed files; may be nil.
//   - maxStageSize: per-stage file ceiling, must be >= 1.
func PlanStages(boundaries []Boundary, g *graph.Graph, maxStageSize int) []Stage {
	ordered := orderBoundaries(boundaries, g)

	var stages []Stage
	for _, b := range ordered {
		if len(b.Files) <= maxStageSize {
			stages = append(stages, Stage{
				ID:       b.ID,
				Boundary: b.ID,
				Files:    b.Files,
				Critical: b.Critical,
				Status:   StagePending,
			})
			continue
		}
		for part, start := 1, 0; start < len(b.Files); part, start = part+1, start+maxStageSize {
			end := start + maxStageSize
			if end > len(b.Files) {
				end = len(b.Files)
			}
			stages = append(stages, Stage{
				ID:       fmt.Sprintf("%s-part%d", b.ID, part),
				Boundary: b.ID,
				Files:    b.Files[start:end],
				Critical: b.Critical,
				Status:   StagePending,
			})
		}
	}
	return stages
}

// orderBoundaries sorts boundaries so dependencies come first. The sort
// is stable: independent boundaries keep their discovery order, and a
// dependency cycle between boundaries degrades to discovery order for
// the boundaries involved.
func orderBoundaries(boundaries []Boundary, g *graph.Graph) []Boundary {
	if g == nil || len(boundaries) < 2 {
		return boundaries
	}

	owner := make(map[string]int)
	for i, b := range boundaries {
		for _, f := range b.Files {
			owner[f] = i
		}
	}

	// deps[i] holds the boundary indices i depends on.
	deps := make([]map[int]bool, len(boundaries))
	for i, b := range boundaries {
		deps[i] = make(map[int]bool)
		for _, f := range b.Files {
			for _, target := range g.Dependencies(f) {
				if j, ok := owner[target]; ok && j != i {
					deps[i][j] = true
				}
			}
		}
	}

	ordered := make([]Boundary, 0, len(boundaries))
	emitted := make([]bool, len(boundaries))
	for len(ordered) < len(boundaries) {
		progressed := false
		for i, b := range boundaries {
			if emitted[i] {
				continue
			}
			ready := true
			for j := range deps[i] {
				if !emitted[j] {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, b)
				emitted[i] = true
				progressed = true
			}
		}
		if !progressed {
			// Cycle: emit the remainder in discovery order.
			for i, b := range boundaries {
				if !emitted[i] {
					ordered = append(ordered, b)
					emitted[i] = true
				}
			}
		}
	}
	return ordered
}
