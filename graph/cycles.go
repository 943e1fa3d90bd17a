// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"fmt"
	"strings"
)

// Cycle is an ordered file-path sequence forming a closed loop. A
// self-import yields a single-node cycle.
type Cycle struct {
	Path []string
}

// String renders the cycle as "a -> b -> a".
func (c Cycle) String() string {
	if len(c.Path) == 0 {
		return "<empty cycle>"
	}
	return fmt.Sprintf("%s -> %s", strings.Join(c.Path, " -> "), c.Path[0])
}

// DetectCycles finds dependency cycles via depth-first traversal.
//
// # Description
//
// Every unvisited node starts a DFS with an active recursion stack.
// Reaching a node already on the stack yields a cycle equal to the stack
// suffix from that node. A fully explored node is never re-explored
// (global visited set), so the traversal is O(V+E).
//
// Completeness is deliberately partial: only the first cycle found per
// starting node is reported. Every strongly connected component with a
// cycle yields at least one report, but not all simple cycles are
// enumerated.
//
// # Outputs
//
//   - []Cycle: Detected cycles in node order. Empty for acyclic graphs.
func (g *Graph) DetectCycles() []Cycle {
	visited := make(map[string]bool, len(g.order))
	onStack := make(map[string]bool)
	stack := make([]string, 0, 16)
	var cycles []Cycle

	// visit returns true once a cycle has been recorded for the current
	// root, which stops further exploration from that root.
	var visit func(node string) bool
	visit = func(node string) bool {
		visited[node] = true
		onStack[node] = true
		stack = append(stack, node)

		for _, dep := range g.deps[node] {
			if onStack[dep] {
				// Cycle is the stack suffix starting at dep.
				start := 0
				for i, p := range stack {
					if p == dep {
						start = i
						break
					}
				}
				cycle := make([]string, len(stack)-start)
				copy(cycle, stack[start:])
				cycles = append(cycles, Cycle{Path: cycle})
				onStack[node] = false
				stack = stack[:len(stack)-1]
				return true
			}
			if !visited[dep] {
				if visit(dep) {
					onStack[node] = false
					stack = stack[:len(stack)-1]
					return true
				}
			}
		}

		onStack[node] = false
		stack = stack[:len(stack)-1]
		return false
	}

	for _, node := range g.order {
		if !visited[node] {
			stack = stack[:0]
			visit(node)
		}
	}
	return cycles
}
