// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"reflect"
	"sort"
	"testing"

	"github.com/stagecraft-dev/stagecraft/analysis"
)

// buildChain builds a graph from explicit edges expressed as python
// module imports, which resolve 1:1 to file nodes.
func buildEdges(t *testing.T, edges map[string][]string) *Graph {
	t.Helper()
	var records []analysis.FileRecord
	nodes := make(map[string]struct{})
	for from, tos := range edges {
		nodes[from] = struct{}{}
		for _, to := range tos {
			nodes[to] = struct{}{}
		}
	}
	for node := range nodes {
		var imports []string
		for _, to := range edges[node] {
			imports = append(imports, to)
		}
		records = append(records, analysis.FileRecord{
			Path:     node + ".py",
			Language: "python",
			Imports:  imports,
		})
	}
	return Build(records)
}

func TestDetectCyclesAcyclic(t *testing.T) {
	cases := []struct {
		name  string
		edges map[string][]string
	}{
		{"empty", map[string][]string{}},
		{"chain", map[string][]string{"a": {"b"}, "b": {"c"}}},
		{"diamond", map[string][]string{"a": {"b", "c"}, "b": {"d"}, "c": {"d"}}},
		{"forest", map[string][]string{"a": {"b"}, "c": {"d"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := buildEdges(t, tc.edges)
			if cycles := g.DetectCycles(); len(cycles) != 0 {
				t.Errorf("acyclic graph reported cycles: %v", cycles)
			}
		})
	}
}

func TestDetectCyclesKLength(t *testing.T) {
	// a -> b -> c -> a, plus an acyclic tail d -> a.
	g := buildEdges(t, map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
		"d": {"a"},
	})

	cycles := g.DetectCycles()
	if len(cycles) != 1 {
		t.Fatalf("got %d cycles, want 1: %v", len(cycles), cycles)
	}
	got := append([]string(nil), cycles[0].Path...)
	sort.Strings(got)
	want := []string{"a.py", "b.py", "c.py"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("cycle nodes = %v, want %v", got, want)
	}

	// The reported path must be a closed loop edge-by-edge.
	p := cycles[0].Path
	for i := range p {
		next := p[(i+1)%len(p)]
		if !g.DependsOn(p[i], next) {
			t.Errorf("missing edge %s -> %s in reported cycle", p[i], next)
		}
	}
}

func TestDetectCyclesSelfImport(t *testing.T) {
	g := buildEdges(t, map[string][]string{"a": {"a"}})

	cycles := g.DetectCycles()
	if len(cycles) != 1 {
		t.Fatalf("got %d cycles, want 1", len(cycles))
	}
	if !reflect.DeepEqual(cycles[0].Path, []string{"a.py"}) {
		t.Errorf("Path = %v, want single-node cycle", cycles[0].Path)
	}
}

func TestDetectCyclesTwoComponents(t *testing.T) {
	g := buildEdges(t, map[string][]string{
		"a": {"b"},
		"b": {"a"},
		"x": {"y"},
		"y": {"x"},
	})

	cycles := g.DetectCycles()
	if len(cycles) != 2 {
		t.Fatalf("got %d cycles, want one per component: %v", len(cycles), cycles)
	}
}

func TestCycleString(t *testing.T) {
	c := Cycle{Path: []string{"a", "b"}}
	if got := c.String(); got != "a -> b -> a" {
		t.Errorf("String() = %q", got)
	}
}
