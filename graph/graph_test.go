// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"reflect"
	"testing"

	"github.com/stagecraft-dev/stagecraft/analysis"
)

func rec(path, lang string, imports ...string) analysis.FileRecord {
	return analysis.FileRecord{Path: path, Language: lang, Imports: imports}
}

func TestBuildRelativeImports(t *testing.T) {
	g := Build([]analysis.FileRecord{
		rec("src/app.js", "javascript", "./util/helper", "../src/config", "react"),
		rec("src/util/helper.js", "javascript"),
		rec("src/config.ts", "javascript"),
	})

	want := []string{"src/config.ts", "src/util/helper.js"}
	if got := g.Dependencies("src/app.js"); !reflect.DeepEqual(got, want) {
		t.Errorf("Dependencies = %v, want %v", got, want)
	}
}

func TestBuildIndexResolution(t *testing.T) {
	g := Build([]analysis.FileRecord{
		rec("app.js", "javascript", "./widgets"),
		rec("widgets/index.js", "javascript"),
	})
	if !g.DependsOn("app.js", "widgets/index.js") {
		t.Error("expected directory import to resolve to index file")
	}
}

func TestBuildPythonImports(t *testing.T) {
	g := Build([]analysis.FileRecord{
		rec("pkg/a.py", "python", ".b", "pkg.sub.c", "os"),
		rec("pkg/b.py", "python", "..outside"),
		rec("pkg/sub/c.py", "python"),
	})

	want := []string{"pkg/b.py", "pkg/sub/c.py"}
	if got := g.Dependencies("pkg/a.py"); !reflect.DeepEqual(got, want) {
		t.Errorf("Dependencies = %v, want %v", got, want)
	}
	// "..outside" climbs above the record set and must be dropped.
	if got := g.Dependencies("pkg/b.py"); len(got) != 0 {
		t.Errorf("Dependencies = %v, want none", got)
	}
}

func TestBuildGoPackageImports(t *testing.T) {
	g := Build([]analysis.FileRecord{
		rec("cmd/main.go", "go", "example.com/proj/util", "fmt"),
		rec("util/a.go", "go"),
		rec("util/b.go", "go"),
	})

	want := []string{"util/a.go", "util/b.go"}
	if got := g.Dependencies("cmd/main.go"); !reflect.DeepEqual(got, want) {
		t.Errorf("Dependencies = %v, want %v", got, want)
	}
}

func TestBuildExternalImportsDropped(t *testing.T) {
	g := Build([]analysis.FileRecord{
		rec("a.go", "go", "github.com/some/dep"),
		rec("b.py", "python", "numpy"),
	})
	for _, node := range g.Nodes() {
		if deps := g.Dependencies(node); len(deps) != 0 {
			t.Errorf("node %s has unexpected edges %v", node, deps)
		}
	}
}

func TestEveryEdgeTargetIsKnown(t *testing.T) {
	g := Build([]analysis.FileRecord{
		rec("x/a.py", "python", "x.b", "x.missing"),
		rec("x/b.py", "python", ".a"),
	})
	for _, node := range g.Nodes() {
		for _, dep := range g.Dependencies(node) {
			if !g.HasNode(dep) {
				t.Errorf("edge %s -> %s targets unknown node", node, dep)
			}
		}
	}
}
