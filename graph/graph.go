// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph builds an intra-project file dependency graph from
// analysis records and detects dependency cycles.
//
// Edges are restricted to files known to the graph: relative imports are
// resolved against the importing file's directory, absolute and bare
// imports become edges only when they map onto a known node, and
// everything else (stdlib, third-party) is dropped silently.
package graph

import (
	"path"
	"sort"
	"strings"

	"github.com/stagecraft-dev/stagecraft/analysis"
)

// Extensions tried when an import specifier omits one.
var resolveExtensions = []string{".go", ".py", ".js", ".jsx", ".mjs", ".ts", ".tsx"}

// Graph is an intra-project dependency graph over analyzed files.
//
// Invariant: every edge target is a known node. Not safe for concurrent
// mutation; Build returns a fully constructed Graph that is safe for
// concurrent reads.
type Graph struct {
	nodes map[string]analysis.FileRecord
	deps  map[string][]string
	order []string
}

// Build constructs a Graph from analysis records.
//
// Each record becomes a node keyed by its root-relative slash path. Each
// import is resolved to at most one set of in-project targets; imports
// that resolve outside the record set produce no edge.
func Build(records []analysis.FileRecord) *Graph {
	g := &Graph{
		nodes: make(map[string]analysis.FileRecord, len(records)),
		deps:  make(map[string][]string, len(records)),
	}

	// Stem index: path without extension -> node path. Lets "./util"
	// and python "pkg.util" land on "pkg/util.py".
	stems := make(map[string]string, len(records))
	// Directory index for Go package imports (package = directory).
	dirs := make(map[string][]string)

	for _, r := range records {
		g.nodes[r.Path] = r
		g.order = append(g.order, r.Path)
		stems[trimExt(r.Path)] = r.Path
		dir := path.Dir(r.Path)
		dirs[dir] = append(dirs[dir], r.Path)
	}
	sort.Strings(g.order)

	for _, r := range records {
		seen := make(map[string]struct{})
		for _, imp := range r.Imports {
			for _, target := range g.resolve(r, imp, stems, dirs) {
				if _, dup := seen[target]; dup {
					continue
				}
				seen[target] = struct{}{}
				g.deps[r.Path] = append(g.deps[r.Path], target)
			}
		}
		sort.Strings(g.deps[r.Path])
	}
	return g
}

// Nodes returns all node paths in sorted order.
func (g *Graph) Nodes() []string { return g.order }

// HasNode reports whether the path is a known node.
func (g *Graph) HasNode(p string) bool {
	_, ok := g.nodes[p]
	return ok
}

// Record returns the analysis record for a node path.
func (g *Graph) Record(p string) (analysis.FileRecord, bool) {
	r, ok := g.nodes[p]
	return r, ok
}

// Dependencies returns the in-project files that p depends on.
func (g *Graph) Dependencies(p string) []string { return g.deps[p] }

// DependsOn reports whether from has a direct edge to to.
func (g *Graph) DependsOn(from, to string) bool {
	for _, d := range g.deps[from] {
		if d == to {
			return true
		}
	}
	return false
}

// resolve maps one import specifier to zero or more known node paths.
func (g *Graph) resolve(r analysis.FileRecord, imp string, stems map[string]string, dirs map[string][]string) []string {
	switch r.Language {
	case "go":
		return g.resolveGo(imp, dirs)
	case "python":
		return g.resolvePython(r.Path, imp, stems)
	default:
		return g.resolveRelative(r.Path, imp, stems)
	}
}

// resolveGo treats an import path as a package directory: the edge target
// is every file in a known directory matching the import path's tail.
// External module imports match no directory and are dropped.
func (g *Graph) resolveGo(imp string, dirs map[string][]string) []string {
	var best string
	for dir := range dirs {
		if dir != imp && !strings.HasSuffix(imp, "/"+dir) {
			continue
		}
		// Prefer the longest matching directory so "a/util" beats "util".
		if len(dir) > len(best) {
			best = dir
		}
	}
	if best == "" {
		return nil
	}
	return dirs[best]
}

// resolvePython resolves dotted and relative (leading-dot) imports.
func (g *Graph) resolvePython(from, imp string, stems map[string]string) []string {
	if strings.HasPrefix(imp, ".") {
		// N leading dots: one dot is the file's own package, each
		// additional dot climbs one directory.
		dots := len(imp) - len(strings.TrimLeft(imp, "."))
		rest := strings.TrimLeft(imp, ".")
		base := path.Dir(from)
		for i := 1; i < dots; i++ {
			base = path.Dir(base)
		}
		candidate := path.Join(base, strings.ReplaceAll(rest, ".", "/"))
		if target, ok := stems[candidate]; ok {
			return []string{target}
		}
		return nil
	}
	if target, ok := stems[strings.ReplaceAll(imp, ".", "/")]; ok {
		return []string{target}
	}
	return nil
}

// resolveRelative resolves JS-style specifiers. Only ./ and ../ forms and
// bare specifiers that happen to match a known stem produce edges.
func (g *Graph) resolveRelative(from, imp string, stems map[string]string) []string {
	var candidate string
	if strings.HasPrefix(imp, "./") || strings.HasPrefix(imp, "../") {
		candidate = path.Join(path.Dir(from), imp)
	} else {
		candidate = imp
	}
	candidate = path.Clean(candidate)

	if target, ok := stems[trimExt(candidate)]; ok {
		return []string{target}
	}
	if target, ok := stems[path.Join(candidate, "index")]; ok {
		return []string{target}
	}
	return nil
}

func trimExt(p string) string {
	for _, ext := range resolveExtensions {
		if strings.HasSuffix(p, ext) {
			return strings.TrimSuffix(p, ext)
		}
	}
	return p
}
