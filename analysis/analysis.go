// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analysis scans project source files and extracts lightweight
// symbol metadata for dependency graph construction.
//
// Extraction is lexical line scanning, not parsing. Each language sits
// behind the SymbolParser interface so a real parser can replace a
// heuristic one without touching graph or cycle logic. Per-file failures
// are isolated: a file that cannot be read or scanned is skipped with a
// warning and never aborts the pass.
package analysis

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrAnalysis marks per-file analysis failures. These are skip-and-warn;
// callers only see them through the skipped-file counts.
var ErrAnalysis = errors.New("analysis failed")

// Symbols holds the metadata extracted from one source file.
type Symbols struct {
	// Imports are the raw import specifiers as written in the source
	// (module paths, dotted names, relative specifiers).
	Imports []string

	// Declarations are the names of top-level declared entities.
	Declarations []string
}

// FileRecord describes one analyzed source file. Immutable once created.
type FileRecord struct {
	// Path is the file path relative to the project root, slash-separated.
	Path string

	// Hash is the sha256 checksum of the content at analysis time.
	Hash string

	// Language is the parser language tag ("go", "python", "javascript").
	Language string

	// Imports are the raw import specifiers found in the file.
	Imports []string

	// Declarations are the top-level entity names found in the file.
	Declarations []string
}

// SymbolParser extracts symbols from source content for one language.
//
// Implementations must be stateless and safe for concurrent use. The
// built-in parsers are lexical; a tree-sitter or compiler-backed parser
// can be registered in their place.
type SymbolParser interface {
	// Language returns the language tag this parser handles.
	Language() string

	// Parse extracts symbols from the file content.
	Parse(path string, content []byte) (Symbols, error)
}

// Registry maps file extensions to symbol parsers.
type Registry struct {
	byExt map[string]SymbolParser
}

// NewRegistry returns a registry preloaded with the built-in lexical
// parsers for Go, Python, and JavaScript/TypeScript.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]SymbolParser)}
	r.Register(&goParser{}, ".go")
	r.Register(&pythonParser{}, ".py")
	r.Register(&javascriptParser{}, ".js", ".jsx", ".mjs", ".ts", ".tsx")
	return r
}

// Register installs a parser for the given extensions, replacing any
// previous parser for those extensions.
func (r *Registry) Register(p SymbolParser, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// ParserFor returns the parser for a path's extension, or nil if the
// extension is not handled.
func (r *Registry) ParserFor(path string) SymbolParser {
	return r.byExt[strings.ToLower(filepath.Ext(path))]
}
