// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

// scanLines runs fn over each line of content. Lines longer than the
// default bufio limit are tolerated via a widened buffer.
func scanLines(content []byte, fn func(line string)) error {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	return scanner.Err()
}

// =============================================================================
// Go
// =============================================================================

var (
	goQuotedImport = regexp.MustCompile(`"([^"]+)"`)
	goFuncDecl     = regexp.MustCompile(`^func\s+(?:\([^)]*\)\s+)?([A-Za-z_][A-Za-z0-9_]*)`)
	goTypeDecl     = regexp.MustCompile(`^(type|var|const)\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

type goParser struct{}

func (p *goParser) Language() string { return "go" }

// Parse scans Go source line by line. It recognizes single import lines,
// grouped import blocks, and top-level func/type/var/const declarations.
func (p *goParser) Parse(path string, content []byte) (Symbols, error) {
	var syms Symbols
	inImportBlock := false

	err := scanLines(content, func(line string) {
		trimmed := strings.TrimSpace(line)
		switch {
		case inImportBlock:
			if trimmed == ")" {
				inImportBlock = false
				return
			}
			if m := goQuotedImport.FindStringSubmatch(trimmed); m != nil {
				syms.Imports = append(syms.Imports, m[1])
			}
		case strings.HasPrefix(trimmed, "import ("):
			inImportBlock = true
		case strings.HasPrefix(trimmed, "import "):
			if m := goQuotedImport.FindStringSubmatch(trimmed); m != nil {
				syms.Imports = append(syms.Imports, m[1])
			}
		case strings.HasPrefix(line, "func "), strings.HasPrefix(line, "func("):
			if m := goFuncDecl.FindStringSubmatch(line); m != nil {
				syms.Declarations = append(syms.Declarations, m[1])
			}
		default:
			// Only column-zero declarations are top level.
			if m := goTypeDecl.FindStringSubmatch(line); m != nil {
				syms.Declarations = append(syms.Declarations, m[2])
			}
		}
	})
	return syms, err
}

// =============================================================================
// Python
// =============================================================================

var (
	pyImport   = regexp.MustCompile(`^import\s+([A-Za-z_][\w.]*)(?:\s+as\s+\w+)?`)
	pyFrom     = regexp.MustCompile(`^from\s+(\.*[\w.]*)\s+import\s+`)
	pyDefClass = regexp.MustCompile(`^(?:async\s+)?(?:def|class)\s+([A-Za-z_]\w*)`)
)

type pythonParser struct{}

func (p *pythonParser) Language() string { return "python" }

// Parse scans Python source line by line. Relative imports keep their
// leading dots so the graph builder can resolve them against the file's
// own package directory.
func (p *pythonParser) Parse(path string, content []byte) (Symbols, error) {
	var syms Symbols

	err := scanLines(content, func(line string) {
		if m := pyImport.FindStringSubmatch(line); m != nil {
			for _, name := range strings.Split(strings.TrimPrefix(m[0], "import "), ",") {
				name = strings.TrimSpace(name)
				if i := strings.Index(name, " as "); i >= 0 {
					name = name[:i]
				}
				if name != "" {
					syms.Imports = append(syms.Imports, name)
				}
			}
			return
		}
		if m := pyFrom.FindStringSubmatch(line); m != nil && strings.Trim(m[1], ".") != "" {
			syms.Imports = append(syms.Imports, m[1])
			return
		}
		if m := pyDefClass.FindStringSubmatch(line); m != nil {
			syms.Declarations = append(syms.Declarations, m[1])
		}
	})
	return syms, err
}

// =============================================================================
// JavaScript / TypeScript
// =============================================================================

var (
	jsImportFrom = regexp.MustCompile(`(?:^import\s+.*?\s+from|^import|^export\s+.*?\s+from)\s+['"]([^'"]+)['"]`)
	jsRequire    = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	jsDecl       = regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:async\s+)?(?:function|class)\s+([A-Za-z_$][\w$]*)`)
	jsExportVar  = regexp.MustCompile(`^export\s+(?:const|let|var)\s+([A-Za-z_$][\w$]*)`)
)

type javascriptParser struct{}

func (p *javascriptParser) Language() string { return "javascript" }

// Parse scans JavaScript or TypeScript source line by line, handling ES
// module import/export-from forms and CommonJS require calls.
func (p *javascriptParser) Parse(path string, content []byte) (Symbols, error) {
	var syms Symbols

	err := scanLines(content, func(line string) {
		if m := jsImportFrom.FindStringSubmatch(line); m != nil {
			syms.Imports = append(syms.Imports, m[1])
		} else if m := jsRequire.FindStringSubmatch(line); m != nil {
			syms.Imports = append(syms.Imports, m[1])
		}
		if m := jsDecl.FindStringSubmatch(line); m != nil {
			syms.Declarations = append(syms.Declarations, m[1])
		} else if m := jsExportVar.FindStringSubmatch(line); m != nil {
			syms.Declarations = append(syms.Declarations, m[1])
		}
	})
	return syms, err
}
