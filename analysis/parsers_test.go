// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"reflect"
	"testing"
)

func TestGoParser(t *testing.T) {
	src := `package main

import (
	"fmt"
	util "example.com/proj/util"
)

import "os"

type Widget struct{}

const MaxWidgets = 10

func NewWidget() *Widget { return nil }

func (w *Widget) Render() {}

	func notTopLevel() {}
`
	syms, err := (&goParser{}).Parse("main.go", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantImports := []string{"fmt", "example.com/proj/util", "os"}
	if !reflect.DeepEqual(syms.Imports, wantImports) {
		t.Errorf("Imports = %v, want %v", syms.Imports, wantImports)
	}
	wantDecls := []string{"Widget", "MaxWidgets", "NewWidget", "Render"}
	if !reflect.DeepEqual(syms.Declarations, wantDecls) {
		t.Errorf("Declarations = %v, want %v", syms.Declarations, wantDecls)
	}
}

func TestPythonParser(t *testing.T) {
	src := `import os
import collections.abc as abc
from .sibling import helper
from pkg.mod import thing
from . import neighbor

class Engine:
    def hidden(self):
        pass

def run():
    pass

async def run_async():
    pass
`
	syms, err := (&pythonParser{}).Parse("engine.py", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantImports := []string{"os", "collections.abc", ".sibling", "pkg.mod"}
	if !reflect.DeepEqual(syms.Imports, wantImports) {
		t.Errorf("Imports = %v, want %v", syms.Imports, wantImports)
	}
	wantDecls := []string{"Engine", "run", "run_async"}
	if !reflect.DeepEqual(syms.Declarations, wantDecls) {
		t.Errorf("Declarations = %v, want %v", syms.Declarations, wantDecls)
	}
}

func TestJavascriptParser(t *testing.T) {
	src := `import React from 'react';
import { helper } from './util/helper';
export { thing } from '../shared/thing';
const legacy = require('./legacy');

export function render() {}

export const config = {};

class Hidden {}
`
	syms, err := (&javascriptParser{}).Parse("app.ts", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantImports := []string{"react", "./util/helper", "../shared/thing", "./legacy"}
	if !reflect.DeepEqual(syms.Imports, wantImports) {
		t.Errorf("Imports = %v, want %v", syms.Imports, wantImports)
	}
	wantDecls := []string{"render", "config", "Hidden"}
	if !reflect.DeepEqual(syms.Declarations, wantDecls) {
		t.Errorf("Declarations = %v, want %v", syms.Declarations, wantDecls)
	}
}

func TestRegistryReplacement(t *testing.T) {
	r := NewRegistry()
	if r.ParserFor("x.go") == nil {
		t.Fatal("expected built-in Go parser")
	}
	if r.ParserFor("x.unknown") != nil {
		t.Fatal("expected nil for unknown extension")
	}

	custom := &pythonParser{}
	r.Register(custom, ".go")
	if r.ParserFor("x.go") != SymbolParser(custom) {
		t.Error("Register should replace the existing parser")
	}
}
