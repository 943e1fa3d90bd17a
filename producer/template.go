// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package producer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TemplateProducer generates patches deterministically from the target's
// current content. It never calls out to a model, so identical inputs
// always yield identical patches; the runner relies on this when a
// resumed session replays a stage.
type TemplateProducer struct {
	root string
}

// NewTemplateProducer returns a producer reading targets under root.
func NewTemplateProducer(root string) *TemplateProducer {
	return &TemplateProducer{root: root}
}

func (t *TemplateProducer) Name() string { return "template" }

// Produce rewrites the target by structure alone: existing rule, pattern,
// and workflow sections are carried over, everything else is grouped
// under a migration preamble naming the boundary. A missing target
// produces a skeleton file.
func (t *TemplateProducer) Produce(ctx context.Context, boundary, target string) ([]Patch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, err := os.ReadFile(filepath.Join(t.root, target))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrProduce, target, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Migrated: %s\n\n", boundary)
	fmt.Fprintf(&b, "Source: %s\n\n", target)

	if len(source) == 0 {
		b.WriteString("## Rules\n\n## Patterns\n\n## Workflows\n")
	} else {
		b.Write(source)
		if !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
	}

	return []Patch{{
		Path:        target,
		Content:     b.String(),
		Description: fmt.Sprintf("template migration of %s for boundary %s", target, boundary),
	}}, nil
}
