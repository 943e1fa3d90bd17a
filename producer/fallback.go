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

	"github.com/stagecraft-dev/stagecraft/pkg/logging"
)

// FallbackProducer tries a primary producer and degrades to a
// deterministic fallback when it fails. Every target processed is
// screened and recorded in the processing Log, whichever path produced
// it. A primary failure is a warning, not an abort.
type FallbackProducer struct {
	primary  Producer
	fallback Producer
	log      *Log
	logger   *logging.Logger
}

// NewFallbackProducer composes primary and fallback production. Primary
// may be nil, in which case every target goes straight to the fallback.
func NewFallbackProducer(primary, fallback Producer, log *Log, logger *logging.Logger) *FallbackProducer {
	return &FallbackProducer{
		primary:  primary,
		fallback: fallback,
		log:      log,
		logger:   logger,
	}
}

func (f *FallbackProducer) Name() string { return "fallback" }

// Produce returns screened patches for the target and appends an Entry
// describing the outcome. Only a fallback failure or a screening
// rejection is returned as an error.
func (f *FallbackProducer) Produce(ctx context.Context, boundary, target string) ([]Patch, error) {
	var patches []Patch
	method := ""

	if f.primary != nil {
		out, err := f.primary.Produce(ctx, boundary, target)
		if err == nil {
			patches, method = out, f.primary.Name()
		} else {
			// Context cancellation is not a production failure; honor it.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn("primary producer failed, falling back",
				"target", target, "boundary", boundary, "error", err)
		}
	}

	if method == "" {
		out, err := f.fallback.Produce(ctx, boundary, target)
		if err != nil {
			return nil, fmt.Errorf("fallback production for %s: %w", target, err)
		}
		patches, method = out, f.fallback.Name()
	}

	if err := Screen(patches); err != nil {
		return nil, fmt.Errorf("screening output for %s: %w", target, err)
	}

	rules, patterns, workflows := countItems(patches)
	f.log.Append(Entry{
		Path:      target,
		Method:    method,
		Rules:     rules,
		Patterns:  patterns,
		Workflows: workflows,
		Empty:     isEmpty(patches),
	})
	return patches, nil
}
