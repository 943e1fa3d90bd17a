// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package producer

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ErrRejected is the sentinel wrapped by screening rejections.
var ErrRejected = errors.New("patch rejected")

// maxPatchBytes bounds a single produced file. Model output past this
// size is almost certainly runaway generation.
const maxPatchBytes = 1 << 20

// Screen validates produced patches before they reach the safety layer.
//
// # Description
//
// Rejects patches with empty or escaping paths, oversized content, and
// content shaped like a unified diff. The producer contract is full
// replacement content; a model that answers with a diff would be written
// to disk verbatim and corrupt the target, so diff-shaped output fails
// screening instead.
func Screen(patches []Patch) error {
	for _, p := range patches {
		if p.Path == "" {
			return fmt.Errorf("%w: empty path", ErrRejected)
		}
		if path.IsAbs(p.Path) || strings.HasPrefix(path.Clean(p.Path), "..") {
			return fmt.Errorf("%w: path %s escapes project root", ErrRejected, p.Path)
		}
		if len(p.Content) > maxPatchBytes {
			return fmt.Errorf("%w: %s content exceeds %d bytes", ErrRejected, p.Path, maxPatchBytes)
		}
		if looksLikeDiff(p.Content) {
			return fmt.Errorf("%w: %s content is a unified diff, expected full file content", ErrRejected, p.Path)
		}
	}
	return nil
}

func looksLikeDiff(content string) bool {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "--- ") && !strings.HasPrefix(trimmed, "diff ") {
		return false
	}
	reader := diff.NewMultiFileDiffReader(strings.NewReader(trimmed))
	fileDiffs, err := reader.ReadAllFiles()
	return err == nil && len(fileDiffs) > 0
}
