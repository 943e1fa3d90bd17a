// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stagecraft-dev/stagecraft/safety"
)

var restoreMirror string

// restoreCmd reconstructs the pre-migration tree from a session's
// backup mirror. The mirror alone is sufficient; no manifest is needed.
var restoreCmd = &cobra.Command{
	Use:   "restore <session-id>",
	Short: "Restore all files from a session's backup mirror",
	Long: `Restores every backed-up file of a session to its pre-migration
content. Use this for manual recovery after an abort or a crash.

The backup mirror lives under <work-dir>/backups/<session-id> and
preserves original relative paths; --mirror overrides the location.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return exitWith(1, err)
		}
		logger := newLogger(cfg.WorkDir)
		defer logger.Close()

		mirror := restoreMirror
		if mirror == "" {
			mirror = filepath.Join(cfg.WorkDir, "backups", args[0])
		}

		safe, err := safety.NewManager(cfg.ProjectRoot, mirror, logger)
		if err != nil {
			return exitWith(1, err)
		}
		if err := safe.LoadMirror(); err != nil {
			return exitWith(1, err)
		}
		paths := safe.TrackedPaths()
		if len(paths) == 0 {
			return exitWith(1, fmt.Errorf("no backups found under %s", mirror))
		}
		if err := safe.RestoreAll(); err != nil {
			return exitWith(1, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Restored %d files from %s\n", len(paths), mirror)
		return nil
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restoreMirror, "mirror", "",
		"Backup mirror directory (default: <work-dir>/backups/<session-id>)")
}
