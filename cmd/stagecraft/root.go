// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stagecraft-dev/stagecraft/config"
	"github.com/stagecraft-dev/stagecraft/pkg/logging"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

var (
	flagConfigFile  string // Explicit config file path
	flagProjectRoot string // Overrides project_root from the config file
	flagVerbose     bool   // Debug-level logging
	flagQuiet       bool   // Suppress console output, file log only
)

var rootCmd = &cobra.Command{
	Use:   "stagecraft",
	Short: "Staged, validated, recoverable codebase migrations",
	Long: `Stagecraft applies generated file patches in discrete, validated stages.

Every file is backed up before its first modification, every stage is
validated with the project's own build and test commands, and any failure
rolls the affected files back. An interrupted session can be resumed, and
an aborted one restores the pre-migration tree.

Typical flow:
  stagecraft run                      # full migration session
  stagecraft resume <session-id>      # continue an interrupted session
  stagecraft evaluate --session <id>  # score the results
  stagecraft restore <backup-dir>     # manual recovery from a mirror`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigFile, "config", "c", "",
		"Config file (default: stagecraft.yaml in the project root)")
	rootCmd.PersistentFlags().StringVar(&flagProjectRoot, "project-root", ".",
		"Root of the codebase being migrated")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false,
		"Suppress console logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(restoreCmd)
}

// loadConfig resolves configuration: defaults, config file, environment
// (STAGECRAFT_*), then flags.
func loadConfig() (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)

	v.SetEnvPrefix("STAGECRAFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flagConfigFile != "" {
		v.SetConfigFile(flagConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}
	} else {
		v.SetConfigName("stagecraft")
		v.SetConfigType("yaml")
		v.AddConfigPath(flagProjectRoot)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
			}
		}
	}

	if flagProjectRoot != "" {
		v.Set("project_root", flagProjectRoot)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving project root: %v", config.ErrConfiguration, err)
	}
	cfg.ProjectRoot = abs
	if !filepath.IsAbs(cfg.WorkDir) {
		if cfg.WorkDir, err = filepath.Abs(cfg.WorkDir); err != nil {
			return nil, fmt.Errorf("%w: resolving work dir: %v", config.ErrConfiguration, err)
		}
	}
	return cfg, nil
}

// newLogger builds the session logger from the global flags.
func newLogger(workDir string) *logging.Logger {
	level := logging.LevelInfo
	if flagVerbose {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  filepath.Join(workDir, "logs"),
		Service: "stagecraft",
		Quiet:   flagQuiet,
	})
}
