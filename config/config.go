// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads and validates the stagecraft configuration.
//
// Configuration errors are fatal and always surface before any file is
// written: a session is never started with an invalid config.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrConfiguration marks fatal, pre-write configuration failures.
var ErrConfiguration = errors.New("invalid configuration")

// Config is the complete stagecraft run configuration.
//
// Values are resolved by viper in the usual order: flags, environment
// (STAGECRAFT_*), config file, then the defaults applied by Load.
type Config struct {
	// ProjectRoot is the root of the codebase being migrated.
	ProjectRoot string `mapstructure:"project_root" validate:"required"`

	// Include are doublestar glob patterns selecting source files,
	// relative to ProjectRoot.
	Include []string `mapstructure:"include" validate:"required,min=1"`

	// Exclude are doublestar glob patterns removed from the include set.
	Exclude []string `mapstructure:"exclude"`

	// WorkDir holds session state: backups, the manifest store, and logs.
	// Default: {ProjectRoot}/.stagecraft
	WorkDir string `mapstructure:"work_dir"`

	// BuildCommand is executed from ProjectRoot to validate a stage.
	BuildCommand []string `mapstructure:"build_command" validate:"required,min=1"`

	// TestCommand is executed after a successful build. Optional.
	TestCommand []string `mapstructure:"test_command"`

	// BuildTimeout bounds one build invocation. Default: 5m.
	BuildTimeout time.Duration `mapstructure:"build_timeout" validate:"gt=0"`

	// TestTimeout bounds one test invocation. Default: 10m.
	TestTimeout time.Duration `mapstructure:"test_timeout" validate:"gt=0"`

	// MaxRetries is the per-stage attempt budget. A stage that fails
	// validation this many times becomes permanently failed. Default: 3.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=1,lte=10"`

	// MaxStageSize caps the number of files per stage; larger boundaries
	// are split to bound blast radius. Default: 25.
	MaxStageSize int `mapstructure:"max_stage_size" validate:"gte=1"`

	// ContinueOnNonCriticalFailure lets the session proceed past a
	// permanently failed non-critical stage (its files stay rolled back).
	ContinueOnNonCriticalFailure bool `mapstructure:"continue_on_non_critical_failure"`

	// ConfidenceThreshold gates the auto-merge recommendation. Default: 70.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" validate:"gte=0,lte=100"`

	// OpenAIModel selects the model for the AI patch producer. When
	// OpenAIAPIKey is empty the deterministic template producer is used
	// exclusively.
	OpenAIModel string `mapstructure:"openai_model"`

	// OpenAIAPIKey authenticates the AI patch producer. Read from
	// STAGECRAFT_OPENAI_API_KEY; never written to the config file.
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
}

// SetDefaults registers default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("include", []string{"**/*.go", "**/*.py", "**/*.js", "**/*.ts"})
	v.SetDefault("exclude", []string{"**/vendor/**", "**/node_modules/**", "**/.git/**"})
	v.SetDefault("build_timeout", 5*time.Minute)
	v.SetDefault("test_timeout", 10*time.Minute)
	v.SetDefault("max_retries", 3)
	v.SetDefault("max_stage_size", 25)
	v.SetDefault("confidence_threshold", 70.0)
	v.SetDefault("openai_model", "gpt-4o-mini")
}

// Load unmarshals and validates configuration from a viper instance.
//
// # Outputs
//
//   - *Config: Validated configuration with defaults applied.
//   - error: Wraps ErrConfiguration on any unmarshal or validation failure.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = cfg.ProjectRoot + "/.stagecraft"
	}

	if err := validator.New().Struct(&cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return nil, fmt.Errorf("%w: field %s failed %q validation", ErrConfiguration, first.Field(), first.Tag())
		}
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return &cfg, nil
}
