// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package migrate

import (
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stagecraft-dev/stagecraft/manifest"
	"github.com/stagecraft-dev/stagecraft/pkg/logging"
)

// Session carries the shared per-run state: identity, logging, metrics,
// and the durable manifest store. It is created at run start, passed
// explicitly to every component, and closed at run end or abort. There
// is no package-level shared state.
type Session struct {
	ID        string
	Logger    *logging.Logger
	Metrics   *Metrics
	Registry  *prometheus.Registry
	Store     *manifest.Store
	StartedAt time.Time
}

// NewSession builds a session context. An empty id mints a fresh one;
// passing an existing id resumes that session's manifest state.
func NewSession(id string, logger *logging.Logger, store *manifest.Store) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	registry := prometheus.NewRegistry()
	return &Session{
		ID:        id,
		Logger:    logger.With("session", id),
		Metrics:   NewMetrics(registry),
		Registry:  registry,
		Store:     store,
		StartedAt: time.Now(),
	}
}

// Close releases the session's durable resources.
func (s *Session) Close() error {
	return s.Store.Close()
}
