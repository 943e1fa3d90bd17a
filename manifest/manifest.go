// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package manifest persists durable session and stage state on BadgerDB.
//
// The manifest is written after every stage transition so a later
// resume-from-stage invocation sees exactly where the previous run
// stopped. BadgerDB gives low-latency embedded storage with synchronous
// writes for durability.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a session or stage record does not exist.
var ErrNotFound = errors.New("manifest record not found")

// SessionRecord is the durable per-session state.
type SessionRecord struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	CurrentIndex int       `json:"current_index"`
	StageIDs     []string  `json:"stage_ids"`
	BackupDir    string    `json:"backup_dir"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StageRecord is the durable per-stage state, written after every
// transition.
type StageRecord struct {
	SessionID    string    `json:"session_id"`
	StageID      string    `json:"stage_id"`
	Boundary     string    `json:"boundary"`
	Status       string    `json:"status"`
	Critical     bool      `json:"critical"`
	RetryCount   int       `json:"retry_count"`
	TouchedFiles []string  `json:"touched_files"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store is a BadgerDB-backed manifest store.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
type Store struct {
	db *badger.DB
}

// Options configures a Store.
type Options struct {
	// Dir is the database directory. Required unless InMemory.
	Dir string

	// InMemory disables disk persistence; used by tests.
	InMemory bool

	// Logger receives BadgerDB's internal messages. Nil disables them.
	Logger *slog.Logger
}

// Open opens (creating if needed) the manifest store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("manifest directory is required")
	}

	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create manifest directory %s: %w", opts.Dir, err)
		}
		badgerOpts = badger.DefaultOptions(opts.Dir).WithSyncWrites(true)
	}
	badgerOpts = badgerOpts.WithNumVersionsToKeep(1)

	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(&badgerLogger{logger: opts.Logger})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open manifest database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database. Must be called at session end or abort.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutSession durably writes the session record.
func (s *Store) PutSession(rec SessionRecord) error {
	rec.UpdatedAt = time.Now()
	return s.put(sessionKey(rec.ID), rec)
}

// GetSession reads a session record. Returns ErrNotFound if absent.
func (s *Store) GetSession(id string) (SessionRecord, error) {
	var rec SessionRecord
	err := s.get(sessionKey(id), &rec)
	return rec, err
}

// PutStage durably writes a stage record; called after every transition.
func (s *Store) PutStage(rec StageRecord) error {
	rec.UpdatedAt = time.Now()
	return s.put(stageKey(rec.SessionID, rec.StageID), rec)
}

// GetStage reads one stage record. Returns ErrNotFound if absent.
func (s *Store) GetStage(sessionID, stageID string) (StageRecord, error) {
	var rec StageRecord
	err := s.get(stageKey(sessionID, stageID), &rec)
	return rec, err
}

// Stages reads all stage records for a session, in manifest key order.
func (s *Store) Stages(sessionID string) ([]StageRecord, error) {
	prefix := []byte("stage/" + sessionID + "/")
	var records []StageRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec StageRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decoding stage record: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) put(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding manifest record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("writing manifest record: %w", err)
	}
	return nil
}

func (s *Store) get(key []byte, out any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return err
}

func sessionKey(id string) []byte {
	return []byte("session/" + id)
}

func stageKey(sessionID, stageID string) []byte {
	return []byte("stage/" + sessionID + "/" + stageID)
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
