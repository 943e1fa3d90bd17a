// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package safety provides the session-scoped backup/restore layer that
// makes migration writes recoverable.
//
// Every file is backed up into a mirror directory before its first
// modification in a session. The mirror tree preserves original relative
// paths, so it is sufficient on its own to reconstruct the pre-migration
// tree. The failure policy is fail closed: a backup failure aborts the
// write that triggered it, and a restore failure always propagates.
package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stagecraft-dev/stagecraft/pkg/logging"
)

// Sentinel errors for the safety package.
var (
	// ErrNoBackup is returned by Restore when no entry exists for a path.
	ErrNoBackup = errors.New("no backup entry for path")

	// ErrBackupFailed marks a failed snapshot; the triggering write is aborted.
	ErrBackupFailed = errors.New("backup failed")

	// ErrRestoreFailed is fatal: a partial rollback must never be silent.
	ErrRestoreFailed = errors.New("restore failed")

	// ErrOutsideRoot is returned for paths escaping the project root.
	ErrOutsideRoot = errors.New("path is outside the project root")
)

// BackupEntry records one pre-session snapshot.
//
// Invariant: at most one entry exists per path per session, created on
// the first modification only and never overwritten afterward.
type BackupEntry struct {
	// OriginalPath is the live path relative to the project root.
	OriginalPath string

	// SnapshotPath is the absolute path of the stored copy.
	SnapshotPath string

	// Checksum is the sha256 of the content at backup time.
	Checksum string

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time
}

// Manager is the session-scoped file safety layer.
//
// # Thread Safety
//
// Safe for concurrent use on disjoint paths. The entry map is the sole
// shared mutable state and is guarded by a mutex; no file I/O is
// performed while the lock is held.
type Manager struct {
	root      string
	mirrorDir string
	logger    *logging.Logger

	mu      sync.Mutex
	entries map[string]*BackupEntry
}

// NewManager creates a Manager rooted at the project root with a
// session-scoped mirror directory. The mirror directory is created if
// missing.
func NewManager(root, mirrorDir string, logger *logging.Logger) (*Manager, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	absMirror, err := filepath.Abs(mirrorDir)
	if err != nil {
		return nil, fmt.Errorf("resolving mirror dir: %w", err)
	}
	if err := os.MkdirAll(absMirror, 0755); err != nil {
		return nil, fmt.Errorf("creating mirror dir: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		root:      absRoot,
		mirrorDir: absMirror,
		logger:    logger,
		entries:   make(map[string]*BackupEntry),
	}, nil
}

// MirrorDir returns the absolute backup location for manual recovery.
func (m *Manager) MirrorDir() string { return m.mirrorDir }

// Backup snapshots a live file on its first modification in this session.
//
// # Description
//
// Computes the content checksum and copies the file into the mirror tree
// under its original relative path. Idempotent: a second call for an
// already-backed-up path is a no-op returning the original entry, so the
// pre-session snapshot survives even if the live file was modified again
// in between.
//
// # Inputs
//
//   - path: Live file path, absolute or relative to the project root.
//
// # Outputs
//
//   - *BackupEntry: The (possibly pre-existing) entry for the path.
//   - error: Wraps ErrBackupFailed; the caller must abort its write.
func (m *Manager) Backup(path string) (*BackupEntry, error) {
	rel, err := m.relPath(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if entry, ok := m.entries[rel]; ok {
		m.mu.Unlock()
		return entry, nil
	}
	m.mu.Unlock()

	// Snapshot outside the lock; concurrent writers to disjoint paths
	// must not serialize on file I/O.
	entry, err := m.snapshot(rel)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBackupFailed, rel, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[rel]; ok {
		// Another writer won the race; its snapshot is the pre-session
		// content, ours is discarded.
		return existing, nil
	}
	m.entries[rel] = entry
	return entry, nil
}

// Restore overwrites a live file with its session snapshot.
//
// Fails with ErrNoBackup if the path was never backed up. Restore
// failures are fatal and must propagate to the caller.
func (m *Manager) Restore(path string) error {
	rel, err := m.relPath(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	entry, ok := m.entries[rel]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoBackup, rel)
	}

	if err := m.restoreEntry(entry); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRestoreFailed, rel, err)
	}
	m.logger.Debug("restored file", "path", rel)
	return nil
}

// RestoreAll restores every tracked path; used for session-wide abort.
//
// All entries are attempted even after a failure, and any failure is
// returned joined: a silent partial rollback is never acceptable.
func (m *Manager) RestoreAll() error {
	m.mu.Lock()
	entries := make([]*BackupEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].OriginalPath < entries[j].OriginalPath
	})

	var errs []error
	for _, entry := range entries {
		if err := m.restoreEntry(entry); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrRestoreFailed, entry.OriginalPath, err))
		}
	}
	if len(errs) > 0 {
		m.logger.Error("restore-all incomplete",
			"failed", len(errs),
			"total", len(entries),
			"backup_dir", m.mirrorDir)
		return errors.Join(errs...)
	}

	m.logger.Info("restored all tracked files", "count", len(entries))
	return nil
}

// SafeWrite writes content to a live path with backup-first semantics.
//
// # Description
//
// If the live file exists it is backed up first; a backup failure aborts
// the write (fail closed). The write itself goes through a temp file in
// the target directory followed by a rename, so an interruption never
// leaves a partially written file.
//
// # Inputs
//
//   - path: Target path, absolute or relative to the project root.
//   - content: Full replacement content.
//
// # Outputs
//
//   - error: Wraps ErrBackupFailed when the snapshot failed, otherwise
//     the underlying write error.
func (m *Manager) SafeWrite(path string, content []byte) error {
	rel, err := m.relPath(path)
	if err != nil {
		return err
	}
	full := filepath.Join(m.root, filepath.FromSlash(rel))

	if _, err := os.Stat(full); err == nil {
		if _, err := m.Backup(rel); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("%w: stat %s: %v", ErrBackupFailed, rel, err)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	if err := atomicWrite(full, content); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

// LoadMirror rebuilds the entry map from an existing mirror tree. The
// mirror alone reconstructs the pre-migration tree, so a later process
// can restore a session it did not create.
func (m *Manager) LoadMirror() error {
	loaded := make(map[string]*BackupEntry)
	err := filepath.WalkDir(m.mirrorDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".stagecraft-") {
			return nil
		}
		rel, err := filepath.Rel(m.mirrorDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(content)
		info, err := d.Info()
		if err != nil {
			return err
		}
		loaded[rel] = &BackupEntry{
			OriginalPath: rel,
			SnapshotPath: path,
			Checksum:     hex.EncodeToString(sum[:]),
			CreatedAt:    info.ModTime(),
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: loading mirror %s: %v", ErrBackupFailed, m.mirrorDir, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for rel, entry := range loaded {
		if _, exists := m.entries[rel]; !exists {
			m.entries[rel] = entry
		}
	}
	m.logger.Info("loaded backup mirror", "entries", len(loaded), "mirror", m.mirrorDir)
	return nil
}

// TrackedPaths returns the relative paths backed up so far, sorted.
func (m *Manager) TrackedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.entries))
	for p := range m.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Entry returns the backup entry for a path, if any.
func (m *Manager) Entry(path string) (*BackupEntry, bool) {
	rel, err := m.relPath(path)
	if err != nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[rel]
	return entry, ok
}

// relPath normalizes a path to slash-separated form relative to root and
// rejects anything escaping it.
func (m *Manager) relPath(path string) (string, error) {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(m.root, filepath.FromSlash(path))
	}
	rel, err := filepath.Rel(m.root, full)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return rel, nil
}

// snapshot copies the live file into the mirror tree and returns an entry.
func (m *Manager) snapshot(rel string) (*BackupEntry, error) {
	src := filepath.Join(m.root, filepath.FromSlash(rel))
	content, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(content)

	dst := filepath.Join(m.mirrorDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, err
	}
	if err := atomicWrite(dst, content); err != nil {
		return nil, err
	}

	return &BackupEntry{
		OriginalPath: rel,
		SnapshotPath: dst,
		Checksum:     hex.EncodeToString(sum[:]),
		CreatedAt:    time.Now(),
	}, nil
}

// restoreEntry copies a snapshot back over the live file.
func (m *Manager) restoreEntry(entry *BackupEntry) error {
	content, err := os.ReadFile(entry.SnapshotPath)
	if err != nil {
		return err
	}
	dst := filepath.Join(m.root, filepath.FromSlash(entry.OriginalPath))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return atomicWrite(dst, content)
}

// atomicWrite writes via a temp file in the target directory plus rename.
func atomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".stagecraft-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
