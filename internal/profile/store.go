// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package profile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	plog "github.com/ManuGH/petwatch/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 100 * time.Millisecond

// Store holds the current profile. A missing file yields an empty profile.
type Store struct {
	path   string
	logger zerolog.Logger

	mu      sync.RWMutex
	current Profile
	loaded  bool
	reloads chan struct{}
}

// Open loads path once. A missing file is not an error.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		logger:  plog.WithComponent("profile"),
		reloads: make(chan struct{}, 1),
	}
	p, err := Load(path)
	switch {
	case err == nil:
		s.current, s.loaded = p, true
	case errors.Is(err, ErrNotFound):
		s.logger.Info().Str(plog.FieldEvent, "profile.missing").Str(plog.FieldPath, path).Msg("no profile file, arming requires explicit recipients")
	default:
		return nil, err
	}
	return s, nil
}

// Path returns the watched file.
func (s *Store) Path() string { return s.path }

// Snapshot returns a deep copy of the current profile and whether one was
// loaded.
func (s *Store) Snapshot() (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone(), s.loaded
}

// Reloaded signals after each successful reload. Used by tests.
func (s *Store) Reloaded() <-chan struct{} { return s.reloads }

// Reload re-reads the file. An invalid file keeps the previous snapshot.
func (s *Store) Reload() error {
	p, err := Load(s.path)
	if err != nil {
		s.logger.Warn().Err(err).
			Str(plog.FieldEvent, "profile.reload_failed").
			Str(plog.FieldPath, s.path).
			Msg("profile reload failed, keeping previous profile")
		return err
	}
	s.mu.Lock()
	s.current, s.loaded = p, true
	s.mu.Unlock()

	s.logger.Info().
		Str(plog.FieldEvent, "profile.reloaded").
		Int(plog.FieldRecipients, len(p.Contacts)).
		Msg("profile reloaded")
	select {
	case s.reloads <- struct{}{}:
	default:
	}
	return nil
}

// Watch reloads the profile whenever the file changes until ctx is done.
// The parent directory is watched so atomic replaces are seen.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}
	target := filepath.Base(s.path)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("watcher channel closed")
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				debounce = time.After(reloadDebounce)
			}
		case <-debounce:
			debounce = nil
			_ = s.Reload()
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			s.logger.Warn().Err(err).Msg("fsnotify watcher error")
		}
	}
}
