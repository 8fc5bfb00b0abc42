// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package timerstate persists the watchdog record as one JSON document per
// key on a pluggable key-value backend.
package timerstate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Record keys.
const (
	KeyActiveTimer        = "activeTimer"
	KeyTimerAlerted       = "timerAlerted"
	KeyLastDeliveryResult = "lastDeliveryResult"
	KeyActiveEventIDs     = "activeScheduledEventIds"
)

// Keys lists every record key in deletion order.
var Keys = []string{KeyActiveTimer, KeyActiveEventIDs, KeyLastDeliveryResult, KeyTimerAlerted}

// ErrClosed is returned by a backend after Close.
var ErrClosed = errors.New("timerstate: store closed")

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// KV is the persistence contract. Each Put replaces the whole value
// atomically; a reader never observes a partially written value.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a backend for OpenKV.
type Options struct {
	Backend string // sqlite|file|badger|redis|memory
	Path    string // database file or directory for local backends

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// OpenKV opens the configured backend.
func OpenKV(ctx context.Context, opts Options) (KV, error) {
	switch opts.Backend {
	case "", "sqlite":
		if err := ensureDir(filepath.Dir(opts.Path)); err != nil {
			return nil, err
		}
		return OpenSQLite(ctx, opts.Path)
	case "file":
		return OpenFile(opts.Path)
	case "badger":
		return OpenBadger(opts.Path)
	case "redis":
		return OpenRedis(ctx, RedisOptions{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
			Prefix:   opts.RedisPrefix,
		})
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown timer state backend: %s (supported: sqlite, file, badger, redis, memory)", opts.Backend)
	}
}

func checkKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("timerstate: invalid key %q", key)
	}
	return nil
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return nil
}
