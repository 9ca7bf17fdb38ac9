// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storage provides the local key-value store the etymology
// records live in: cached definitions, the credit ledger, and the
// search history.
//
// BadgerDB backs the persistent implementation. It is embedded, has
// low-latency access, and gives us per-process transactional writes.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrKeyNotFound is returned by Get when the key has no value.
var ErrKeyNotFound = errors.New("storage: key not found")

// Store is the key-value surface the etymology records are built on.
//
// Implementations must be safe for concurrent use. Keys are flat
// strings; callers scope them with prefixes ("etymon_cache_...").
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key, replacing any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every key starting with prefix, in store order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the store's resources.
	Close() error
}

// Config holds configuration for a BadgerDB-backed store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent databases. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Default: 5 minutes. Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	// Default: 0.5.
	GCDiscardRatio float64
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration optimized for testing: no disk
// I/O, no sync writes, GC disabled.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		GCInterval: 0,
	}
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

// BadgerStore is the BadgerDB-backed Store.
//
// Thread Safety: Safe for concurrent use; BadgerDB transactions give
// each operation atomicity within the process.
type BadgerStore struct {
	db       *badger.DB
	gcStop   chan struct{}
	gcDone   chan struct{}
	path     string
	inMemory bool
}

// Open creates and opens a BadgerDB-backed store.
//
// # Description
//
// Opens a database at the configured path, or in memory if InMemory is
// true. Creates the directory if it doesn't exist, and starts the GC
// runner when GCInterval is set on a persistent store.
//
// # Inputs
//
//   - cfg: Store configuration. Path is required unless InMemory.
//
// # Outputs
//
//   - *BadgerStore: The opened store. Caller must Close() when done.
//   - error: Non-nil if the path is invalid or the database cannot open.
func Open(cfg Config) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &BadgerStore{
		db:       db,
		path:     cfg.Path,
		inMemory: cfg.InMemory,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	}

	return s, nil
}

// OpenInMemory is a convenience function for opening an in-memory
// store for tests. Data is lost when closed.
func OpenInMemory() (*BadgerStore, error) {
	return Open(InMemoryConfig())
}

// Get returns the value for key, or ErrKeyNotFound.
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set writes value under key, replacing any existing value.
func (s *BadgerStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys returns every key starting with prefix, in store order.
func (s *BadgerStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list keys %s*: %w", prefix, err)
	}
	return keys, nil
}

// Close stops the GC runner and closes the database. Safe to call
// multiple times.
func (s *BadgerStore) Close() error {
	if s.gcStop != nil {
		select {
		case <-s.gcStop:
			// already closed
		default:
			close(s.gcStop)
			<-s.gcDone
		}
	}
	return s.db.Close()
}

// Path returns the database path, or empty for in-memory stores.
func (s *BadgerStore) Path() string {
	return s.path
}

// InMemory reports whether this store has no disk persistence.
func (s *BadgerStore) InMemory() bool {
	return s.inMemory
}

func (s *BadgerStore) runGC(interval time.Duration, ratio float64, logger *slog.Logger) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when nothing needed
			// collecting, which is not an error.
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
				logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

var _ Store = (*BadgerStore)(nil)

// Memory is a map-backed Store for tests that need to inject
// failures or inspect writes without a real database.
//
// Thread Safety: NOT safe for concurrent use; intended for
// single-goroutine tests.
type Memory struct {
	Data map[string][]byte

	// FailSets makes the next N Set calls fail, simulating quota
	// exhaustion. Decremented per failing call.
	FailSets int

	// SetErr is the error returned while FailSets > 0.
	SetErr error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{Data: make(map[string][]byte)}
}

// Get returns the value for key, or ErrKeyNotFound.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.Data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set writes value under key, honoring the FailSets fault injection.
func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if m.FailSets > 0 {
		m.FailSets--
		if m.SetErr != nil {
			return m.SetErr
		}
		return errors.New("storage: write rejected")
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.Data[key] = v
	return nil
}

// Delete removes key.
func (m *Memory) Delete(ctx context.Context, key string) error {
	delete(m.Data, key)
	return nil
}

// Keys returns every key starting with prefix.
func (m *Memory) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range m.Data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
