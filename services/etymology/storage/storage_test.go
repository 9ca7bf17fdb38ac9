// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_SetGetDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "etymon_cache_test", []byte(`{"a":1}`)))

	got, err := store.Get(ctx, "etymon_cache_test")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), got)

	// Overwrite
	require.NoError(t, store.Set(ctx, "etymon_cache_test", []byte(`{"a":2}`)))
	got, err = store.Get(ctx, "etymon_cache_test")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":2}`), got)

	require.NoError(t, store.Delete(ctx, "etymon_cache_test"))
	_, err = store.Get(ctx, "etymon_cache_test")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// Deleting an absent key is fine.
	assert.NoError(t, store.Delete(ctx, "etymon_cache_test"))
}

func TestBadgerStore_Keys(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "etymon_cache_alpha", []byte("1")))
	require.NoError(t, store.Set(ctx, "etymon_cache_beta", []byte("2")))
	require.NoError(t, store.Set(ctx, "etymon_credits_used", []byte("3")))

	keys, err := store.Keys(ctx, "etymon_cache_")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"etymon_cache_alpha", "etymon_cache_beta"}, keys)

	keys, err = store.Keys(ctx, "nothing_")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestBadgerStore_ContextCanceled(t *testing.T) {
	store := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Set(ctx, "k", []byte("v")), context.Canceled)
	assert.ErrorIs(t, store.Delete(ctx, "k"), context.Canceled)
	_, err = store.Keys(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBadgerStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.SyncWrites = false
	cfg.GCInterval = 0

	store, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "etymon_search_history", []byte("[]")))
	require.NoError(t, store.Close())

	// Reopen and read back.
	store, err = Open(cfg)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "etymon_search_history")
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), got)
	assert.Equal(t, dir, store.Path())
	assert.False(t, store.InMemory())
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestMemory_FaultInjection(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.FailSets = 1
	assert.Error(t, m.Set(ctx, "k", []byte("v")))
	assert.NoError(t, m.Set(ctx, "k", []byte("v")))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}
