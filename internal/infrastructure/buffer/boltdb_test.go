package buffer

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "buffer.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_FIFO(t *testing.T) {
	store := openStore(t)
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Enqueue(Item{ID: "second", Entity: EntityTask, QueuedAt: base.Add(time.Second)}))
	require.NoError(t, store.Enqueue(Item{ID: "first", Entity: EntityTask, QueuedAt: base}))

	items, err := store.Peek(10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].ID)
	assert.Equal(t, "second", items[1].ID)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	require.NoError(t, store.Remove(items[0]))
	size, err = store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestStore_RetryMovesToBack(t *testing.T) {
	store := openStore(t)
	base := time.Now().UTC().Add(-time.Minute)

	require.NoError(t, store.Enqueue(Item{ID: "a", QueuedAt: base}))
	require.NoError(t, store.Enqueue(Item{ID: "b", QueuedAt: base.Add(time.Second)}))

	items, err := store.Peek(1)
	require.NoError(t, err)
	require.NoError(t, store.Retry(items[0], errors.New("connection refused")))

	items, err = store.Peek(10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, "a", items[1].ID)
	assert.Equal(t, 1, items[1].Attempts)
	assert.Equal(t, "connection refused", items[1].LastError)
}

func TestStore_Cleanup(t *testing.T) {
	store := openStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.Enqueue(Item{ID: "stale", QueuedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.Enqueue(Item{ID: "fresh", QueuedAt: now}))

	removed, err := store.Cleanup(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	items, err := store.Peek(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fresh", items[0].ID)
}

func TestStore_CleanupCountsFromFirstQueue(t *testing.T) {
	store := openStore(t)
	now := time.Now().UTC()
	first := now.Add(-48 * time.Hour)

	require.NoError(t, store.Enqueue(Item{ID: "retried", QueuedAt: first}))
	items, err := store.Peek(1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NoError(t, store.Retry(items[0], errors.New("connection refused")))

	items, err = store.Peek(1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].QueuedAt.After(now.Add(-time.Minute)))
	assert.True(t, first.Equal(items[0].FirstQueuedAt))

	removed, err := store.Cleanup(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func putRaw(t *testing.T, store *Store, key, value string) {
	t.Helper()
	require.NoError(t, store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(store.bucket).Put([]byte(key), []byte(value))
	}))
}

func TestStore_PeekDropsCorruptRecords(t *testing.T) {
	store := openStore(t)

	putRaw(t, store, "00000000000000000000_garbage", "{not json")
	require.NoError(t, store.Enqueue(Item{ID: "ok", QueuedAt: time.Now().UTC()}))

	items, err := store.Peek(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ok", items[0].ID)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestStore_CleanupDropsCorruptRecords(t *testing.T) {
	store := openStore(t)

	putRaw(t, store, "00000000000000000000_garbage", "\x00\x01")
	require.NoError(t, store.Enqueue(Item{ID: "fresh", QueuedAt: time.Now().UTC()}))

	removed, err := store.Cleanup(time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestStore_NilIsClosed(t *testing.T) {
	var store *Store
	_, err := store.Size()
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}
