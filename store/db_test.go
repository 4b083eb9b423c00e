// Package store implements the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package store

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShardIndexStableAndBounded(t *testing.T) {
	db := NewDb()
	for _, key := range []string{"", "a", "foo", "counter", "{tag}x", "日本語"} {
		i := db.ShardIndex(key)
		require.GreaterOrEqual(t, i, 0)
		require.Less(t, i, NumShards)
		require.Equal(t, i, db.ShardIndex(key), "index must be deterministic")
	}
}

func TestLockKeysAscendingOrder(t *testing.T) {
	db := NewDb()
	keys := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"}
	ls := db.LockKeys(keys)
	defer ls.Release()

	require.True(t, sort.IntsAreSorted(ls.Indices), "acquired shard indices must ascend")
	for _, k := range keys {
		require.True(t, ls.Holds(db.ShardIndex(k)))
	}
}

func TestLockKeysDeduplicatesShards(t *testing.T) {
	db := NewDb()
	ls := db.LockKeys([]string{"same", "same", "same"})
	defer ls.Release()
	require.Len(t, ls.Indices, 1)
	require.Equal(t, LockSingle, ls.Kind)
}

func TestUpgradeMergesAndStaysSorted(t *testing.T) {
	db := NewDb()
	ls := db.LockSingle("one")
	ls.Upgrade([]string{"two", "three", "four"})
	defer ls.Release()

	require.True(t, sort.IntsAreSorted(ls.Indices))
	for _, k := range []string{"one", "two", "three", "four"} {
		require.True(t, ls.Holds(db.ShardIndex(k)))
	}

	// Upgrading with already-held keys is a no-op.
	n := len(ls.Indices)
	ls.Upgrade([]string{"one", "two"})
	require.Len(t, ls.Indices, n)
}

func TestLockAllCoversEverything(t *testing.T) {
	db := NewDb()
	ls := db.LockAll()
	require.Len(t, ls.Indices, NumShards)
	require.True(t, sort.IntsAreSorted(ls.Indices))
	ls.Release()

	// Released guards must be reacquirable.
	ls2 := db.LockAll()
	ls2.Release()
}

func TestReleaseIdempotent(t *testing.T) {
	db := NewDb()
	ls := db.LockSingle("k")
	ls.Release()
	ls.Release() // second release must not unlock an unheld mutex

	ls2 := db.LockSingle("k")
	ls2.Release()
}

func TestUsedMemoryAndKeyCount(t *testing.T) {
	db := NewDb()
	keys := []string{"a", "bb", "ccc"}
	for _, k := range keys {
		ls := db.LockSingle(k)
		ls.CacheFor(k).Put(k, NewString([]byte(k)))
		ls.Release()
	}
	require.EqualValues(t, len(keys), db.KeyCount())
	require.Greater(t, db.UsedMemory(), int64(0))

	require.EqualValues(t, len(keys), db.FlushAll())
	require.EqualValues(t, 0, db.KeyCount())
	require.EqualValues(t, 0, db.UsedMemory())
}

func TestOutcomeMergeAlgebra(t *testing.T) {
	require.Equal(t, Flushed(), Flushed().Merge(Wrote(3)))
	require.Equal(t, Flushed(), Deleted(1).Merge(Flushed()))
	require.Equal(t, Deleted(5), Deleted(2).Merge(Wrote(3)), "delete absorbs write counts")
	require.Equal(t, Wrote(4), Wrote(1).Merge(Wrote(3)))
	require.Equal(t, Wrote(2), DidNotWrite().Merge(Wrote(2)))
	require.Equal(t, DidNotWrite(), DidNotWrite().Merge(DidNotWrite()))
	require.False(t, DidNotWrite().DidWrite())
	require.True(t, Deleted(1).DidWrite())
}
