// Package store implements the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSweeperReclaimsExpired(t *testing.T) {
	db := NewDb()
	now := NowMs()
	stale := []string{"a", "b", "c"}
	for _, k := range stale {
		ls := db.LockSingle(k)
		v := NewString([]byte(k))
		v.ExpireAt = now - 1
		ls.CacheFor(k).Put(k, v)
		ls.Release()
	}
	ls := db.LockSingle("live")
	ls.CacheFor("live").Put("live", NewString([]byte("v")))
	ls.Release()

	var reported []string
	sw := NewSweeper(db, func(keys []string) { reported = append(reported, keys...) })
	deleted := sw.SweepOnce()

	require.Equal(t, 3, deleted)
	require.ElementsMatch(t, stale, reported)
	require.EqualValues(t, 1, db.KeyCount())

	// Second sweep finds nothing.
	require.Zero(t, sw.SweepOnce())
}

func TestSweeperDrainsBacklogOverRepeatedSweeps(t *testing.T) {
	db := NewDb()
	now := NowMs()
	// Expired keys land wherever they hash, so the count exceeds the
	// per-shard batch in aggregate; repeated sweeps must drain them all.
	for i := 0; i < sweepBatchPerShard*NumShards/4; i++ {
		k := "k" + string(rune('a'+i%26)) + string(rune('0'+i%10)) + string(rune('A'+(i/260)%26))
		ls := db.LockSingle(k)
		v := NewString([]byte("v"))
		v.ExpireAt = now - 1
		ls.CacheFor(k).Put(k, v)
		ls.Release()
	}
	sw := NewSweeper(db, nil)
	total := 0
	for i := 0; i < 300 && db.KeyCount() > 0; i++ {
		total += sw.SweepOnce()
	}
	require.EqualValues(t, 0, db.KeyCount(), "repeated sweeps drain the backlog")
	require.Greater(t, total, 0)
}
