// Package store implements the sharded keyspace: typed values, per-shard
// caches with secondary indexes, the lock planner, and the blocking-command
// coordinator.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package store

import (
	"sort"
	"sync"

	"github.com/OneOfOne/xxhash"
)

// NumShards is the fixed number of keyspace partitions in one instance.
// Must stay a power of two; the shard index is a mask over the key digest.
const NumShards = 256

type (
	shard struct {
		mu    sync.Mutex
		cache *ShardCache
	}

	// Db is the N-shard keyspace. One mutex per shard; no global data-plane
	// lock. All multi-shard acquisition goes through LockSet, which sorts
	// indices ascending - the sole deadlock-prevention mechanism.
	Db struct {
		shards [NumShards]*shard
	}
)

func NewDb() *Db {
	db := &Db{}
	for i := range db.shards {
		db.shards[i] = &shard{cache: newShardCache()}
	}
	return db
}

// ShardIndex maps a key to its owning shard.
func (db *Db) ShardIndex(key string) int {
	return int(xxhash.ChecksumString64(key) & (NumShards - 1))
}

// CacheUnlocked exposes a shard cache without locking; only the lock-free
// counters (memory, count) may be read through it.
func (db *Db) CacheUnlocked(idx int) *ShardCache { return db.shards[idx].cache }

// UsedMemory sums the shard-local counters; lock-free.
func (db *Db) UsedMemory() (n int64) {
	for i := range db.shards {
		n += db.shards[i].cache.CurrentMemory()
	}
	return n
}

// KeyCount sums the shard-local entry counters; lock-free.
func (db *Db) KeyCount() (n int64) {
	for i := range db.shards {
		n += db.shards[i].cache.Count()
	}
	return n
}

//
// lock plans
//

type LockKind int

const (
	LockNone LockKind = iota
	LockSingle
	LockMulti
	LockAll
)

// LockSet is the acquired realization of a lock plan: the owning Db plus the
// ascending list of held shard indices.
type LockSet struct {
	db       *Db
	Indices  []int
	Kind     LockKind
	released bool
}

// PlanNone is the empty lock set.
func (db *Db) PlanNone() *LockSet { return &LockSet{db: db, Kind: LockNone} }

// LockSingle acquires the shard owning key.
func (db *Db) LockSingle(key string) *LockSet {
	idx := db.ShardIndex(key)
	db.shards[idx].mu.Lock()
	return &LockSet{db: db, Kind: LockSingle, Indices: []int{idx}}
}

// LockKeys acquires the distinct shards owning keys, ascending.
func (db *Db) LockKeys(keys []string) *LockSet {
	idxs := db.indicesFor(keys)
	for _, i := range idxs {
		db.shards[i].mu.Lock()
	}
	kind := LockMulti
	if len(idxs) == 1 {
		kind = LockSingle
	}
	return &LockSet{db: db, Kind: kind, Indices: idxs}
}

// LockIndex acquires one shard by index (iterator-style per-step locking).
func (db *Db) LockIndex(idx int) *LockSet {
	db.shards[idx].mu.Lock()
	return &LockSet{db: db, Kind: LockSingle, Indices: []int{idx}}
}

// LockAll acquires every shard, 0..NumShards-1.
func (db *Db) LockAll() *LockSet {
	idxs := make([]int, NumShards)
	for i := range db.shards {
		db.shards[i].mu.Lock()
		idxs[i] = i
	}
	return &LockSet{db: db, Kind: LockAll, Indices: idxs}
}

func (db *Db) indicesFor(keys []string) []int {
	seen := make(map[int]struct{}, len(keys))
	idxs := make([]int, 0, len(keys))
	for _, k := range keys {
		i := db.ShardIndex(k)
		if _, ok := seen[i]; !ok {
			seen[i] = struct{}{}
			idxs = append(idxs, i)
		}
	}
	sort.Ints(idxs)
	return idxs
}

// Release drops every held guard. Idempotent.
func (ls *LockSet) Release() {
	if ls.released {
		return
	}
	ls.released = true
	for i := len(ls.Indices) - 1; i >= 0; i-- {
		ls.db.shards[ls.Indices[i]].mu.Unlock()
	}
}

// Holds reports whether the set covers shard idx.
func (ls *LockSet) Holds(idx int) bool {
	if ls.Kind == LockAll {
		return true
	}
	for _, i := range ls.Indices {
		if i == idx {
			return true
		}
	}
	return false
}

// Cache returns the shard cache for a held index. The caller must have
// verified coverage via Holds (or obtained idx from the plan itself).
func (ls *LockSet) Cache(idx int) *ShardCache { return ls.db.shards[idx].cache }

// CacheFor resolves key to its held shard cache.
func (ls *LockSet) CacheFor(key string) *ShardCache {
	return ls.Cache(ls.db.ShardIndex(key))
}

// Upgrade merges the shards of newKeys into the set, acquiring only the
// missing indices in ascending order and re-sorting the held list.
func (ls *LockSet) Upgrade(newKeys []string) {
	missing := make([]int, 0, len(newKeys))
	for _, k := range newKeys {
		idx := ls.db.ShardIndex(k)
		if !ls.Holds(idx) && !contains(missing, idx) {
			missing = append(missing, idx)
		}
	}
	if len(missing) == 0 {
		return
	}
	sort.Ints(missing)
	for _, i := range missing {
		ls.db.shards[i].mu.Lock()
	}
	ls.Indices = append(ls.Indices, missing...)
	sort.Ints(ls.Indices)
	if ls.Kind == LockNone || ls.Kind == LockSingle {
		ls.Kind = LockMulti
	}
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// FlushAll clears every shard under the all-shard lock; returns entries
// dropped.
func (db *Db) FlushAll() (n int64) {
	ls := db.LockAll()
	defer ls.Release()
	for i := range db.shards {
		n += db.shards[i].cache.Clear()
	}
	return n
}
