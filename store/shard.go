// Package store implements the sharded keyspace: typed values, per-shard
// caches with secondary indexes, the lock planner, and the blocking-command
// coordinator.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package store

import (
	ratomic "sync/atomic"
)

// ShardCache is the map behind one shard mutex, plus the secondary indexes
// and the shard-local memory counter.
//
// Invariants:
//   - sum of entry sizes == mem
//   - every entry with a non-zero ExpireAt appears exactly once in ttlIdx
//   - every HTTPCache entry appears in tagIdx under each of its tags
type ShardCache struct {
	entries map[string]*StoredValue
	ttlIdx  map[string]int64
	tagIdx  map[string]map[string]struct{}
	mem     ratomic.Int64
	count   ratomic.Int64
}

func newShardCache() *ShardCache {
	return &ShardCache{
		entries: make(map[string]*StoredValue),
		ttlIdx:  make(map[string]int64),
		tagIdx:  make(map[string]map[string]struct{}),
	}
}

// CurrentMemory is safe without the shard lock.
func (sc *ShardCache) CurrentMemory() int64 { return sc.mem.Load() }

// Count is safe without the shard lock.
func (sc *ShardCache) Count() int64 { return sc.count.Load() }

// Peek returns the entry without expiry filtering or index updates.
func (sc *ShardCache) Peek(key string) *StoredValue { return sc.entries[key] }

// Get returns the live entry, passively evicting it when expired. The caller
// holds the shard mutex, so eviction is always permitted here.
func (sc *ShardCache) Get(key string, nowMs int64) *StoredValue {
	e, ok := sc.entries[key]
	if !ok {
		return nil
	}
	if e.IsExpired(nowMs) {
		sc.remove(key, e)
		return nil
	}
	return e
}

// GetOrInsertWith returns the live entry, replacing an absent or expired one
// with factory(). Reports whether a fresh entry was installed.
func (sc *ShardCache) GetOrInsertWith(key string, nowMs int64, factory func() *StoredValue) (*StoredValue, bool) {
	if e := sc.Get(key, nowMs); e != nil {
		return e, false
	}
	e := factory()
	sc.install(key, e)
	return e, true
}

// Put overwrites key with v, settling memory and both indexes. The version of
// v is stored as given; writers that must preserve WATCH semantics bump it
// from the old entry before calling Put.
func (sc *ShardCache) Put(key string, v *StoredValue) {
	if old, ok := sc.entries[key]; ok {
		sc.remove(key, old)
	}
	sc.install(key, v)
}

// Pop removes and returns the entry, or nil.
func (sc *ShardCache) Pop(key string) *StoredValue {
	e, ok := sc.entries[key]
	if !ok {
		return nil
	}
	sc.remove(key, e)
	return e
}

// Bump settles an in-place mutation made through Get: it refreshes the entry's
// version and size via Touch, then brings the memory counter and TTL index up
// to date. oldSize is the size before the mutation.
func (sc *ShardCache) Bump(key string, e *StoredValue, oldSize int64) {
	e.Touch()
	sc.addMem(e.Size - oldSize)
	sc.syncTTL(key, e)
}

// SetExpiry updates the entry deadline (0 clears it) and the TTL index.
func (sc *ShardCache) SetExpiry(key string, e *StoredValue, atMs int64) {
	e.ExpireAt = atMs
	e.Version++
	sc.syncTTL(key, e)
}

// Keys returns every key currently present, with no expiry filtering.
func (sc *ShardCache) Keys() []string {
	out := make([]string, 0, len(sc.entries))
	for k := range sc.entries {
		out = append(out, k)
	}
	return out
}

// ExpiredSample collects up to limit keys whose deadline has passed.
func (sc *ShardCache) ExpiredSample(nowMs int64, limit int) []string {
	var out []string
	for k, at := range sc.ttlIdx {
		if at <= nowMs {
			out = append(out, k)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// TaggedKeys returns the keys indexed under tag.
func (sc *ShardCache) TaggedKeys(tag string) []string {
	set := sc.tagIdx[tag]
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// Clear drops every entry and index; returns the number of entries dropped.
func (sc *ShardCache) Clear() int64 {
	n := int64(len(sc.entries))
	sc.entries = make(map[string]*StoredValue)
	sc.ttlIdx = make(map[string]int64)
	sc.tagIdx = make(map[string]map[string]struct{})
	sc.mem.Store(0)
	sc.count.Store(0)
	return n
}

func (sc *ShardCache) install(key string, v *StoredValue) {
	sc.entries[key] = v
	sc.count.Add(1)
	sc.addMem(v.Size)
	sc.syncTTL(key, v)
	if v.Data.Kind == KindHTTPCache {
		for _, tag := range v.Data.Cache.Tags {
			set := sc.tagIdx[tag]
			if set == nil {
				set = make(map[string]struct{})
				sc.tagIdx[tag] = set
			}
			set[key] = struct{}{}
		}
	}
}

func (sc *ShardCache) remove(key string, e *StoredValue) {
	delete(sc.entries, key)
	sc.count.Add(-1)
	sc.addMem(-e.Size)
	delete(sc.ttlIdx, key)
	if e.Data.Kind == KindHTTPCache {
		for _, tag := range e.Data.Cache.Tags {
			if set := sc.tagIdx[tag]; set != nil {
				delete(set, key)
				if len(set) == 0 {
					delete(sc.tagIdx, tag)
				}
			}
		}
	}
}

func (sc *ShardCache) syncTTL(key string, e *StoredValue) {
	if e.ExpireAt != 0 {
		sc.ttlIdx[key] = e.ExpireAt
	} else {
		delete(sc.ttlIdx, key)
	}
}

// addMem applies a signed delta with saturation at zero. Underflow indicates
// an accounting bug elsewhere, never a reason to go negative or panic.
func (sc *ShardCache) addMem(delta int64) {
	if next := sc.mem.Add(delta); next < 0 {
		sc.mem.Store(0)
	}
}
