// Package store implements the sharded keyspace: typed values, per-shard
// caches with secondary indexes, the lock planner, and the blocking-command
// coordinator.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package store

import (
	"sort"
	"time"
)

type DataKind uint8

const (
	KindString DataKind = iota
	KindList
	KindSet
	KindZSet
	KindHash
	KindStream
	KindJSON
	KindHLL
	KindBloom
	KindHTTPCache
)

func (k DataKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindZSet:
		return "zset"
	case KindHash:
		return "hash"
	case KindStream:
		return "stream"
	case KindJSON:
		return "json"
	case KindHLL:
		return "hyperloglog"
	case KindBloom:
		return "bloomfilter"
	case KindHTTPCache:
		return "httpcache"
	}
	return "unknown"
}

type (
	// ZSetEntry pairs a sorted-set member with its score.
	ZSetEntry struct {
		Member string
		Score  float64
	}

	// ZSet keeps members with float64 scores. Ordering (score, then lex) is
	// produced on demand; membership and score lookup are O(1).
	ZSet struct {
		m map[string]float64
	}

	StreamEntry struct {
		ID     StreamID
		Fields [][]byte
	}

	StreamID struct {
		Ms  uint64
		Seq uint64
	}

	Stream struct {
		Entries []StreamEntry
		LastID  StreamID
	}

	// HTTPCacheBody is the payload of the caching subsystem: a response body
	// plus the tags it can be purged by.
	HTTPCacheBody struct {
		Body []byte
		Tags []string
	}

	// DataValue is the closed sum of every value representation. Exactly the
	// field selected by Kind is populated.
	DataValue struct {
		Str    []byte
		List   [][]byte
		Set    map[string]struct{}
		ZSet   *ZSet
		Hash   map[string][]byte
		Stream *Stream
		Raw    []byte // opaque JSON / HLL / Bloom payloads, owned by collaborators
		Cache  *HTTPCacheBody
		Kind   DataKind
	}

	// StoredValue is one keyspace entry. Version strictly increases on every
	// mutation and is the optimistic-concurrency token read by WATCH.
	// ExpireAt is absolute unix milliseconds; zero means persistent.
	StoredValue struct {
		Data     DataValue
		Size     int64
		Version  uint64
		ExpireAt int64
	}
)

const entryOverhead = 64

func NewString(b []byte) *StoredValue {
	v := &StoredValue{Data: DataValue{Kind: KindString, Str: b}, Version: 1}
	v.Size = v.Data.MemoryUsage() + entryOverhead
	return v
}

func NewList() *StoredValue {
	v := &StoredValue{Data: DataValue{Kind: KindList}, Version: 1}
	v.Size = entryOverhead
	return v
}

func NewSet() *StoredValue {
	v := &StoredValue{Data: DataValue{Kind: KindSet, Set: make(map[string]struct{})}, Version: 1}
	v.Size = entryOverhead
	return v
}

func NewZSet() *StoredValue {
	v := &StoredValue{Data: DataValue{Kind: KindZSet, ZSet: &ZSet{m: make(map[string]float64)}}, Version: 1}
	v.Size = entryOverhead
	return v
}

func NewHash() *StoredValue {
	v := &StoredValue{Data: DataValue{Kind: KindHash, Hash: make(map[string][]byte)}, Version: 1}
	v.Size = entryOverhead
	return v
}

func NewStream() *StoredValue {
	v := &StoredValue{Data: DataValue{Kind: KindStream, Stream: &Stream{}}, Version: 1}
	v.Size = entryOverhead
	return v
}

func NewCacheBody(body []byte, tags []string) *StoredValue {
	v := &StoredValue{
		Data:    DataValue{Kind: KindHTTPCache, Cache: &HTTPCacheBody{Body: body, Tags: tags}},
		Version: 1,
	}
	v.Size = v.Data.MemoryUsage() + entryOverhead
	return v
}

// IsExpired reports whether the entry is logically absent at nowMs.
func (v *StoredValue) IsExpired(nowMs int64) bool {
	return v.ExpireAt != 0 && v.ExpireAt <= nowMs
}

// Touch finalizes an in-place mutation: bumps the version and recomputes the
// tracked size. The caller settles the shard memory delta via Bump.
func (v *StoredValue) Touch() {
	v.Version++
	v.Size = v.Data.MemoryUsage() + entryOverhead
}

// MemoryUsage returns the tracked byte size of the payload.
func (d *DataValue) MemoryUsage() (n int64) {
	switch d.Kind {
	case KindString:
		n = int64(len(d.Str))
	case KindList:
		for _, el := range d.List {
			n += int64(len(el)) + 16
		}
	case KindSet:
		for m := range d.Set {
			n += int64(len(m)) + 16
		}
	case KindZSet:
		for m := range d.ZSet.m {
			n += int64(len(m)) + 24
		}
	case KindHash:
		for f, val := range d.Hash {
			n += int64(len(f)) + int64(len(val)) + 32
		}
	case KindStream:
		for i := range d.Stream.Entries {
			n += 16
			for _, f := range d.Stream.Entries[i].Fields {
				n += int64(len(f)) + 16
			}
		}
	case KindJSON, KindHLL, KindBloom:
		n = int64(len(d.Raw))
	case KindHTTPCache:
		n = int64(len(d.Cache.Body))
		for _, t := range d.Cache.Tags {
			n += int64(len(t)) + 16
		}
	}
	return n
}

//
// ZSet
//

func (z *ZSet) Len() int { return len(z.m) }

func (z *ZSet) Score(member string) (float64, bool) {
	s, ok := z.m[member]
	return s, ok
}

// Add inserts or updates a member; reports whether the member was new.
func (z *ZSet) Add(member string, score float64) bool {
	_, existed := z.m[member]
	z.m[member] = score
	return !existed
}

func (z *ZSet) Remove(member string) bool {
	_, ok := z.m[member]
	delete(z.m, member)
	return ok
}

// Entries returns members ordered by score, lex order breaking ties.
func (z *ZSet) Entries() []ZSetEntry {
	out := make([]ZSetEntry, 0, len(z.m))
	for m, s := range z.m {
		out = append(out, ZSetEntry{Member: m, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out
}

// NowMs is the single clock used by expiry decisions.
func NowMs() int64 { return time.Now().UnixMilli() }
