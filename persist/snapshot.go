// Package persist implements the durability collaborators: the append-only
// operation log and the point-in-time snapshot.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package persist

import (
	"bytes"
	"os"

	natomic "github.com/natefinch/atomic"
	"github.com/pkg/errors"

	"github.com/spineldb/spineldb/store"
)

// SnapshotEntry is the serialized form of one keyspace entry. Exactly one
// payload field is meaningful per Kind; streams and opaque collaborator
// payloads have no snapshot form.
type SnapshotEntry struct {
	Key      string            `json:"key"`
	Kind     string            `json:"kind"`
	Str      string            `json:"str,omitempty"`
	List     []string          `json:"list,omitempty"`
	Set      []string          `json:"set,omitempty"`
	ZSet     map[string]float64 `json:"zset,omitempty"`
	Hash     map[string]string `json:"hash,omitempty"`
	ExpireAt int64             `json:"expire_at,omitempty"`
}

// DumpDb serializes the live keyspace under the all-shard lock. Entries whose
// kind has no snapshot form (streams, collaborator payloads) are skipped.
func DumpDb(db *store.Db) []SnapshotEntry {
	ls := db.LockAll()
	defer ls.Release()
	now := store.NowMs()
	var out []SnapshotEntry
	for i := 0; i < store.NumShards; i++ {
		sc := ls.Cache(i)
		for _, k := range sc.Keys() {
			e := sc.Peek(k)
			if e == nil || e.IsExpired(now) {
				continue
			}
			en := SnapshotEntry{Key: k, Kind: e.Data.Kind.String(), ExpireAt: e.ExpireAt}
			switch e.Data.Kind {
			case store.KindString:
				en.Str = string(e.Data.Str)
			case store.KindList:
				for _, el := range e.Data.List {
					en.List = append(en.List, string(el))
				}
			case store.KindSet:
				for m := range e.Data.Set {
					en.Set = append(en.Set, m)
				}
			case store.KindZSet:
				en.ZSet = make(map[string]float64, e.Data.ZSet.Len())
				for _, z := range e.Data.ZSet.Entries() {
					en.ZSet[z.Member] = z.Score
				}
			case store.KindHash:
				en.Hash = make(map[string]string, len(e.Data.Hash))
				for f, v := range e.Data.Hash {
					en.Hash[f] = string(v)
				}
			default:
				continue
			}
			out = append(out, en)
		}
	}
	return out
}

// WriteSnapshot dumps the keyspace and writes it to path atomically.
func WriteSnapshot(db *store.Db, path string) error {
	dump := DumpDb(db)
	data, err := js.MarshalIndent(dump, "", " ")
	if err != nil {
		return err
	}
	return errors.Wrapf(natomic.WriteFile(path, bytes.NewReader(data)), "write snapshot %s", path)
}

// LoadSnapshot restores entries into an empty keyspace. Entries already
// expired at load time are dropped.
func LoadSnapshot(db *store.Db, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var dump []SnapshotEntry
	if err := js.Unmarshal(raw, &dump); err != nil {
		return errors.Wrapf(err, "parse snapshot %s", path)
	}
	now := store.NowMs()
	for i := range dump {
		en := &dump[i]
		if en.ExpireAt != 0 && en.ExpireAt <= now {
			continue
		}
		v := entryToValue(en)
		if v == nil {
			continue
		}
		v.ExpireAt = en.ExpireAt
		ls := db.LockSingle(en.Key)
		ls.CacheFor(en.Key).Put(en.Key, v)
		ls.Release()
	}
	return nil
}

func entryToValue(en *SnapshotEntry) *store.StoredValue {
	switch en.Kind {
	case store.KindString.String():
		return store.NewString([]byte(en.Str))
	case store.KindList.String():
		v := store.NewList()
		for _, el := range en.List {
			v.Data.List = append(v.Data.List, []byte(el))
		}
		v.Touch()
		return v
	case store.KindSet.String():
		v := store.NewSet()
		for _, m := range en.Set {
			v.Data.Set[m] = struct{}{}
		}
		v.Touch()
		return v
	case store.KindZSet.String():
		v := store.NewZSet()
		for m, s := range en.ZSet {
			v.Data.ZSet.Add(m, s)
		}
		v.Touch()
		return v
	case store.KindHash.String():
		v := store.NewHash()
		for f, val := range en.Hash {
			v.Data.Hash[f] = []byte(val)
		}
		v.Touch()
		return v
	}
	return nil
}
