// Package persist implements the durability collaborators.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package persist

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spineldb/spineldb/store"
)

func TestAofPropagateAndReplay(t *testing.T) {
	a, err := OpenAof(":memory:", "no")
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Propagate("set", [][]byte{[]byte("k"), []byte("v")}, store.Wrote(1)))
	require.NoError(t, a.Propagate("del", [][]byte{[]byte("k")}, store.Deleted(1)))
	// Non-writes are not journaled.
	require.NoError(t, a.Propagate("get", [][]byte{[]byte("k")}, store.DidNotWrite()))

	type op struct {
		name string
		args []string
	}
	var ops []op
	require.NoError(t, a.Replay(func(name string, args [][]byte) error {
		o := op{name: name}
		for _, arg := range args {
			o.args = append(o.args, string(arg))
		}
		ops = append(ops, o)
		return nil
	}))
	require.Equal(t, []op{
		{"set", []string{"k", "v"}},
		{"del", []string{"k"}},
	}, ops, "replay preserves journal order")
}

func TestAofSequencePersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/test.aof"
	a, err := OpenAof(path, "everysec")
	require.NoError(t, err)
	require.NoError(t, a.Propagate("set", [][]byte{[]byte("a"), []byte("1")}, store.Wrote(1)))
	require.NoError(t, a.Close())

	a2, err := OpenAof(path, "everysec")
	require.NoError(t, err)
	defer a2.Close()
	require.NoError(t, a2.Propagate("set", [][]byte{[]byte("b"), []byte("2")}, store.Wrote(1)))

	var names []string
	require.NoError(t, a2.Replay(func(name string, args [][]byte) error {
		names = append(names, name+":"+string(args[0]))
		return nil
	}))
	require.Equal(t, []string{"set:a", "set:b"}, names)
}

func TestAofRewriteCompacts(t *testing.T) {
	path := t.TempDir() + "/test.aof"
	a, err := OpenAof(path, "no")
	require.NoError(t, err)
	defer a.Close()
	for i := 0; i < 10; i++ {
		require.NoError(t, a.Propagate("set", [][]byte{[]byte("k"), []byte("v")}, store.Wrote(1)))
	}

	db := store.NewDb()
	ls := db.LockSingle("k")
	ls.CacheFor("k").Put("k", store.NewString([]byte("final")))
	ls.Release()

	require.NoError(t, a.Rewrite(DumpDb(db)))
	var count int
	var lastVal string
	require.NoError(t, a.Replay(func(name string, args [][]byte) error {
		count++
		lastVal = string(args[1])
		return nil
	}))
	require.Equal(t, 1, count, "rewrite keeps one canonical op per key")
	require.Equal(t, "final", lastVal)
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := store.NewDb()
	put := func(k string, v *store.StoredValue) {
		ls := db.LockSingle(k)
		ls.CacheFor(k).Put(k, v)
		ls.Release()
	}
	put("str", store.NewString([]byte("hello")))

	lst := store.NewList()
	lst.Data.List = [][]byte{[]byte("a"), []byte("b")}
	lst.Touch()
	put("lst", lst)

	set := store.NewSet()
	set.Data.Set["m"] = struct{}{}
	set.Touch()
	put("set", set)

	z := store.NewZSet()
	z.Data.ZSet.Add("m", 2.5)
	z.Touch()
	put("z", z)

	hsh := store.NewHash()
	hsh.Data.Hash["f"] = []byte("v")
	hsh.Touch()
	put("h", hsh)

	expired := store.NewString([]byte("stale"))
	expired.ExpireAt = store.NowMs() - 1
	put("stale", expired)

	path := t.TempDir() + "/snap.json"
	require.NoError(t, WriteSnapshot(db, path))

	restored := store.NewDb()
	require.NoError(t, LoadSnapshot(restored, path))
	require.EqualValues(t, 5, restored.KeyCount(), "expired entries do not survive the round trip")

	check := func(k string, f func(e *store.StoredValue)) {
		ls := restored.LockSingle(k)
		defer ls.Release()
		e := ls.CacheFor(k).Peek(k)
		require.NotNil(t, e, "key %s", k)
		f(e)
	}
	check("str", func(e *store.StoredValue) { require.Equal(t, "hello", string(e.Data.Str)) })
	check("lst", func(e *store.StoredValue) { require.Len(t, e.Data.List, 2) })
	check("set", func(e *store.StoredValue) { require.Contains(t, e.Data.Set, "m") })
	check("z", func(e *store.StoredValue) {
		s, ok := e.Data.ZSet.Score("m")
		require.True(t, ok)
		require.Equal(t, 2.5, s)
	})
	check("h", func(e *store.StoredValue) { require.Equal(t, "v", string(e.Data.Hash["f"])) })
}

func TestLoadSnapshotMissingFileIsFine(t *testing.T) {
	require.NoError(t, LoadSnapshot(store.NewDb(), t.TempDir()+"/nope.json"))
}
