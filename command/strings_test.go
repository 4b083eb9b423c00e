// Package command implements the typed command surface.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

func TestSetGetDelRoundTrip(t *testing.T) {
	h := newHarness(t)

	v := h.must("SET", "foo", "bar")
	require.Equal(t, resp.KindSimple, v.Kind)
	require.Equal(t, "OK", v.Str)

	requireBulk(t, h.must("GET", "foo"), "bar")
	require.Equal(t, "$3\r\nbar\r\n", string(resp.Encode(h.must("GET", "foo"))))

	requireInt(t, h.must("DEL", "foo"), 1)
	requireNull(t, h.must("GET", "foo"))
	require.Equal(t, "$-1\r\n", string(resp.Encode(h.must("GET", "foo"))))
}

func TestSetNxXx(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, "OK", h.must("SET", "k", "1", "NX").Str)
	requireNull(t, h.must("SET", "k", "2", "NX"))
	requireBulk(t, h.must("GET", "k"), "1")

	require.Equal(t, "OK", h.must("SET", "k", "3", "XX").Str)
	requireBulk(t, h.must("GET", "k"), "3")

	requireNull(t, h.must("SET", "absent", "x", "XX"))
	requireNull(t, h.must("GET", "absent"))
}

func TestSetWithGetReturnsOld(t *testing.T) {
	h := newHarness(t)
	requireNull(t, h.must("SET", "k", "new", "GET"))
	requireBulk(t, h.must("SET", "k", "newer", "GET"), "new")
}

func TestSetPastExpiryDeletes(t *testing.T) {
	h := newHarness(t)
	h.must("SET", "k", "v")
	// EXAT in the past behaves as SET-then-DEL.
	_, out, err := h.exec("SET", "k", "v2", "EXAT", "1")
	require.NoError(t, err)
	require.Equal(t, store.Deleted(1), out)
	requireNull(t, h.must("GET", "k"))
}

func TestSetKeepTTL(t *testing.T) {
	h := newHarness(t)
	h.must("SET", "k", "v", "EX", "100")
	ttl := h.must("TTL", "k")
	require.Greater(t, ttl.Int, int64(90))

	h.must("SET", "k", "v2", "KEEPTTL")
	require.Greater(t, h.must("TTL", "k").Int, int64(90), "KEEPTTL preserves the deadline")

	h.must("SET", "k", "v3")
	requireInt(t, h.must("TTL", "k"), -1)
}

func TestSetSyntaxErrors(t *testing.T) {
	h := newHarness(t)
	h.fails("SET", "k", "v", "NX", "XX")
	h.fails("SET", "k", "v", "EX", "10", "PX", "10")
	h.fails("SET", "k", "v", "EX", "notanumber")
	h.fails("SET", "k")
}

func TestPxExpiration(t *testing.T) {
	h := newHarness(t)
	h.must("SET", "k", "v", "PX", "30")
	requireBulk(t, h.must("GET", "k"), "v")
	time.Sleep(60 * time.Millisecond)
	requireNull(t, h.must("GET", "k"))
	requireInt(t, h.must("TTL", "k"), -2)
}

func TestIncrDecrRoundTrip(t *testing.T) {
	h := newHarness(t)
	requireInt(t, h.must("INCR", "counter"), 1)
	requireInt(t, h.must("INCR", "counter"), 2)
	requireInt(t, h.must("INCRBY", "counter", "40"), 42)
	requireInt(t, h.must("INCRBY", "counter", "-40"), 2)
	requireInt(t, h.must("DECR", "counter"), 1)
	requireInt(t, h.must("DECRBY", "counter", "1"), 0)

	h.must("SET", "s", "notanumber")
	h.fails("INCR", "s")
}

func TestIncrOverflow(t *testing.T) {
	h := newHarness(t)
	h.must("SET", "k", "9223372036854775807")
	err := h.fails("INCR", "k")
	require.True(t, cmn.IsKind(err, cmn.KindOverflow))
}

func TestIncrByFloat(t *testing.T) {
	h := newHarness(t)
	requireBulk(t, h.must("INCRBYFLOAT", "f", "10.5"), "10.5")
	requireBulk(t, h.must("INCRBYFLOAT", "f", "0.1"), "10.6")
	requireBulk(t, h.must("INCRBYFLOAT", "f", "-10.6"), "0")
}

func TestVersionBumpsOnEveryWrite(t *testing.T) {
	h := newHarness(t)
	h.must("SET", "k", "a")
	versionOf := func() uint64 {
		ls := h.db.LockSingle("k")
		defer ls.Release()
		e := ls.CacheFor("k").Peek("k")
		require.NotNil(t, e)
		return e.Version
	}
	v1 := versionOf()
	h.must("SET", "k", "b")
	v2 := versionOf()
	require.Greater(t, v2, v1)
	h.must("APPEND", "k", "c")
	require.Greater(t, versionOf(), v2)
}

func TestGetSetGetDel(t *testing.T) {
	h := newHarness(t)
	requireNull(t, h.must("GETSET", "k", "one"))
	requireBulk(t, h.must("GETSET", "k", "two"), "one")

	requireBulk(t, h.must("GETDEL", "k"), "two")
	requireNull(t, h.must("GET", "k"))
	requireNull(t, h.must("GETDEL", "k"))
}

func TestGetRange(t *testing.T) {
	h := newHarness(t)
	h.must("SET", "k", "This is a string")
	requireBulk(t, h.must("GETRANGE", "k", "0", "3"), "This")
	requireBulk(t, h.must("GETRANGE", "k", "-3", "-1"), "ing")
	requireBulk(t, h.must("GETRANGE", "k", "0", "-1"), "This is a string")
	requireBulk(t, h.must("GETRANGE", "k", "100", "200"), "")
}

func TestMSetMGet(t *testing.T) {
	h := newHarness(t)
	h.must("MSET", "a", "1", "b", "2", "c", "3")
	v := h.must("MGET", "a", "b", "missing", "c")
	require.Len(t, v.Array, 4)
	require.Equal(t, "1", string(v.Array[0].Bulk))
	require.Equal(t, "2", string(v.Array[1].Bulk))
	require.True(t, v.Array[2].IsNull())
	require.Equal(t, "3", string(v.Array[3].Bulk))

	h.fails("MSET", "a", "1", "dangling")
}

func TestBitopNotTwiceIsIdentity(t *testing.T) {
	h := newHarness(t)
	h.must("SET", "s", "abc")
	requireInt(t, h.must("BITOP", "NOT", "d", "s"), 3)
	requireInt(t, h.must("BITOP", "NOT", "d", "d"), 3)
	requireBulk(t, h.must("GET", "d"), "abc")
}

func TestBitopAndOrXor(t *testing.T) {
	h := newHarness(t)
	h.must("SET", "a", "\xff\x0f")
	h.must("SET", "b", "\x0f")

	requireInt(t, h.must("BITOP", "AND", "dst", "a", "b"), 2)
	requireBulk(t, h.must("GET", "dst"), "\x0f\x00")

	requireInt(t, h.must("BITOP", "OR", "dst", "a", "b"), 2)
	requireBulk(t, h.must("GET", "dst"), "\xff\x0f")

	requireInt(t, h.must("BITOP", "XOR", "dst", "a", "b"), 2)
	requireBulk(t, h.must("GET", "dst"), "\xf0\x0f")
}

func TestBitopRespectsAllocLimit(t *testing.T) {
	h := newHarness(t)
	h.cfg.MaxBitopAlloc = 1024
	h.rom.Set(h.cfg)

	h.must("SET", "a", strings.Repeat("x", 2048))
	err := h.fails("BITOP", "NOT", "d", "a")
	require.Contains(t, err.Error(), "max_bitop_alloc_size")
	requireNull(t, h.must("GET", "d"))
}

func TestSetexPsetex(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, "OK", h.must("SETEX", "k", "100", "v").Str)
	require.Greater(t, h.must("TTL", "k").Int, int64(90))
	require.Equal(t, "OK", h.must("PSETEX", "k2", "100000", "v").Str)
	require.Greater(t, h.must("PTTL", "k2").Int, int64(90_000))
	h.fails("SETEX", "k", "0", "v")
	h.fails("SETEX", "k", "-1", "v")
}

func TestStrlenAppend(t *testing.T) {
	h := newHarness(t)
	requireInt(t, h.must("STRLEN", "missing"), 0)
	requireInt(t, h.must("APPEND", "k", "Hello "), 6)
	requireInt(t, h.must("APPEND", "k", "World"), 11)
	requireBulk(t, h.must("GET", "k"), "Hello World")
	requireInt(t, h.must("STRLEN", "k"), 11)
}

func TestWrongTypeAcrossFamilies(t *testing.T) {
	h := newHarness(t)
	h.must("LPUSH", "list", "x")
	err := h.fails("GET", "list")
	require.True(t, cmn.IsKind(err, cmn.KindWrongType))
	err = h.fails("INCR", "list")
	require.True(t, cmn.IsKind(err, cmn.KindWrongType))
	err = h.fails("SADD", "list", "m")
	require.True(t, cmn.IsKind(err, cmn.KindWrongType))
}
