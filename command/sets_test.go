// Package command implements the typed command surface.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spineldb/spineldb/resp"
)

func membersOf(v resp.Value) []string {
	out := make([]string, len(v.Array))
	for i, el := range v.Array {
		out[i] = string(el.Bulk)
	}
	return out
}

func TestSAddDeduplicates(t *testing.T) {
	h := newHarness(t)
	requireInt(t, h.must("SADD", "k", "m", "m", "m"), 1)
	requireInt(t, h.must("SCARD", "k"), 1)
	requireInt(t, h.must("SADD", "k", "m"), 0)
	requireInt(t, h.must("SADD", "k", "n", "o"), 2)
	requireInt(t, h.must("SCARD", "k"), 3)
}

func TestSRemAndDrain(t *testing.T) {
	h := newHarness(t)
	h.must("SADD", "k", "a", "b")
	requireInt(t, h.must("SREM", "k", "a", "zz"), 1)
	requireInt(t, h.must("SREM", "k", "b"), 1)
	requireInt(t, h.must("EXISTS", "k"), 0)
	requireInt(t, h.must("SREM", "missing", "x"), 0)
}

func TestSMembership(t *testing.T) {
	h := newHarness(t)
	h.must("SADD", "k", "a", "b")
	requireInt(t, h.must("SISMEMBER", "k", "a"), 1)
	requireInt(t, h.must("SISMEMBER", "k", "zz"), 0)
	requireInt(t, h.must("SISMEMBER", "missing", "a"), 0)

	v := h.must("SMISMEMBER", "k", "a", "zz", "b")
	requireInt(t, v.Array[0], 1)
	requireInt(t, v.Array[1], 0)
	requireInt(t, v.Array[2], 1)

	require.ElementsMatch(t, []string{"a", "b"}, membersOf(h.must("SMEMBERS", "k")))
}

func TestSPop(t *testing.T) {
	h := newHarness(t)
	h.must("SADD", "k", "a", "b", "c")
	popped := h.must("SPOP", "k")
	require.Contains(t, []string{"a", "b", "c"}, string(popped.Bulk))
	requireInt(t, h.must("SCARD", "k"), 2)

	rest := membersOf(h.must("SPOP", "k", "10"))
	require.Len(t, rest, 2)
	requireInt(t, h.must("EXISTS", "k"), 0)
	requireNull(t, h.must("SPOP", "k"))
}

func TestSRandMemberLeavesSetIntact(t *testing.T) {
	h := newHarness(t)
	h.must("SADD", "k", "a", "b", "c")
	m := h.must("SRANDMEMBER", "k")
	require.Contains(t, []string{"a", "b", "c"}, string(m.Bulk))
	requireInt(t, h.must("SCARD", "k"), 3)

	require.Len(t, membersOf(h.must("SRANDMEMBER", "k", "2")), 2)
	require.Len(t, membersOf(h.must("SRANDMEMBER", "k", "10")), 3)
	require.Len(t, membersOf(h.must("SRANDMEMBER", "k", "-5")), 5)
}

func TestSMove(t *testing.T) {
	h := newHarness(t)
	h.must("SADD", "src", "m", "other")
	requireInt(t, h.must("SMOVE", "src", "dst", "m"), 1)
	requireInt(t, h.must("SISMEMBER", "src", "m"), 0)
	requireInt(t, h.must("SISMEMBER", "dst", "m"), 1)
	requireInt(t, h.must("SMOVE", "src", "dst", "missing-member"), 0)
}

func TestSMoveIdenticalSourceAndDestination(t *testing.T) {
	h := newHarness(t)
	h.must("SADD", "k", "m", "n")
	// The member leaves the source even though the move is conceptually a
	// no-op.
	requireInt(t, h.must("SMOVE", "k", "k", "m"), 1)
	requireInt(t, h.must("SISMEMBER", "k", "m"), 0)
	requireInt(t, h.must("SCARD", "k"), 1)
}

func TestSetOperations(t *testing.T) {
	h := newHarness(t)
	h.must("SADD", "a", "1", "2", "3")
	h.must("SADD", "b", "2", "3", "4")

	require.ElementsMatch(t, []string{"2", "3"}, membersOf(h.must("SINTER", "a", "b")))
	require.ElementsMatch(t, []string{"1", "2", "3", "4"}, membersOf(h.must("SUNION", "a", "b")))
	require.ElementsMatch(t, []string{"1"}, membersOf(h.must("SDIFF", "a", "b")))

	// Missing keys act as empty sets.
	require.Empty(t, membersOf(h.must("SINTER", "a", "missing")))
	require.ElementsMatch(t, []string{"1", "2", "3"}, membersOf(h.must("SDIFF", "a", "missing")))
}

func TestSetOperationStores(t *testing.T) {
	h := newHarness(t)
	h.must("SADD", "a", "1", "2", "3")
	h.must("SADD", "b", "2", "3", "4")

	requireInt(t, h.must("SINTERSTORE", "dst", "a", "b"), 2)
	require.ElementsMatch(t, []string{"2", "3"}, membersOf(h.must("SMEMBERS", "dst")))

	requireInt(t, h.must("SUNIONSTORE", "dst", "a", "b"), 4)
	requireInt(t, h.must("SCARD", "dst"), 4)

	// An empty result deletes an existing destination.
	requireInt(t, h.must("SINTERSTORE", "dst", "a", "missing"), 0)
	requireInt(t, h.must("EXISTS", "dst"), 0)
}
