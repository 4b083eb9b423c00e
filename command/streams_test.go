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

func TestXAddExplicitIDsMustIncrease(t *testing.T) {
	h := newHarness(t)
	requireBulk(t, h.must("XADD", "s", "1-1", "f", "v"), "1-1")
	requireBulk(t, h.must("XADD", "s", "1-2", "f", "v"), "1-2")
	h.fails("XADD", "s", "1-2", "f", "v")
	h.fails("XADD", "s", "0-5", "f", "v")
	requireInt(t, h.must("XLEN", "s"), 2)
}

func TestXAddAutoID(t *testing.T) {
	h := newHarness(t)
	first := h.must("XADD", "s", "*", "f", "1")
	second := h.must("XADD", "s", "*", "f", "2")
	require.NotEqual(t, string(first.Bulk), string(second.Bulk))
	requireInt(t, h.must("XLEN", "s"), 2)
}

func TestXRange(t *testing.T) {
	h := newHarness(t)
	h.must("XADD", "s", "1-1", "a", "1")
	h.must("XADD", "s", "2-1", "b", "2")
	h.must("XADD", "s", "3-1", "c", "3")

	v := h.must("XRANGE", "s", "-", "+")
	require.Len(t, v.Array, 3)
	require.Equal(t, "1-1", string(v.Array[0].Array[0].Bulk))
	requireBulkArray(t, v.Array[0].Array[1], "a", "1")

	v = h.must("XRANGE", "s", "2", "2")
	require.Len(t, v.Array, 1)
	require.Equal(t, "2-1", string(v.Array[0].Array[0].Bulk))

	v = h.must("XRANGE", "s", "-", "+", "COUNT", "2")
	require.Len(t, v.Array, 2)

	require.Equal(t, resp.KindArray, h.must("XRANGE", "missing", "-", "+").Kind)
	require.Empty(t, h.must("XRANGE", "missing", "-", "+").Array)
}
