// Package command implements the typed command surface.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spineldb/spineldb/resp"
)

func TestBlpopImmediateAndWire(t *testing.T) {
	h := newHarness(t)
	h.must("LPUSH", "q", "hello")

	v := h.must("BRPOP", "q", "0")
	require.Equal(t, "*2\r\n$1\r\nq\r\n$5\r\nhello\r\n", string(resp.Encode(v)))
	requireInt(t, h.must("LLEN", "q"), 0)
}

func TestBlpopTimeoutReply(t *testing.T) {
	h := newHarness(t)
	v := h.must("BLPOP", "missing", "0.05")
	require.Equal(t, resp.KindNullArray, v.Kind)
}

func TestBlpopHandoffThroughCommands(t *testing.T) {
	h := newHarness(t)

	done := make(chan resp.Value, 1)
	go func() {
		done <- h.must("BRPOP", "q", "3")
	}()
	require.Eventually(t, func() bool { return h.blockers.Waiters("q") == 1 },
		time.Second, time.Millisecond)

	// The producing side wakes via the harness's post-write hook, the same
	// protocol the router follows.
	h.must("LPUSH", "q", "hello")

	select {
	case v := <-done:
		requireBulkArray(t, v, "q", "hello")
	case <-time.After(2 * time.Second):
		t.Fatal("BRPOP never woke")
	}
	requireInt(t, h.must("LLEN", "q"), 0)
}

func TestBzpopMin(t *testing.T) {
	h := newHarness(t)
	h.must("ZADD", "z", "2", "b", "1", "a")
	requireBulkArray(t, h.must("BZPOPMIN", "z", "0"), "z", "a", "1")
	requireBulkArray(t, h.must("BZPOPMAX", "z", "0"), "z", "b", "2")
	require.Equal(t, resp.KindNullArray, h.must("BZPOPMIN", "z", "0.05").Kind)
}

func TestBlmoveImmediate(t *testing.T) {
	h := newHarness(t)
	h.must("RPUSH", "src", "a", "b")
	requireBulk(t, h.must("BLMOVE", "src", "dst", "RIGHT", "LEFT", "0"), "b")
	requireBulkArray(t, h.must("LRANGE", "dst", "0", "-1"), "b")
	requireNull(t, h.must("BLMOVE", "empty", "dst", "LEFT", "LEFT", "0.05"))
}

func TestBlockingTimeoutParsing(t *testing.T) {
	h := newHarness(t)
	h.fails("BLPOP", "q", "notafloat")
	h.fails("BLPOP", "q", "-1")
	h.fails("BLPOP")
}
