// Package command implements the typed command surface.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

// queue parses and appends a command to the session's transaction the way
// the router does.
func (h *harness) queue(args ...string) {
	h.t.Helper()
	c, err := Parse(rawArgs(args))
	require.NoError(h.t, err)
	require.NoError(h.t, h.txns.Queue(h.sess.id, c))
}

func TestExecSuccess(t *testing.T) {
	h := newHarness(t)

	// WATCH counter; MULTI; INCR counter; INCR counter; EXEC.
	h.must("WATCH", "counter")
	require.Equal(t, "OK", h.must("MULTI").Str)
	h.queue("INCR", "counter")
	h.queue("INCR", "counter")

	v := h.must("EXEC")
	require.Equal(t, "*2\r\n:1\r\n:2\r\n", string(resp.Encode(v)))
	requireBulk(t, h.must("GET", "counter"), "2")
	require.Nil(t, h.txns.Lookup(h.sess.id), "EXEC destroys the transaction state")
}

func TestExecAbortsOnConcurrentWrite(t *testing.T) {
	h := newHarness(t)

	h.must("SET", "k", "0")
	h.must("WATCH", "k")
	h.must("MULTI")
	h.queue("INCR", "k")

	// Another client writes k before EXEC.
	other := newHarness(t)
	other.db = h.db // same keyspace
	other.must("INCR", "k")

	v := h.must("EXEC")
	require.Equal(t, "*-1\r\n", string(resp.Encode(v)), "optimistic check fails with the nil array")
	requireBulk(t, h.must("GET", "k"), "1")
}

func TestExecAbortsOnPresenceChange(t *testing.T) {
	h := newHarness(t)
	// Key absent at WATCH time, created before EXEC.
	h.must("WATCH", "k")
	h.must("MULTI")
	h.queue("SET", "k", "txn")
	h.must("SET", "k", "outside") // the queuing session itself may trip its own watch
	v := h.must("EXEC")
	require.Equal(t, resp.KindNullArray, v.Kind)
	requireBulk(t, h.must("GET", "k"), "outside")

	// And the reverse: present at WATCH, deleted before EXEC.
	h.must("SET", "gone", "v")
	h.must("WATCH", "gone")
	h.must("MULTI")
	h.queue("GET", "gone")
	h.must("DEL", "gone")
	require.Equal(t, resp.KindNullArray, h.must("EXEC").Kind)
}

func TestExecWithoutMulti(t *testing.T) {
	h := newHarness(t)
	err := h.fails("EXEC")
	require.True(t, cmn.IsKind(err, cmn.KindInvalidState))
}

func TestQueueErrorAbortsExec(t *testing.T) {
	h := newHarness(t)
	h.must("MULTI")
	h.queue("SET", "k", "v")
	// A queue-time parse failure is sticky.
	_, err := Parse(rawArgs([]string{"SET", "k"}))
	require.Error(t, err)
	h.txns.MarkError(h.sess.id)

	err = h.fails("EXEC")
	require.True(t, cmn.IsKind(err, cmn.KindTxnAborted))
	requireNull(t, h.must("GET", "k"))
}

func TestExecReportsPerCommandErrors(t *testing.T) {
	h := newHarness(t)
	h.must("SET", "str", "abc")
	h.must("MULTI")
	h.queue("INCR", "str") // fails at execution time
	h.queue("SET", "ok", "1")

	v := h.must("EXEC")
	require.Len(t, v.Array, 2)
	require.Equal(t, resp.KindError, v.Array[0].Kind)
	require.Equal(t, "OK", v.Array[1].Str, "EXEC keeps going after a per-command failure")
	requireBulk(t, h.must("GET", "ok"), "1")
}

func TestDiscardNeverFails(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, "OK", h.must("DISCARD").Str, "DISCARD without MULTI succeeds")

	h.must("MULTI")
	h.queue("SET", "k", "v")
	require.Equal(t, "OK", h.must("DISCARD").Str)
	require.Nil(t, h.txns.Lookup(h.sess.id))
	requireNull(t, h.must("GET", "k"))
}

func TestNestedMultiRejected(t *testing.T) {
	h := newHarness(t)
	h.must("MULTI")
	err := h.fails("MULTI")
	require.True(t, cmn.IsKind(err, cmn.KindInvalidState))
	h.must("DISCARD")
}

func TestWatchInsideMultiRejected(t *testing.T) {
	h := newHarness(t)
	h.must("MULTI")
	h.fails("WATCH", "k")
	h.must("DISCARD")
}

func TestUnwatchKeepsQueue(t *testing.T) {
	h := newHarness(t)
	h.must("WATCH", "k")
	h.must("MULTI")
	h.queue("SET", "k", "v")
	h.must("UNWATCH")
	h.must("SET", "k", "other") // would have tripped the watch

	v := h.must("EXEC")
	require.Len(t, v.Array, 1)
	requireBulk(t, h.must("GET", "k"), "v")
}

func TestExecOutcomeAggregation(t *testing.T) {
	h := newHarness(t)
	h.must("SET", "a", "1")
	h.must("MULTI")
	h.queue("SET", "b", "2")
	h.queue("DEL", "a")
	_, out, err := h.exec("EXEC")
	require.NoError(t, err)
	require.Equal(t, store.OutcomeDelete, out.Kind, "delete dominates write in the merged outcome")
	require.EqualValues(t, 2, out.KeyCount)
}

func TestBlockingCommandInsideExecDoesNotBlock(t *testing.T) {
	h := newHarness(t)
	h.must("RPUSH", "q", "x")
	h.must("MULTI")
	h.queue("BLPOP", "q", "0")
	h.queue("BLPOP", "q", "0")

	v := h.must("EXEC")
	require.Len(t, v.Array, 2)
	requireBulkArray(t, v.Array[0], "q", "x")
	require.Equal(t, resp.KindNullArray, v.Array[1].Kind, "empty list answers nil instead of suspending")
}

func TestWatchSnapshotsUnderLock(t *testing.T) {
	h := newHarness(t)
	h.must("SET", "k", "v")
	h.must("WATCH", "k")
	st := h.txns.Lookup(h.sess.id)
	require.NotNil(t, st)
	require.Contains(t, st.Watched, "k")
	require.NotNil(t, st.Watched["k"])

	h.must("WATCH", "absent")
	require.Nil(t, h.txns.Lookup(h.sess.id).Watched["absent"], "absent keys snapshot as nil")
}
