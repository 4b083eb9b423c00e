// Package stats exposes server runtime metrics and the slowlog/latency
// history.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package stats

import (
	"bytes"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatencyRingBounds(t *testing.T) {
	lm := NewLatencyMonitor()
	for i := 0; i < LatencyHistoryLen+40; i++ {
		lm.AddSample("get", [][]byte{[]byte(strconv.Itoa(i))}, time.Millisecond)
	}
	require.Equal(t, LatencyHistoryLen, lm.Len(), "ring keeps the newest %d", LatencyHistoryLen)

	recent := lm.Recent(3)
	require.Len(t, recent, 3)
	// Newest first, IDs keep counting across evictions.
	require.Equal(t, uint64(LatencyHistoryLen+39), recent[0].ID)
	require.Equal(t, uint64(LatencyHistoryLen+38), recent[1].ID)
}

func TestLatencyArgTruncation(t *testing.T) {
	lm := NewLatencyMonitor()
	huge := bytes.Repeat([]byte("x"), 4096)
	lm.AddSample("set", [][]byte{[]byte("k"), huge}, time.Millisecond)

	s := lm.Recent(1)[0]
	require.Equal(t, "k", string(s.Args[0]))
	require.Less(t, len(s.Args[1]), 200, "oversized args are truncated")
	require.Contains(t, string(s.Args[1]), "... (truncated)")
}

func TestLatencyHistoryAndReset(t *testing.T) {
	lm := NewLatencyMonitor()
	lm.AddSample("get", nil, 2*time.Millisecond)
	lm.AddSample("set", nil, 9*time.Millisecond)
	lm.AddSample("get", nil, 4*time.Millisecond)

	require.Len(t, lm.History("get"), 2)
	require.Len(t, lm.History("del"), 0)

	max, n := lm.MaxLatency()
	require.Equal(t, 9*time.Millisecond, max)
	require.Equal(t, 3, n)

	lm.Reset()
	require.Zero(t, lm.Len())
}

func TestRuntimeConstruction(t *testing.T) {
	r := NewRuntime(func() float64 { return 42 })
	r.KeyspaceHits.Inc()
	r.Connections.Inc()
	r.Commands.WithLabelValues("get", "ok").Inc()
	require.NotNil(t, r.Handler())
}
