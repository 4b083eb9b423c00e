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
)

func TestAuth(t *testing.T) {
	h := newHarness(t)
	h.aclStore.SetUser("default", "hunter2", []string{"all"})
	h.aclStore.SetUser("admin", "root", []string{"all"})

	err := h.fails("AUTH", "wrongpass")
	require.True(t, cmn.IsKind(err, cmn.KindInvalidPassword))
	require.Nil(t, h.sess.User())

	require.Equal(t, "OK", h.must("AUTH", "hunter2").Str)
	require.Equal(t, "default", h.sess.User().Name)

	require.Equal(t, "OK", h.must("AUTH", "admin", "root").Str)
	require.Equal(t, "admin", h.sess.User().Name)

	h.fails("AUTH", "admin", "nope")
	h.fails("AUTH")
}

func TestAclSubcommands(t *testing.T) {
	h := newHarness(t)
	requireBulk(t, h.must("ACL", "WHOAMI"), "default")

	require.Equal(t, "OK", h.must("ACL", "SETUSER", "alice", "pw", "readers").Str)
	require.Contains(t, membersOf(h.must("ACL", "LIST")), "alice")
	requireInt(t, h.must("ACL", "DELUSER", "alice"), 1)
	requireInt(t, h.must("ACL", "DELUSER", "alice"), 0)

	// No acl_file configured: SAVE must fail.
	h.fails("ACL", "SAVE")
	h.fails("ACL", "BOGUS")
}

func TestSlowlogCommands(t *testing.T) {
	h := newHarness(t)
	h.monitor.AddSample("get", [][]byte{[]byte("k")}, 1e6)
	h.monitor.AddSample("set", [][]byte{[]byte("k"), []byte("v")}, 2e6)

	requireInt(t, h.must("SLOWLOG", "LEN"), 2)

	v := h.must("SLOWLOG", "GET")
	require.Len(t, v.Array, 2)
	entry := v.Array[0]
	require.Len(t, entry.Array, 4)
	require.Equal(t, resp.KindInteger, entry.Array[0].Kind) // id
	require.Equal(t, resp.KindInteger, entry.Array[2].Kind) // micros
	requireBulkArray(t, entry.Array[3], "set", "k", "v")    // newest first

	require.Equal(t, "OK", h.must("SLOWLOG", "RESET").Str)
	requireInt(t, h.must("SLOWLOG", "LEN"), 0)
}

func TestLatencyCommands(t *testing.T) {
	h := newHarness(t)
	v := h.must("LATENCY", "DOCTOR")
	require.Contains(t, string(v.Bulk), "No latency samples")

	h.monitor.AddSample("get", nil, 5e6)
	require.Contains(t, string(h.must("LATENCY", "DOCTOR").Bulk), "Latency Doctor")
	require.Len(t, h.must("LATENCY", "HISTORY", "get").Array, 1)
	requireInt(t, h.must("LATENCY", "RESET"), 0)
	require.Empty(t, h.must("LATENCY", "HISTORY", "get").Array)
}

func TestClientCommands(t *testing.T) {
	h := newHarness(t)
	requireInt(t, h.must("CLIENT", "ID"), 1)
	requireNull(t, h.must("CLIENT", "GETNAME"))
	require.Equal(t, "OK", h.must("CLIENT", "SETNAME", "worker-1").Str)
	requireBulk(t, h.must("CLIENT", "GETNAME"), "worker-1")
}

func TestInfoSections(t *testing.T) {
	h := newHarness(t)
	h.must("SET", "k", "v")
	info := string(h.must("INFO").Bulk)
	require.Contains(t, info, "# Server")
	require.Contains(t, info, "# Memory")
	require.Contains(t, info, "db0:keys=1")
}

func TestModulesUnavailable(t *testing.T) {
	h := newHarness(t)
	h.fails("EVAL", "return 1", "0")
	h.fails("PFADD", "hll", "x")
	h.fails("BF.ADD", "bf", "x")
	h.fails("FT.SEARCH", "idx", "hello")
}

func TestDebugObject(t *testing.T) {
	h := newHarness(t)
	h.must("SET", "k", "v")
	v := h.must("DEBUG", "OBJECT", "k")
	require.Contains(t, v.Str, "type:string")
	h.fails("DEBUG", "OBJECT", "missing")
}
