// Package command implements the typed command surface.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spineldb/spineldb/acl"
	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/pubsub"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/stats"
	"github.com/spineldb/spineldb/store"
)

type testSession struct {
	id     uint64
	user   *acl.User
	name   string
	asking bool
	sub    *pubsub.Subscriber
}

func (ts *testSession) ID() uint64                     { return ts.id }
func (ts *testSession) User() *acl.User                { return ts.user }
func (ts *testSession) SetUser(u *acl.User)            { ts.user = u }
func (ts *testSession) ClientName() string             { return ts.name }
func (ts *testSession) SetClientName(n string)         { ts.name = n }
func (ts *testSession) ArmAsking()                     { ts.asking = true }
func (ts *testSession) Subscriber() *pubsub.Subscriber { return ts.sub }

// harness wires a Context the way the router does, minus the network.
type harness struct {
	t        *testing.T
	db       *store.Db
	blockers *store.BlockerManager
	hub      *pubsub.Hub
	txns     *TxnRegistry
	cfg      *cmn.Config
	rom      *cmn.Rom
	aclStore *acl.Store
	monitor  *stats.LatencyMonitor
	runtime  *stats.Runtime
	sess     *testSession
}

func newHarness(t *testing.T) *harness {
	cfg := cmn.Default()
	h := &harness{
		t:        t,
		db:       store.NewDb(),
		blockers: store.NewBlockerManager(),
		hub:      pubsub.NewHub(),
		txns:     NewTxnRegistry(),
		cfg:      cfg,
		rom:      cmn.NewRom(cfg),
		aclStore: acl.NewStore(cfg.Acl, ""),
		monitor:  stats.NewLatencyMonitor(),
		sess:     &testSession{id: 1, sub: pubsub.NewSubscriber(1)},
	}
	h.runtime = stats.NewRuntime(func() float64 { return float64(h.db.UsedMemory()) })
	return h
}

func rawArgs(args []string) [][]byte {
	out := make([][]byte, len(args))
	for i, a := range args {
		out[i] = []byte(a)
	}
	return out
}

// exec runs one command end to end: parse, plan, execute, release.
func (h *harness) exec(args ...string) (resp.Value, store.WriteOutcome, error) {
	raw := rawArgs(args)
	c, err := Parse(raw)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	locks := PlanLocks(h.db, c)
	defer locks.Release()
	ctx := &Context{
		Ctx:      context.Background(),
		DB:       h.db,
		Locks:    locks,
		Sess:     h.sess,
		Blockers: h.blockers,
		Hub:      h.hub,
		Txns:     h.txns,
		Rom:      h.rom,
		Acl:      h.aclStore,
		Monitor:  h.monitor,
		Stats:    h.runtime,
		Mods:     &Modules{},
		RawArgs:  raw[1:],
		Now:      store.NowMs(),
	}
	v, out, err := c.Execute(ctx)
	if err == nil && out.DidWrite() {
		for _, k := range c.Keys() {
			h.blockers.Wake(k)
		}
	}
	return v, out, err
}

// must runs the command and fails the test on error.
func (h *harness) must(args ...string) resp.Value {
	h.t.Helper()
	v, _, err := h.exec(args...)
	require.NoError(h.t, err, "command %v", args)
	return v
}

// fails runs the command and returns the error, requiring one.
func (h *harness) fails(args ...string) error {
	h.t.Helper()
	_, _, err := h.exec(args...)
	require.Error(h.t, err, "command %v must fail", args)
	return err
}

func requireBulk(t *testing.T, v resp.Value, want string) {
	t.Helper()
	require.Equal(t, resp.KindBulk, v.Kind)
	require.Equal(t, want, string(v.Bulk))
}

func requireInt(t *testing.T, v resp.Value, want int64) {
	t.Helper()
	require.Equal(t, resp.KindInteger, v.Kind)
	require.Equal(t, want, v.Int)
}

func requireNull(t *testing.T, v resp.Value) {
	t.Helper()
	require.True(t, v.IsNull(), "expected nil reply, got kind %d", v.Kind)
}

func requireBulkArray(t *testing.T, v resp.Value, want ...string) {
	t.Helper()
	require.Equal(t, resp.KindArray, v.Kind)
	got := make([]string, len(v.Array))
	for i, el := range v.Array {
		got[i] = string(el.Bulk)
	}
	require.Equal(t, want, got)
}
