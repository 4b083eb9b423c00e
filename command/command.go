// Package command implements the typed command surface: parsing RESP
// argument vectors into closed-world command values, the lock planner
// binding, and per-command execution against the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"context"
	"strings"

	"github.com/spineldb/spineldb/acl"
	"github.com/spineldb/spineldb/cluster"
	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/pubsub"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/stats"
	"github.com/spineldb/spineldb/store"
)

type (
	// Command is one parsed, executable request. The set of implementations
	// is closed at compile time; the registry below is the only constructor
	// path.
	Command interface {
		Name() string
		Flags() cmn.CommandFlags
		Keys() []string
		Execute(ctx *Context) (resp.Value, store.WriteOutcome, error)
	}

	// Session is the slice of connection state a command may touch.
	Session interface {
		ID() uint64
		User() *acl.User
		SetUser(*acl.User)
		ClientName() string
		SetClientName(string)
		ArmAsking()
		Subscriber() *pubsub.Subscriber
	}

	// ServerControl exposes the administrative surface commands need without
	// reaching into the server itself.
	ServerControl interface {
		ApplyConfig(param, value string) error
		ConfigValue(param string) (string, bool)
		RewriteConfig() error
		TriggerAofRewrite() error
		TriggerSnapshot() error
	}

	// Context bundles everything Execute needs: the acquired locks, the
	// session, and the collaborator handles. Built by the router per
	// command.
	Context struct {
		Ctx      context.Context
		DB       *store.Db
		Locks    *store.LockSet
		Sess     Session
		Blockers *store.BlockerManager
		Hub      *pubsub.Hub
		Txns     *TxnRegistry
		Rom      *cmn.Rom
		Acl      *acl.Store
		Monitor  *stats.LatencyMonitor
		Stats    *stats.Runtime
		Slots    *cluster.SlotMap // nil when cluster mode is off
		Control  ServerControl
		Mods     *Modules
		RawArgs  [][]byte
		Now      int64
		// NoBlock is set while executing inside EXEC: blocking commands make
		// one immediate attempt under the transaction's guard set instead of
		// suspending.
		NoBlock bool
	}
)

// parseFn builds a command from its argument vector (command name excluded).
type parseFn func(args [][]byte) (Command, error)

var registry = make(map[string]parseFn)

func register(name string, fn parseFn) { registry[name] = fn }

// Parse turns a raw request into a typed command. Names are case-insensitive.
func Parse(raw [][]byte) (Command, error) {
	name := strings.ToLower(string(raw[0]))
	fn, ok := registry[name]
	if !ok {
		return nil, cmn.ErrUnknownCommand(name)
	}
	return fn(raw[1:])
}

// Known reports whether name is a registered command.
func Known(name string) bool {
	_, ok := registry[strings.ToLower(name)]
	return ok
}

// PlanLocks maps a command to its lock plan and acquires it. Multi-shard
// plans lock ascending by shard index; see store.LockSet.
func PlanLocks(db *store.Db, c Command) *store.LockSet {
	keys := c.Keys()
	switch c.Name() {
	case "keys", "flushdb", "randomkey":
		// Consistent whole-keyspace view.
		return db.LockAll()
	case "scan", "sscan", "hscan", "zscan", "cache.purgetag", "dbsize", "flushall":
		// Per-step or counter-based locking inside Execute.
		return db.PlanNone()
	case "blpop", "brpop", "blmove", "bzpopmin", "bzpopmax":
		// The blocker manager acquires and drops shard locks around each
		// attempt; a waiter never suspends holding one.
		return db.PlanNone()
	case "multi", "exec", "discard", "watch", "unwatch":
		// WATCH snapshots under its own sorted multi-lock; EXEC locks the
		// union of watched and queued keys itself.
		return db.PlanNone()
	}
	if c.Flags().Contains(cmn.FlagAdmin) && len(keys) == 0 {
		return db.PlanNone()
	}
	switch len(keys) {
	case 0:
		return db.PlanNone()
	case 1:
		return db.LockSingle(keys[0])
	default:
		return db.LockKeys(keys)
	}
}

// base carries the invariant command metadata; families embed it.
type base struct {
	name  string
	keys  []string
	flags cmn.CommandFlags
}

func (b *base) Name() string            { return b.name }
func (b *base) Flags() cmn.CommandFlags { return b.flags }
func (b *base) Keys() []string          { return b.keys }

func mkBase(name string, flags cmn.CommandFlags, keys ...string) base {
	return base{name: name, flags: flags, keys: keys}
}

// lookup resolves key within the held guard set, enforcing the value kind.
// A missing or expired entry yields (cache, nil, nil).
func (ctx *Context) lookup(key string, kind store.DataKind) (*store.ShardCache, *store.StoredValue, error) {
	sc := ctx.Locks.CacheFor(key)
	e := sc.Get(key, ctx.Now)
	if e == nil {
		return sc, nil, nil
	}
	if e.Data.Kind != kind {
		return sc, nil, cmn.ErrWrongType
	}
	return sc, e, nil
}
