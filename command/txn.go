// Package command implements the typed command surface: parsing RESP
// argument vectors into closed-world command values, the lock planner
// binding, and per-command execution against the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"sync"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

func init() {
	register("multi", parseNoArg("multi", parseMulti))
	register("exec", parseNoArg("exec", parseExec))
	register("discard", parseNoArg("discard", parseDiscard))
	register("watch", parseWatch)
	register("unwatch", parseNoArg("unwatch", parseUnwatch))
}

func parseNoArg(name string, build func() Command) parseFn {
	return func(args [][]byte) (Command, error) {
		if len(args) != 0 {
			return nil, cmn.ErrWrongArgCount(name)
		}
		return build(), nil
	}
}

type (
	// TxnState is one session's transaction: the queued commands and the
	// version snapshot of every watched key. A nil version pointer records
	// "did not exist at WATCH time".
	TxnState struct {
		Commands []Command
		Watched  map[string]*uint64
		InTxn    bool
		HasError bool
	}

	// TxnRegistry owns the per-session transaction states. Created by WATCH
	// or MULTI; destroyed by EXEC, DISCARD, UNWATCH, or disconnect.
	TxnRegistry struct {
		mu sync.Mutex
		m  map[uint64]*TxnState
	}
)

func NewTxnRegistry() *TxnRegistry {
	return &TxnRegistry{m: make(map[uint64]*TxnState)}
}

func (tr *TxnRegistry) getOrCreate(sessionID uint64) *TxnState {
	st := tr.m[sessionID]
	if st == nil {
		st = &TxnState{Watched: make(map[string]*uint64)}
		tr.m[sessionID] = st
	}
	return st
}

// Lookup returns the session's state, or nil.
func (tr *TxnRegistry) Lookup(sessionID uint64) *TxnState {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.m[sessionID]
}

// InTxn reports whether the session is queuing.
func (tr *TxnRegistry) InTxn(sessionID uint64) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	st := tr.m[sessionID]
	return st != nil && st.InTxn
}

// Begin marks the session transactional and clears any stale queue.
func (tr *TxnRegistry) Begin(sessionID uint64) {
	tr.mu.Lock()
	st := tr.getOrCreate(sessionID)
	st.Commands = st.Commands[:0]
	st.HasError = false
	st.InTxn = true
	tr.mu.Unlock()
}

// Queue appends a parsed command to the session's transaction.
func (tr *TxnRegistry) Queue(sessionID uint64, c Command) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	st := tr.m[sessionID]
	if st == nil || !st.InTxn {
		return cmn.ErrInvalidState("command queued without MULTI")
	}
	st.Commands = append(st.Commands, c)
	return nil
}

// MarkError sets the sticky queue-time failure flag.
func (tr *TxnRegistry) MarkError(sessionID uint64) {
	tr.mu.Lock()
	if st := tr.m[sessionID]; st != nil {
		st.HasError = true
	}
	tr.mu.Unlock()
}

// Watch snapshots the version of each key under the sorted multi-shard lock
// and releases it before returning.
func (tr *TxnRegistry) Watch(db *store.Db, sessionID uint64, keys []string) {
	if len(keys) == 0 {
		return
	}
	ls := db.LockKeys(keys)
	now := store.NowMs()
	snap := make(map[string]*uint64, len(keys))
	for _, k := range keys {
		if e := ls.CacheFor(k).Peek(k); e != nil && !e.IsExpired(now) {
			v := e.Version
			snap[k] = &v
		} else {
			snap[k] = nil
		}
	}
	ls.Release()
	tr.mu.Lock()
	st := tr.getOrCreate(sessionID)
	for k, v := range snap {
		st.Watched[k] = v
	}
	tr.mu.Unlock()
}

// Unwatch clears only the watches, leaving any queued commands alone.
func (tr *TxnRegistry) Unwatch(sessionID uint64) {
	tr.mu.Lock()
	if st := tr.m[sessionID]; st != nil {
		st.Watched = make(map[string]*uint64)
		if !st.InTxn {
			delete(tr.m, sessionID)
		}
	}
	tr.mu.Unlock()
}

// Take removes and returns the session's state.
func (tr *TxnRegistry) Take(sessionID uint64) *TxnState {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	st := tr.m[sessionID]
	delete(tr.m, sessionID)
	return st
}

// Discard drops the session's transaction; never fails, matching DISCARD
// without MULTI.
func (tr *TxnRegistry) Discard(sessionID uint64) {
	tr.mu.Lock()
	delete(tr.m, sessionID)
	tr.mu.Unlock()
}

//
// commands
//

type multiCmd struct{ base }

func parseMulti() Command { return &multiCmd{mkBase("multi", cmn.FlagTransaction)} }

func (c *multiCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.Txns.InTxn(ctx.Sess.ID()) {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrInvalidState("MULTI calls can not be nested")
	}
	ctx.Txns.Begin(ctx.Sess.ID())
	return resp.OK(), store.DidNotWrite(), nil
}

type watchCmd struct{ base }

func parseWatch(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("watch")
	}
	return &watchCmd{mkBase("watch", cmn.FlagTransaction, toStrings(args)...)}, nil
}

func (c *watchCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.Txns.InTxn(ctx.Sess.ID()) {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrInvalidState("WATCH inside MULTI is not allowed")
	}
	ctx.Txns.Watch(ctx.DB, ctx.Sess.ID(), c.keys)
	return resp.OK(), store.DidNotWrite(), nil
}

type unwatchCmd struct{ base }

func parseUnwatch() Command { return &unwatchCmd{mkBase("unwatch", cmn.FlagTransaction)} }

func (c *unwatchCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	ctx.Txns.Unwatch(ctx.Sess.ID())
	return resp.OK(), store.DidNotWrite(), nil
}

type discardCmd struct{ base }

func parseDiscard() Command { return &discardCmd{mkBase("discard", cmn.FlagTransaction)} }

func (c *discardCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	ctx.Txns.Discard(ctx.Sess.ID())
	return resp.OK(), store.DidNotWrite(), nil
}

type execCmd struct{ base }

func parseExec() Command { return &execCmd{mkBase("exec", cmn.FlagTransaction)} }

func (c *execCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	st := ctx.Txns.Take(ctx.Sess.ID())
	if st == nil || !st.InTxn {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrInvalidState("EXEC without MULTI")
	}
	if st.HasError {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrTxnAborted
	}

	// Lock the union of watched and mutated keys, ascending shard order. A
	// queued command that normally plans its own locking (SCAN, KEYS,
	// FLUSHDB, ...) widens the plan to every shard so it can reuse the held
	// guards.
	union := make([]string, 0, len(st.Watched))
	for k := range st.Watched {
		union = append(union, k)
	}
	wide := false
	for _, queued := range st.Commands {
		union = append(union, queued.Keys()...)
		switch queued.Name() {
		case "keys", "flushdb", "flushall", "scan", "randomkey", "cache.purgetag":
			wide = true
		}
	}
	var ls *store.LockSet
	switch {
	case wide:
		ls = ctx.DB.LockAll()
	case len(union) > 0:
		ls = ctx.DB.LockKeys(union)
	default:
		ls = ctx.DB.PlanNone()
	}
	defer ls.Release()

	// Optimistic-concurrency check: a changed version or changed presence
	// fails the whole transaction with the nil array.
	now := store.NowMs()
	for k, snap := range st.Watched {
		e := ls.CacheFor(k).Peek(k)
		alive := e != nil && !e.IsExpired(now)
		switch {
		case snap == nil && alive:
			return resp.NullArray(), store.DidNotWrite(), nil
		case snap != nil && !alive:
			return resp.NullArray(), store.DidNotWrite(), nil
		case snap != nil && alive && e.Version != *snap:
			return resp.NullArray(), store.DidNotWrite(), nil
		}
	}

	results := make([]resp.Value, 0, len(st.Commands))
	outcome := store.DidNotWrite()
	for _, queued := range st.Commands {
		sub := *ctx
		sub.Locks = ls
		sub.Now = store.NowMs()
		sub.NoBlock = true
		val, out, err := queued.Execute(&sub)
		if err != nil {
			// Per-command failures land in the reply array; EXEC itself
			// keeps going.
			results = append(results, resp.ErrValue(err))
			continue
		}
		results = append(results, val)
		outcome = outcome.Merge(out)
	}
	return resp.ArrV(results), outcome, nil
}
