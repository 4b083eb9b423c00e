// Package command implements the typed command surface: parsing RESP
// argument vectors into closed-world command values, the lock planner
// binding, and per-command execution against the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"time"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

func init() {
	register("blpop", parseBlockingPop(store.Left))
	register("brpop", parseBlockingPop(store.Right))
	register("blmove", parseBLMove)
	register("bzpopmin", parseBlockingZPop(true))
	register("bzpopmax", parseBlockingZPop(false))
}

const blockingFlags = cmn.FlagWrite | cmn.FlagNoPropagate | cmn.FlagMovableKeys

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

//
// BLPOP / BRPOP
//

type blockingPopCmd struct {
	base
	timeout time.Duration
	side    store.ListSide
}

func parseBlockingPop(side store.ListSide) parseFn {
	name := "blpop"
	if side == store.Right {
		name = "brpop"
	}
	return func(args [][]byte) (Command, error) {
		if len(args) < 2 {
			return nil, cmn.ErrWrongArgCount(name)
		}
		secs, err := timeoutSeconds(args[len(args)-1])
		if err != nil {
			return nil, err
		}
		return &blockingPopCmd{
			base:    mkBase(name, blockingFlags, toStrings(args[:len(args)-1])...),
			side:    side,
			timeout: secondsToDuration(secs),
		}, nil
	}
}

func (c *blockingPopCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.NoBlock {
		key, el, err := store.TryListPop(ctx.Locks, c.keys, c.side, ctx.Now)
		if err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
		if key == "" {
			return resp.NullArray(), store.DidNotWrite(), nil
		}
		return resp.Arr(resp.BulkString(key), resp.Bulk(el)), store.Wrote(1), nil
	}
	ctx.Stats.BlockedConns.Inc()
	defer ctx.Stats.BlockedConns.Dec()
	key, el, err := ctx.Blockers.BlockingListPop(ctx.Ctx, ctx.DB, ctx.Sess.ID(), c.keys, c.side, c.timeout)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if key == "" {
		return resp.NullArray(), store.DidNotWrite(), nil
	}
	return resp.Arr(resp.BulkString(key), resp.Bulk(el)), store.Wrote(1), nil
}

//
// BLMOVE
//

type blmoveCmd struct {
	base
	from, to store.ListSide
	timeout  time.Duration
}

func parseBLMove(args [][]byte) (Command, error) {
	if len(args) != 5 {
		return nil, cmn.ErrWrongArgCount("blmove")
	}
	from, err := parseSide(args[2])
	if err != nil {
		return nil, err
	}
	to, err := parseSide(args[3])
	if err != nil {
		return nil, err
	}
	secs, err := timeoutSeconds(args[4])
	if err != nil {
		return nil, err
	}
	return &blmoveCmd{
		base:    mkBase("blmove", blockingFlags|cmn.FlagDenyOOM, string(args[0]), string(args[1])),
		from:    from,
		to:      to,
		timeout: secondsToDuration(secs),
	}, nil
}

func (c *blmoveCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.NoBlock {
		el, moved, err := store.MoveListElement(ctx.Locks, c.keys[0], c.keys[1], c.from, c.to, ctx.Now)
		if err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
		if !moved {
			return resp.Null(), store.DidNotWrite(), nil
		}
		return resp.Bulk(el), store.Wrote(2), nil
	}
	ctx.Stats.BlockedConns.Inc()
	defer ctx.Stats.BlockedConns.Dec()
	el, err := ctx.Blockers.BlockingMove(ctx.Ctx, ctx.DB, ctx.Sess.ID(),
		c.keys[0], c.keys[1], c.from, c.to, c.timeout)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if el == nil {
		return resp.Null(), store.DidNotWrite(), nil
	}
	// The destination gained an element; its waiters are runnable now.
	ctx.Blockers.Wake(c.keys[1])
	return resp.Bulk(el), store.Wrote(2), nil
}

//
// BZPOPMIN / BZPOPMAX
//

type bzpopCmd struct {
	base
	timeout time.Duration
	min     bool
}

func parseBlockingZPop(min bool) parseFn {
	name := "bzpopmax"
	if min {
		name = "bzpopmin"
	}
	return func(args [][]byte) (Command, error) {
		if len(args) < 2 {
			return nil, cmn.ErrWrongArgCount(name)
		}
		secs, err := timeoutSeconds(args[len(args)-1])
		if err != nil {
			return nil, err
		}
		return &bzpopCmd{
			base:    mkBase(name, blockingFlags, toStrings(args[:len(args)-1])...),
			min:     min,
			timeout: secondsToDuration(secs),
		}, nil
	}
}

func (c *bzpopCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.NoBlock {
		key, entry, ok, err := store.TryZPop(ctx.Locks, c.keys, c.min, ctx.Now)
		if err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
		if !ok {
			return resp.NullArray(), store.DidNotWrite(), nil
		}
		return resp.Arr(resp.BulkString(key), resp.BulkString(entry.Member),
			resp.BulkString(formatFloat(entry.Score))), store.Wrote(1), nil
	}
	ctx.Stats.BlockedConns.Inc()
	defer ctx.Stats.BlockedConns.Dec()
	key, entry, ok, err := ctx.Blockers.BlockingZPop(ctx.Ctx, ctx.DB, ctx.Sess.ID(), c.keys, c.min, c.timeout)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if !ok {
		return resp.NullArray(), store.DidNotWrite(), nil
	}
	return resp.Arr(resp.BulkString(key), resp.BulkString(entry.Member),
		resp.BulkString(formatFloat(entry.Score))), store.Wrote(1), nil
}
