// Package command implements the typed command surface: parsing RESP
// argument vectors into closed-world command values, the lock planner
// binding, and per-command execution against the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"regexp"
	"strconv"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

func init() {
	register("del", parseDel)
	register("unlink", parseDel)
	register("exists", parseExists)
	register("expire", parseExpire("expire"))
	register("pexpire", parseExpire("pexpire"))
	register("expireat", parseExpire("expireat"))
	register("pexpireat", parseExpire("pexpireat"))
	register("persist", parsePersist)
	register("ttl", parseTTL(false))
	register("pttl", parseTTL(true))
	register("type", parseType)
	register("keys", parseKeys)
	register("scan", parseScan)
	register("randomkey", parseRandomKey)
	register("rename", parseRename(false))
	register("renamenx", parseRename(true))
	register("dbsize", parseDbSize)
	register("flushdb", parseFlush("flushdb"))
	register("flushall", parseFlush("flushall"))
	register("echo", parseEcho)
	register("ping", parsePing)
	register("select", parseSelect)
	register("cache.purgetag", parsePurgeTag)
}

type delCmd struct{ base }

func parseDel(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("del")
	}
	return &delCmd{mkBase("del", cmn.FlagWrite, toStrings(args)...)}, nil
}

func (c *delCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	deleted := int64(0)
	for _, key := range c.keys {
		sc := ctx.Locks.CacheFor(key)
		if e := sc.Get(key, ctx.Now); e != nil {
			sc.Pop(key)
			deleted++
		}
	}
	if deleted == 0 {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	return resp.Int(deleted), store.Deleted(uint64(deleted)), nil
}

type existsCmd struct{ base }

func parseExists(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("exists")
	}
	return &existsCmd{mkBase("exists", cmn.FlagReadonly, toStrings(args)...)}, nil
}

func (c *existsCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	n := int64(0)
	for _, key := range c.keys {
		if ctx.Locks.CacheFor(key).Get(key, ctx.Now) != nil {
			n++
		}
	}
	return resp.Int(n), store.DidNotWrite(), nil
}

//
// expiry management
//

type expireCmd struct {
	base
	value    int64
	millis   bool
	absolute bool
}

func parseExpire(name string) parseFn {
	return func(args [][]byte) (Command, error) {
		if len(args) != 2 {
			return nil, cmn.ErrWrongArgCount(name)
		}
		n, err := parseInt(args[1])
		if err != nil {
			return nil, err
		}
		return &expireCmd{
			base:     mkBase(name, cmn.FlagWrite, string(args[0])),
			value:    n,
			millis:   name == "pexpire" || name == "pexpireat",
			absolute: name == "expireat" || name == "pexpireat",
		}, nil
	}
}

func (c *expireCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc := ctx.Locks.CacheFor(key)
	e := sc.Get(key, ctx.Now)
	if e == nil {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	v := c.value
	if !c.millis {
		v *= 1000
	}
	at := v
	if !c.absolute {
		at = ctx.Now + v
	}
	if at <= ctx.Now {
		sc.Pop(key)
		return resp.Int(1), store.Deleted(1), nil
	}
	sc.SetExpiry(key, e, at)
	return resp.Int(1), store.Wrote(1), nil
}

type persistCmd struct{ base }

func parsePersist(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("persist")
	}
	return &persistCmd{mkBase("persist", cmn.FlagWrite, string(args[0]))}, nil
}

func (c *persistCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc := ctx.Locks.CacheFor(key)
	e := sc.Get(key, ctx.Now)
	if e == nil || e.ExpireAt == 0 {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	sc.SetExpiry(key, e, 0)
	return resp.Int(1), store.Wrote(1), nil
}

type ttlCmd struct {
	base
	millis bool
}

func parseTTL(millis bool) parseFn {
	name := "ttl"
	if millis {
		name = "pttl"
	}
	return func(args [][]byte) (Command, error) {
		if len(args) != 1 {
			return nil, cmn.ErrWrongArgCount(name)
		}
		return &ttlCmd{base: mkBase(name, cmn.FlagReadonly, string(args[0])), millis: millis}, nil
	}
}

func (c *ttlCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	e := ctx.Locks.CacheFor(key).Get(key, ctx.Now)
	if e == nil {
		return resp.Int(-2), store.DidNotWrite(), nil
	}
	if e.ExpireAt == 0 {
		return resp.Int(-1), store.DidNotWrite(), nil
	}
	remaining := e.ExpireAt - ctx.Now
	if !c.millis {
		remaining = (remaining + 999) / 1000
	}
	return resp.Int(remaining), store.DidNotWrite(), nil
}

type typeCmd struct{ base }

func parseType(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("type")
	}
	return &typeCmd{mkBase("type", cmn.FlagReadonly, string(args[0]))}, nil
}

func (c *typeCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	e := ctx.Locks.CacheFor(key).Get(key, ctx.Now)
	if e == nil {
		return resp.Simple("none"), store.DidNotWrite(), nil
	}
	return resp.Simple(e.Data.Kind.String()), store.DidNotWrite(), nil
}

//
// KEYS / SCAN / RANDOMKEY
//

type keysCmd struct {
	base
	pattern string
}

func parseKeys(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("keys")
	}
	return &keysCmd{base: mkBase("keys", cmn.FlagReadonly), pattern: string(args[0])}, nil
}

func (c *keysCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	re, err := cmn.CompileGlob(c.pattern)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrSyntax
	}
	var out []resp.Value
	for i := 0; i < store.NumShards; i++ {
		sc := ctx.Locks.Cache(i)
		for _, k := range sc.Keys() {
			e := sc.Peek(k)
			if e == nil || e.IsExpired(ctx.Now) {
				continue
			}
			if re.MatchString(k) {
				out = append(out, resp.BulkString(k))
			}
		}
	}
	return resp.ArrV(out), store.DidNotWrite(), nil
}

type scanCmd struct {
	base
	cursor  int64
	pattern string
	count   int64
}

func parseScan(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("scan")
	}
	cur, err := parseInt(args[0])
	if err != nil || cur < 0 {
		return nil, cmn.NewErr(cmn.KindInvalidRequest, "invalid cursor")
	}
	c := &scanCmd{base: mkBase("scan", cmn.FlagReadonly), cursor: cur, count: 10}
	for i := 1; i < len(args); i++ {
		switch {
		case eqFold(args[i], "match"):
			if i+1 >= len(args) {
				return nil, cmn.ErrSyntax
			}
			c.pattern = string(args[i+1])
			i++
		case eqFold(args[i], "count"):
			if i+1 >= len(args) {
				return nil, cmn.ErrSyntax
			}
			n, err := parseInt(args[i+1])
			if err != nil || n <= 0 {
				return nil, cmn.ErrSyntax
			}
			c.count = n
			i++
		default:
			return nil, cmn.ErrSyntax
		}
	}
	return c, nil
}

// Execute walks one shard per step: the cursor is the next shard index, and 0
// again once every shard has been visited. Each step takes only that shard's
// lock.
func (c *scanCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if c.cursor >= store.NumShards {
		return resp.Arr(resp.BulkString("0"), resp.Arr()), store.DidNotWrite(), nil
	}
	var re *regexp.Regexp
	if c.pattern != "" {
		compiled, err := cmn.CompileGlob(c.pattern)
		if err != nil {
			return resp.Value{}, store.DidNotWrite(), cmn.ErrSyntax
		}
		re = compiled
	}
	// Inside EXEC every shard guard is already held; otherwise this step
	// takes only its own shard's lock.
	ls := ctx.Locks
	owned := ls.Kind != store.LockAll
	if owned {
		ls = ctx.DB.LockIndex(int(c.cursor))
	}
	sc := ls.Cache(int(c.cursor))
	var keys []resp.Value
	for _, k := range sc.Keys() {
		e := sc.Peek(k)
		if e == nil || e.IsExpired(ctx.Now) {
			continue
		}
		if re != nil && !re.MatchString(k) {
			continue
		}
		keys = append(keys, resp.BulkString(k))
	}
	if owned {
		ls.Release()
	}
	next := c.cursor + 1
	if next >= store.NumShards {
		next = 0
	}
	return resp.Arr(resp.BulkString(strconv.FormatInt(next, 10)), resp.ArrV(keys)),
		store.DidNotWrite(), nil
}

type randomKeyCmd struct{ base }

func parseRandomKey(args [][]byte) (Command, error) {
	if len(args) != 0 {
		return nil, cmn.ErrWrongArgCount("randomkey")
	}
	return &randomKeyCmd{mkBase("randomkey", cmn.FlagReadonly)}, nil
}

func (c *randomKeyCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	for i := 0; i < store.NumShards; i++ {
		sc := ctx.Locks.Cache(i)
		for _, k := range sc.Keys() {
			if e := sc.Peek(k); e != nil && !e.IsExpired(ctx.Now) {
				return resp.BulkString(k), store.DidNotWrite(), nil
			}
		}
	}
	return resp.Null(), store.DidNotWrite(), nil
}

//
// RENAME / RENAMENX
//

type renameCmd struct {
	base
	nx bool
}

func parseRename(nx bool) parseFn {
	name := "rename"
	if nx {
		name = "renamenx"
	}
	return func(args [][]byte) (Command, error) {
		if len(args) != 2 {
			return nil, cmn.ErrWrongArgCount(name)
		}
		return &renameCmd{base: mkBase(name, cmn.FlagWrite, string(args[0]), string(args[1])), nx: nx}, nil
	}
}

func (c *renameCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	src, dst := c.keys[0], c.keys[1]
	if c.nx && src == dst {
		// Answers 0 without an existence check.
		return resp.Int(0), store.DidNotWrite(), nil
	}
	srcCache := ctx.Locks.CacheFor(src)
	dstCache := ctx.Locks.CacheFor(dst)
	if c.nx {
		if de := dstCache.Get(dst, ctx.Now); de != nil {
			return resp.Int(0), store.DidNotWrite(), nil
		}
	}
	se := srcCache.Get(src, ctx.Now)
	if se == nil {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrKeyNotFound
	}
	// Anyone blocked on the source key must re-check before it vanishes.
	if se.Data.Kind == store.KindList || se.Data.Kind == store.KindZSet {
		ctx.Blockers.Wake(src)
	}
	srcCache.Pop(src)
	if old := dstCache.Get(dst, ctx.Now); old != nil {
		se.Version = old.Version + 1
	} else {
		se.Version++
	}
	dstCache.Put(dst, se)
	if c.nx {
		return resp.Int(1), store.Wrote(2), nil
	}
	return resp.OK(), store.Wrote(2), nil
}

//
// DBSIZE / FLUSHDB / FLUSHALL
//

type dbsizeCmd struct{ base }

func parseDbSize(args [][]byte) (Command, error) {
	if len(args) != 0 {
		return nil, cmn.ErrWrongArgCount("dbsize")
	}
	return &dbsizeCmd{mkBase("dbsize", cmn.FlagReadonly)}, nil
}

func (c *dbsizeCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	// Lock-free via the per-shard counters.
	return resp.Int(ctx.DB.KeyCount()), store.DidNotWrite(), nil
}

type flushCmd struct{ base }

func parseFlush(name string) parseFn {
	return func(args [][]byte) (Command, error) {
		if len(args) != 0 {
			return nil, cmn.ErrWrongArgCount(name)
		}
		return &flushCmd{mkBase(name, cmn.FlagWrite)}, nil
	}
}

func (c *flushCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	// FLUSHDB arrives holding the all-shard plan; FLUSHALL (and either form
	// inside EXEC with the widened plan) reuses held guards when present.
	if ctx.Locks.Kind == store.LockAll {
		for i := 0; i < store.NumShards; i++ {
			ctx.Locks.Cache(i).Clear()
		}
		return resp.OK(), store.Flushed(), nil
	}
	ctx.DB.FlushAll()
	return resp.OK(), store.Flushed(), nil
}

//
// connection-level
//

type echoCmd struct {
	base
	msg []byte
}

func parseEcho(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("echo")
	}
	return &echoCmd{base: mkBase("echo", 0), msg: args[0]}, nil
}

func (c *echoCmd) Execute(*Context) (resp.Value, store.WriteOutcome, error) {
	return resp.Bulk(c.msg), store.DidNotWrite(), nil
}

type pingCmd struct {
	base
	msg []byte
}

func parsePing(args [][]byte) (Command, error) {
	if len(args) > 1 {
		return nil, cmn.ErrWrongArgCount("ping")
	}
	c := &pingCmd{base: mkBase("ping", 0)}
	if len(args) == 1 {
		c.msg = args[0]
	}
	return c, nil
}

func (c *pingCmd) Execute(*Context) (resp.Value, store.WriteOutcome, error) {
	if c.msg != nil {
		return resp.Bulk(c.msg), store.DidNotWrite(), nil
	}
	return resp.Simple("PONG"), store.DidNotWrite(), nil
}

type selectCmd struct {
	base
	index int64
}

func parseSelect(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("select")
	}
	n, err := parseInt(args[0])
	if err != nil {
		return nil, err
	}
	return &selectCmd{base: mkBase("select", 0), index: n}, nil
}

func (c *selectCmd) Execute(*Context) (resp.Value, store.WriteOutcome, error) {
	// Single logical database.
	if c.index != 0 {
		return resp.Value{}, store.DidNotWrite(), cmn.NewErr(cmn.KindInvalidRequest, "DB index is out of range")
	}
	return resp.OK(), store.DidNotWrite(), nil
}

//
// CACHE.PURGETAG
//

type purgeTagCmd struct {
	base
	tags []string
}

func parsePurgeTag(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("cache.purgetag")
	}
	return &purgeTagCmd{base: mkBase("cache.purgetag", cmn.FlagWrite), tags: toStrings(args)}, nil
}

// Execute sweeps shard by shard under that shard's own lock; the tag index
// resolves candidates without touching entries of other kinds.
func (c *purgeTagCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	purged := int64(0)
	held := ctx.Locks.Kind == store.LockAll
	for i := 0; i < store.NumShards; i++ {
		ls := ctx.Locks
		if !held {
			ls = ctx.DB.LockIndex(i)
		}
		sc := ls.Cache(i)
		for _, tag := range c.tags {
			for _, k := range sc.TaggedKeys(tag) {
				if sc.Pop(k) != nil {
					purged++
				}
			}
		}
		if !held {
			ls.Release()
		}
	}
	if purged == 0 {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	return resp.Int(purged), store.Deleted(uint64(purged)), nil
}
