// Package command implements the typed command surface: parsing RESP
// argument vectors into closed-world command values, the lock planner
// binding, and per-command execution against the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"math"
	"strconv"
	"strings"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

func init() {
	register("get", parseGet)
	register("set", parseSet)
	register("setex", parseSetEx(false))
	register("psetex", parseSetEx(true))
	register("getset", parseGetSet)
	register("getdel", parseGetDel)
	register("getrange", parseGetRange)
	register("incr", parseIncrBy(1, true))
	register("decr", parseIncrBy(-1, true))
	register("incrby", parseIncrBy(1, false))
	register("decrby", parseIncrBy(-1, false))
	register("incrbyfloat", parseIncrByFloat)
	register("mget", parseMGet)
	register("mset", parseMSet)
	register("bitop", parseBitop)
	register("strlen", parseStrlen)
	register("append", parseAppend)
}

//
// GET
//

type getCmd struct{ base }

func parseGet(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("get")
	}
	return &getCmd{mkBase("get", cmn.FlagReadonly, string(args[0]))}, nil
}

func (c *getCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindString)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		ctx.Stats.KeyspaceMiss.Inc()
		return resp.Null(), store.DidNotWrite(), nil
	}
	ctx.Stats.KeyspaceHits.Inc()
	return resp.Bulk(e.Data.Str), store.DidNotWrite(), nil
}

//
// SET and variants
//

type ttlOption int

const (
	ttlNone ttlOption = iota
	ttlSeconds
	ttlMillis
	ttlUnixSeconds
	ttlUnixMillis
	ttlKeepExisting
	ttlPersist
)

type setCondition int

const (
	condAlways setCondition = iota
	condIfExists
	condIfNotExists
)

type setCmd struct {
	base
	value   []byte
	ttlVal  int64
	ttl     ttlOption
	cond    setCondition
	withGet bool
}

func parseSet(args [][]byte) (Command, error) {
	if len(args) < 2 {
		return nil, cmn.ErrWrongArgCount("set")
	}
	c := &setCmd{base: mkBase("set", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])), value: args[1]}
	ttlSeen := 0
	for i := 2; i < len(args); i++ {
		switch {
		case eqFold(args[i], "ex"), eqFold(args[i], "px"), eqFold(args[i], "exat"), eqFold(args[i], "pxat"):
			if i+1 >= len(args) {
				return nil, cmn.ErrSyntax
			}
			n, err := parseInt(args[i+1])
			if err != nil {
				return nil, err
			}
			switch {
			case eqFold(args[i], "ex"):
				c.ttl = ttlSeconds
			case eqFold(args[i], "px"):
				c.ttl = ttlMillis
			case eqFold(args[i], "exat"):
				c.ttl = ttlUnixSeconds
			default:
				c.ttl = ttlUnixMillis
			}
			c.ttlVal = n
			i++
			ttlSeen++
		case eqFold(args[i], "keepttl"):
			c.ttl = ttlKeepExisting
			ttlSeen++
		case eqFold(args[i], "persist"):
			c.ttl = ttlPersist
			ttlSeen++
		case eqFold(args[i], "nx"):
			if c.cond != condAlways {
				return nil, cmn.ErrSyntax
			}
			c.cond = condIfNotExists
		case eqFold(args[i], "xx"):
			if c.cond != condAlways {
				return nil, cmn.ErrSyntax
			}
			c.cond = condIfExists
		case eqFold(args[i], "get"):
			c.withGet = true
		default:
			return nil, cmn.ErrSyntax
		}
	}
	if ttlSeen > 1 {
		return nil, cmn.ErrSyntax
	}
	return c, nil
}

func (c *setCmd) expireAt(now int64, existing *store.StoredValue) int64 {
	switch c.ttl {
	case ttlSeconds:
		return now + c.ttlVal*1000
	case ttlMillis:
		return now + c.ttlVal
	case ttlUnixSeconds:
		return c.ttlVal * 1000
	case ttlUnixMillis:
		return c.ttlVal
	case ttlKeepExisting:
		if existing != nil {
			return existing.ExpireAt
		}
		return 0
	default:
		// Plain SET and PERSIST both drop any existing TTL.
		return 0
	}
}

func (c *setCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc := ctx.Locks.CacheFor(key)
	existing := sc.Get(key, ctx.Now)

	oldValue := resp.Null()
	if c.withGet && existing != nil {
		if existing.Data.Kind != store.KindString {
			return resp.Value{}, store.DidNotWrite(), cmn.ErrWrongType
		}
		oldValue = resp.Bulk(existing.Data.Str)
	}
	if existing != nil && existing.Data.Kind != store.KindString {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrWrongType
	}

	if (c.cond == condIfExists && existing == nil) || (c.cond == condIfNotExists && existing != nil) {
		if c.withGet {
			return oldValue, store.DidNotWrite(), nil
		}
		return resp.Null(), store.DidNotWrite(), nil
	}

	at := c.expireAt(ctx.Now, existing)
	// A deadline already in the past acts as SET-then-DEL.
	if at != 0 && at <= ctx.Now {
		outcome := store.DidNotWrite()
		if sc.Pop(key) != nil {
			outcome = store.Deleted(1)
		}
		if c.withGet {
			return oldValue, outcome, nil
		}
		return resp.OK(), outcome, nil
	}

	v := store.NewString(c.value)
	v.ExpireAt = at
	if existing != nil {
		v.Version = existing.Version + 1
	}
	sc.Put(key, v)

	if c.withGet {
		return oldValue, store.Wrote(1), nil
	}
	return resp.OK(), store.Wrote(1), nil
}

func parseSetEx(millis bool) parseFn {
	name := "setex"
	if millis {
		name = "psetex"
	}
	return func(args [][]byte) (Command, error) {
		if len(args) != 3 {
			return nil, cmn.ErrWrongArgCount(name)
		}
		n, err := parseInt(args[1])
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, cmn.NewErr(cmn.KindInvalidRequest, "invalid expire time in '%s' command", name)
		}
		c := &setCmd{
			base:   mkBase(name, cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])),
			value:  args[2],
			ttlVal: n,
			ttl:    ttlSeconds,
		}
		if millis {
			c.ttl = ttlMillis
		}
		return c, nil
	}
}

//
// GETSET / GETDEL
//

type getSetCmd struct {
	base
	value []byte
}

func parseGetSet(args [][]byte) (Command, error) {
	if len(args) != 2 {
		return nil, cmn.ErrWrongArgCount("getset")
	}
	return &getSetCmd{base: mkBase("getset", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])), value: args[1]}, nil
}

func (c *getSetCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindString)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	old := resp.Null()
	v := store.NewString(c.value)
	if e != nil {
		old = resp.Bulk(e.Data.Str)
		v.Version = e.Version + 1
	}
	sc.Put(key, v)
	return old, store.Wrote(1), nil
}

type getDelCmd struct{ base }

func parseGetDel(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("getdel")
	}
	return &getDelCmd{mkBase("getdel", cmn.FlagWrite, string(args[0]))}, nil
}

func (c *getDelCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindString)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Null(), store.DidNotWrite(), nil
	}
	sc.Pop(key)
	return resp.Bulk(e.Data.Str), store.Deleted(1), nil
}

//
// GETRANGE
//

type getRangeCmd struct {
	base
	start, stop int64
}

func parseGetRange(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("getrange")
	}
	start, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	stop, err := parseInt(args[2])
	if err != nil {
		return nil, err
	}
	return &getRangeCmd{base: mkBase("getrange", cmn.FlagReadonly, string(args[0])), start: start, stop: stop}, nil
}

func (c *getRangeCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindString)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Bulk(nil), store.DidNotWrite(), nil
	}
	start, stop, ok := normalizeRange(c.start, c.stop, int64(len(e.Data.Str)))
	if !ok {
		return resp.Bulk(nil), store.DidNotWrite(), nil
	}
	return resp.Bulk(e.Data.Str[start : stop+1]), store.DidNotWrite(), nil
}

//
// INCR family
//

type incrByCmd struct {
	base
	delta int64
}

func parseIncrBy(sign int64, implicit bool) parseFn {
	return func(args [][]byte) (Command, error) {
		name := map[int64]string{1: "incr", -1: "decr"}[sign]
		if !implicit {
			name += "by"
		}
		delta := sign
		if implicit {
			if len(args) != 1 {
				return nil, cmn.ErrWrongArgCount(name)
			}
		} else {
			if len(args) != 2 {
				return nil, cmn.ErrWrongArgCount(name)
			}
			n, err := parseInt(args[1])
			if err != nil {
				return nil, err
			}
			delta = sign * n
		}
		return &incrByCmd{base: mkBase(name, cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])), delta: delta}, nil
	}
}

func (c *incrByCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	sc, e, err := ctx.lookup(c.keys[0], store.KindString)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	var cur int64
	if e != nil {
		cur, err = parseInt(e.Data.Str)
		if err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
	}
	if (c.delta > 0 && cur > math.MaxInt64-c.delta) || (c.delta < 0 && cur < math.MinInt64-c.delta) {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrOverflow
	}
	next := cur + c.delta
	raw := []byte(strconv.FormatInt(next, 10))
	if e == nil {
		sc.Put(c.keys[0], store.NewString(raw))
	} else {
		oldSize := e.Size
		e.Data.Str = raw
		sc.Bump(c.keys[0], e, oldSize)
	}
	return resp.Int(next), store.Wrote(1), nil
}

type incrByFloatCmd struct {
	base
	delta float64
}

func parseIncrByFloat(args [][]byte) (Command, error) {
	if len(args) != 2 {
		return nil, cmn.ErrWrongArgCount("incrbyfloat")
	}
	f, err := parseFloat(args[1])
	if err != nil {
		return nil, err
	}
	return &incrByFloatCmd{base: mkBase("incrbyfloat", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])), delta: f}, nil
}

func (c *incrByFloatCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	sc, e, err := ctx.lookup(c.keys[0], store.KindString)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	var cur float64
	if e != nil {
		cur, err = parseFloat(e.Data.Str)
		if err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
	}
	next := cur + c.delta
	if math.IsInf(next, 0) || math.IsNaN(next) {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrOverflow
	}
	raw := []byte(formatFloat(next))
	if e == nil {
		sc.Put(c.keys[0], store.NewString(raw))
	} else {
		oldSize := e.Size
		e.Data.Str = raw
		sc.Bump(c.keys[0], e, oldSize)
	}
	return resp.Bulk(raw), store.Wrote(1), nil
}

//
// MGET / MSET
//

type mgetCmd struct{ base }

func parseMGet(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("mget")
	}
	return &mgetCmd{mkBase("mget", cmn.FlagReadonly, toStrings(args)...)}, nil
}

func (c *mgetCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	out := make([]resp.Value, len(c.keys))
	for i, key := range c.keys {
		e := ctx.Locks.CacheFor(key).Get(key, ctx.Now)
		if e == nil || e.Data.Kind != store.KindString {
			// A wrong-typed key yields nil in MGET, never an error.
			out[i] = resp.Null()
			continue
		}
		out[i] = resp.Bulk(e.Data.Str)
	}
	return resp.ArrV(out), store.DidNotWrite(), nil
}

type msetCmd struct {
	base
	values [][]byte
}

func parseMSet(args [][]byte) (Command, error) {
	if len(args) < 2 || len(args)%2 != 0 {
		return nil, cmn.ErrWrongArgCount("mset")
	}
	keys := make([]string, 0, len(args)/2)
	values := make([][]byte, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		keys = append(keys, string(args[i]))
		values = append(values, args[i+1])
	}
	return &msetCmd{base: mkBase("mset", cmn.FlagWrite|cmn.FlagDenyOOM, keys...), values: values}, nil
}

func (c *msetCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	for i, key := range c.keys {
		sc := ctx.Locks.CacheFor(key)
		v := store.NewString(c.values[i])
		if old := sc.Get(key, ctx.Now); old != nil {
			v.Version = old.Version + 1
		}
		sc.Put(key, v)
	}
	return resp.OK(), store.Wrote(uint64(len(c.keys))), nil
}

//
// STRLEN / APPEND
//

type strlenCmd struct{ base }

func parseStrlen(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("strlen")
	}
	return &strlenCmd{mkBase("strlen", cmn.FlagReadonly, string(args[0]))}, nil
}

func (c *strlenCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindString)
	if err != nil || e == nil {
		return resp.Int(0), store.DidNotWrite(), err
	}
	return resp.Int(int64(len(e.Data.Str))), store.DidNotWrite(), nil
}

type appendCmd struct {
	base
	value []byte
}

func parseAppend(args [][]byte) (Command, error) {
	if len(args) != 2 {
		return nil, cmn.ErrWrongArgCount("append")
	}
	return &appendCmd{base: mkBase("append", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])), value: args[1]}, nil
}

func (c *appendCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	sc, e, err := ctx.lookup(c.keys[0], store.KindString)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		sc.Put(c.keys[0], store.NewString(c.value))
		return resp.Int(int64(len(c.value))), store.Wrote(1), nil
	}
	oldSize := e.Size
	e.Data.Str = append(e.Data.Str, c.value...)
	sc.Bump(c.keys[0], e, oldSize)
	return resp.Int(int64(len(e.Data.Str))), store.Wrote(1), nil
}

//
// BITOP
//

type bitopCmd struct {
	base
	op string // and | or | xor | not
}

func parseBitop(args [][]byte) (Command, error) {
	if len(args) < 3 {
		return nil, cmn.ErrWrongArgCount("bitop")
	}
	op := strings.ToLower(string(args[0]))
	switch op {
	case "and", "or", "xor":
	case "not":
		if len(args) != 3 {
			return nil, cmn.NewErr(cmn.KindInvalidRequest, "BITOP NOT must be called with a single source key")
		}
	default:
		return nil, cmn.ErrSyntax
	}
	return &bitopCmd{base: mkBase("bitop", cmn.FlagWrite|cmn.FlagDenyOOM, toStrings(args[1:])...), op: op}, nil
}

func (c *bitopCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	dst, srcs := c.keys[0], c.keys[1:]
	var operands [][]byte
	var maxLen int64
	for _, key := range srcs {
		_, e, err := ctx.lookup(key, store.KindString)
		if err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
		var b []byte
		if e != nil {
			b = e.Data.Str
		}
		operands = append(operands, b)
		if int64(len(b)) > maxLen {
			maxLen = int64(len(b))
		}
	}
	if limit := ctx.Rom.Get().MaxBitopAlloc; limit > 0 && maxLen > limit {
		return resp.Value{}, store.DidNotWrite(),
			cmn.NewErr(cmn.KindInvalidRequest, "BITOP result length %d exceeds max_bitop_alloc_size %d", maxLen, limit)
	}

	result := make([]byte, maxLen)
	if c.op == "not" {
		src := operands[0]
		for i := range result {
			var b byte
			if int64(i) < int64(len(src)) {
				b = src[i]
			}
			result[i] = ^b
		}
	} else {
		for i := int64(0); i < maxLen; i++ {
			var acc byte
			for j, src := range operands {
				var b byte
				if i < int64(len(src)) {
					b = src[i]
				}
				if j == 0 {
					acc = b
					continue
				}
				switch c.op {
				case "and":
					acc &= b
				case "or":
					acc |= b
				case "xor":
					acc ^= b
				}
			}
			result[i] = acc
		}
	}

	sc := ctx.Locks.CacheFor(dst)
	if maxLen == 0 {
		outcome := store.DidNotWrite()
		if sc.Pop(dst) != nil {
			outcome = store.Deleted(1)
		}
		return resp.Int(0), outcome, nil
	}
	v := store.NewString(result)
	if old := sc.Get(dst, ctx.Now); old != nil {
		v.Version = old.Version + 1
	}
	sc.Put(dst, v)
	return resp.Int(maxLen), store.Wrote(1), nil
}
