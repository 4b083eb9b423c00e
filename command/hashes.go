// Package command implements the typed command surface: parsing RESP
// argument vectors into closed-world command values, the lock planner
// binding, and per-command execution against the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"bytes"
	"math"
	"strconv"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

func init() {
	register("hset", parseHSet)
	register("hmset", parseHSet) // legacy alias; replies with the HSET count of added fields
	register("hsetnx", parseHSetNx)
	register("hget", parseHGet)
	register("hdel", parseHDel)
	register("hgetall", parseHGetAll)
	register("hexists", parseHExists)
	register("hlen", parseHLen)
	register("hkeys", parseHKeys)
	register("hvals", parseHVals)
	register("hmget", parseHMGet)
	register("hincrby", parseHIncrBy)
}

type hsetCmd struct {
	base
	fields []string
	values [][]byte
}

func parseHSet(args [][]byte) (Command, error) {
	if len(args) < 3 || len(args)%2 != 1 {
		return nil, cmn.ErrWrongArgCount("hset")
	}
	c := &hsetCmd{base: mkBase("hset", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0]))}
	for i := 1; i < len(args); i += 2 {
		c.fields = append(c.fields, string(args[i]))
		c.values = append(c.values, args[i+1])
	}
	return c, nil
}

func (c *hsetCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindHash)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		e, _ = sc.GetOrInsertWith(key, ctx.Now, store.NewHash)
	}
	oldSize := e.Size
	added := int64(0)
	changed := false
	for i, f := range c.fields {
		old, existed := e.Data.Hash[f]
		if !existed {
			added++
			changed = true
		} else if !bytes.Equal(old, c.values[i]) {
			changed = true
		}
		e.Data.Hash[f] = c.values[i]
	}
	if changed {
		sc.Bump(key, e, oldSize)
		return resp.Int(added), store.Wrote(1), nil
	}
	return resp.Int(added), store.DidNotWrite(), nil
}

type hsetnxCmd struct {
	base
	field string
	value []byte
}

func parseHSetNx(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("hsetnx")
	}
	return &hsetnxCmd{
		base:  mkBase("hsetnx", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])),
		field: string(args[1]),
		value: args[2],
	}, nil
}

func (c *hsetnxCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindHash)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		e, _ = sc.GetOrInsertWith(key, ctx.Now, store.NewHash)
	}
	if _, exists := e.Data.Hash[c.field]; exists {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	oldSize := e.Size
	e.Data.Hash[c.field] = c.value
	sc.Bump(key, e, oldSize)
	return resp.Int(1), store.Wrote(1), nil
}

type hgetCmd struct {
	base
	field string
}

func parseHGet(args [][]byte) (Command, error) {
	if len(args) != 2 {
		return nil, cmn.ErrWrongArgCount("hget")
	}
	return &hgetCmd{base: mkBase("hget", cmn.FlagReadonly, string(args[0])), field: string(args[1])}, nil
}

func (c *hgetCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindHash)
	if err != nil || e == nil {
		return resp.Null(), store.DidNotWrite(), err
	}
	v, ok := e.Data.Hash[c.field]
	if !ok {
		return resp.Null(), store.DidNotWrite(), nil
	}
	return resp.Bulk(v), store.DidNotWrite(), nil
}

type hdelCmd struct {
	base
	fields []string
}

func parseHDel(args [][]byte) (Command, error) {
	if len(args) < 2 {
		return nil, cmn.ErrWrongArgCount("hdel")
	}
	return &hdelCmd{base: mkBase("hdel", cmn.FlagWrite, string(args[0])), fields: toStrings(args[1:])}, nil
}

func (c *hdelCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindHash)
	if err != nil || e == nil {
		return resp.Int(0), store.DidNotWrite(), err
	}
	oldSize := e.Size
	removed := int64(0)
	for _, f := range c.fields {
		if _, ok := e.Data.Hash[f]; ok {
			delete(e.Data.Hash, f)
			removed++
		}
	}
	if removed == 0 {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	outcome := store.Wrote(1)
	if len(e.Data.Hash) == 0 {
		sc.Pop(key)
		outcome = store.Deleted(1)
	} else {
		sc.Bump(key, e, oldSize)
	}
	return resp.Int(removed), outcome, nil
}

type hgetallCmd struct{ base }

func parseHGetAll(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("hgetall")
	}
	return &hgetallCmd{mkBase("hgetall", cmn.FlagReadonly, string(args[0]))}, nil
}

func (c *hgetallCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindHash)
	if err != nil || e == nil {
		return resp.Arr(), store.DidNotWrite(), err
	}
	out := make([]resp.Value, 0, len(e.Data.Hash)*2)
	for f, v := range e.Data.Hash {
		out = append(out, resp.BulkString(f), resp.Bulk(v))
	}
	return resp.ArrV(out), store.DidNotWrite(), nil
}

type hexistsCmd struct {
	base
	field string
}

func parseHExists(args [][]byte) (Command, error) {
	if len(args) != 2 {
		return nil, cmn.ErrWrongArgCount("hexists")
	}
	return &hexistsCmd{base: mkBase("hexists", cmn.FlagReadonly, string(args[0])), field: string(args[1])}, nil
}

func (c *hexistsCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindHash)
	if err != nil || e == nil {
		return resp.Int(0), store.DidNotWrite(), err
	}
	if _, ok := e.Data.Hash[c.field]; ok {
		return resp.Int(1), store.DidNotWrite(), nil
	}
	return resp.Int(0), store.DidNotWrite(), nil
}

type hlenCmd struct{ base }

func parseHLen(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("hlen")
	}
	return &hlenCmd{mkBase("hlen", cmn.FlagReadonly, string(args[0]))}, nil
}

func (c *hlenCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindHash)
	if err != nil || e == nil {
		return resp.Int(0), store.DidNotWrite(), err
	}
	return resp.Int(int64(len(e.Data.Hash))), store.DidNotWrite(), nil
}

type hkeysCmd struct{ base }

func parseHKeys(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("hkeys")
	}
	return &hkeysCmd{mkBase("hkeys", cmn.FlagReadonly, string(args[0]))}, nil
}

func (c *hkeysCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindHash)
	if err != nil || e == nil {
		return resp.Arr(), store.DidNotWrite(), err
	}
	out := make([]resp.Value, 0, len(e.Data.Hash))
	for f := range e.Data.Hash {
		out = append(out, resp.BulkString(f))
	}
	return resp.ArrV(out), store.DidNotWrite(), nil
}

type hvalsCmd struct{ base }

func parseHVals(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("hvals")
	}
	return &hvalsCmd{mkBase("hvals", cmn.FlagReadonly, string(args[0]))}, nil
}

func (c *hvalsCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindHash)
	if err != nil || e == nil {
		return resp.Arr(), store.DidNotWrite(), err
	}
	out := make([]resp.Value, 0, len(e.Data.Hash))
	for _, v := range e.Data.Hash {
		out = append(out, resp.Bulk(v))
	}
	return resp.ArrV(out), store.DidNotWrite(), nil
}

type hmgetCmd struct {
	base
	fields []string
}

func parseHMGet(args [][]byte) (Command, error) {
	if len(args) < 2 {
		return nil, cmn.ErrWrongArgCount("hmget")
	}
	return &hmgetCmd{base: mkBase("hmget", cmn.FlagReadonly, string(args[0])), fields: toStrings(args[1:])}, nil
}

func (c *hmgetCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindHash)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	out := make([]resp.Value, len(c.fields))
	for i, f := range c.fields {
		out[i] = resp.Null()
		if e != nil {
			if v, ok := e.Data.Hash[f]; ok {
				out[i] = resp.Bulk(v)
			}
		}
	}
	return resp.ArrV(out), store.DidNotWrite(), nil
}

type hincrbyCmd struct {
	base
	field string
	delta int64
}

func parseHIncrBy(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("hincrby")
	}
	n, err := parseInt(args[2])
	if err != nil {
		return nil, err
	}
	return &hincrbyCmd{
		base:  mkBase("hincrby", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])),
		field: string(args[1]),
		delta: n,
	}, nil
}

func (c *hincrbyCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindHash)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		e, _ = sc.GetOrInsertWith(key, ctx.Now, store.NewHash)
	}
	var cur int64
	if raw, ok := e.Data.Hash[c.field]; ok {
		cur, err = parseInt(raw)
		if err != nil {
			return resp.Value{}, store.DidNotWrite(), cmn.NewErr(cmn.KindNotAnInteger, "hash value is not an integer")
		}
	}
	if (c.delta > 0 && cur > math.MaxInt64-c.delta) || (c.delta < 0 && cur < math.MinInt64-c.delta) {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrOverflow
	}
	next := cur + c.delta
	oldSize := e.Size
	e.Data.Hash[c.field] = []byte(strconv.FormatInt(next, 10))
	sc.Bump(key, e, oldSize)
	return resp.Int(next), store.Wrote(1), nil
}
