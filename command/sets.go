// Package command implements the typed command surface: parsing RESP
// argument vectors into closed-world command values, the lock planner
// binding, and per-command execution against the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

func init() {
	register("sadd", parseSAdd)
	register("srem", parseSRem)
	register("smembers", parseSMembers)
	register("scard", parseSCard)
	register("sismember", parseSIsMember)
	register("smismember", parseSMIsMember)
	register("spop", parseSPop)
	register("srandmember", parseSRandMember)
	register("smove", parseSMove)
	register("sinter", parseSetOp("sinter", false))
	register("sunion", parseSetOp("sunion", false))
	register("sdiff", parseSetOp("sdiff", false))
	register("sinterstore", parseSetOp("sinterstore", true))
	register("sunionstore", parseSetOp("sunionstore", true))
	register("sdiffstore", parseSetOp("sdiffstore", true))
}

type saddCmd struct {
	base
	members []string
}

func parseSAdd(args [][]byte) (Command, error) {
	if len(args) < 2 {
		return nil, cmn.ErrWrongArgCount("sadd")
	}
	return &saddCmd{
		base:    mkBase("sadd", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])),
		members: toStrings(args[1:]),
	}, nil
}

func (c *saddCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		e, _ = sc.GetOrInsertWith(key, ctx.Now, store.NewSet)
	}
	oldSize := e.Size
	added := int64(0)
	for _, m := range c.members {
		if _, ok := e.Data.Set[m]; !ok {
			e.Data.Set[m] = struct{}{}
			added++
		}
	}
	if added == 0 {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	sc.Bump(key, e, oldSize)
	return resp.Int(added), store.Wrote(1), nil
}

type sremCmd struct {
	base
	members []string
}

func parseSRem(args [][]byte) (Command, error) {
	if len(args) < 2 {
		return nil, cmn.ErrWrongArgCount("srem")
	}
	return &sremCmd{base: mkBase("srem", cmn.FlagWrite, string(args[0])), members: toStrings(args[1:])}, nil
}

func (c *sremCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	oldSize := e.Size
	removed := int64(0)
	for _, m := range c.members {
		if _, ok := e.Data.Set[m]; ok {
			delete(e.Data.Set, m)
			removed++
		}
	}
	if removed == 0 {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	outcome := store.Wrote(1)
	if len(e.Data.Set) == 0 {
		sc.Pop(key)
		outcome = store.Deleted(1)
	} else {
		sc.Bump(key, e, oldSize)
	}
	return resp.Int(removed), outcome, nil
}

type smembersCmd struct{ base }

func parseSMembers(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("smembers")
	}
	return &smembersCmd{mkBase("smembers", cmn.FlagReadonly, string(args[0]))}, nil
}

func (c *smembersCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Arr(), store.DidNotWrite(), nil
	}
	out := make([]resp.Value, 0, len(e.Data.Set))
	for m := range e.Data.Set {
		out = append(out, resp.BulkString(m))
	}
	return resp.ArrV(out), store.DidNotWrite(), nil
}

type scardCmd struct{ base }

func parseSCard(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("scard")
	}
	return &scardCmd{mkBase("scard", cmn.FlagReadonly, string(args[0]))}, nil
}

func (c *scardCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindSet)
	if err != nil || e == nil {
		return resp.Int(0), store.DidNotWrite(), err
	}
	return resp.Int(int64(len(e.Data.Set))), store.DidNotWrite(), nil
}

type sismemberCmd struct {
	base
	member string
}

func parseSIsMember(args [][]byte) (Command, error) {
	if len(args) != 2 {
		return nil, cmn.ErrWrongArgCount("sismember")
	}
	return &sismemberCmd{base: mkBase("sismember", cmn.FlagReadonly, string(args[0])), member: string(args[1])}, nil
}

func (c *sismemberCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindSet)
	if err != nil || e == nil {
		return resp.Int(0), store.DidNotWrite(), err
	}
	if _, ok := e.Data.Set[c.member]; ok {
		return resp.Int(1), store.DidNotWrite(), nil
	}
	return resp.Int(0), store.DidNotWrite(), nil
}

type smismemberCmd struct {
	base
	members []string
}

func parseSMIsMember(args [][]byte) (Command, error) {
	if len(args) < 2 {
		return nil, cmn.ErrWrongArgCount("smismember")
	}
	return &smismemberCmd{base: mkBase("smismember", cmn.FlagReadonly, string(args[0])), members: toStrings(args[1:])}, nil
}

func (c *smismemberCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	out := make([]resp.Value, len(c.members))
	for i, m := range c.members {
		var hit int64
		if e != nil {
			if _, ok := e.Data.Set[m]; ok {
				hit = 1
			}
		}
		out[i] = resp.Int(hit)
	}
	return resp.ArrV(out), store.DidNotWrite(), nil
}

type spopCmd struct {
	base
	count    int64
	hasCount bool
}

func parseSPop(args [][]byte) (Command, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, cmn.ErrWrongArgCount("spop")
	}
	c := &spopCmd{base: mkBase("spop", cmn.FlagWrite, string(args[0]))}
	if len(args) == 2 {
		n, err := parseInt(args[1])
		if err != nil || n < 0 {
			return nil, cmn.ErrNotAnInteger
		}
		c.count, c.hasCount = n, true
	}
	return c, nil
}

func (c *spopCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		if c.hasCount {
			return resp.Arr(), store.DidNotWrite(), nil
		}
		return resp.Null(), store.DidNotWrite(), nil
	}
	n := int64(1)
	if c.hasCount {
		n = c.count
	}
	popped := make([]string, 0, n)
	oldSize := e.Size
	for m := range e.Data.Set {
		if int64(len(popped)) == n {
			break
		}
		popped = append(popped, m)
		delete(e.Data.Set, m)
	}
	if len(popped) == 0 {
		if c.hasCount {
			return resp.Arr(), store.DidNotWrite(), nil
		}
		return resp.Null(), store.DidNotWrite(), nil
	}
	outcome := store.Wrote(1)
	if len(e.Data.Set) == 0 {
		sc.Pop(key)
		outcome = store.Deleted(1)
	} else {
		sc.Bump(key, e, oldSize)
	}
	if c.hasCount {
		return stringArray(popped), outcome, nil
	}
	return resp.BulkString(popped[0]), outcome, nil
}

type srandmemberCmd struct {
	base
	count    int64
	hasCount bool
}

func parseSRandMember(args [][]byte) (Command, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, cmn.ErrWrongArgCount("srandmember")
	}
	c := &srandmemberCmd{base: mkBase("srandmember", cmn.FlagReadonly, string(args[0]))}
	if len(args) == 2 {
		n, err := parseInt(args[1])
		if err != nil {
			return nil, err
		}
		c.count, c.hasCount = n, true
	}
	return c, nil
}

func (c *srandmemberCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		if c.hasCount {
			return resp.Arr(), store.DidNotWrite(), nil
		}
		return resp.Null(), store.DidNotWrite(), nil
	}
	// Map iteration order supplies the randomness.
	members := make([]string, 0, len(e.Data.Set))
	for m := range e.Data.Set {
		members = append(members, m)
	}
	if !c.hasCount {
		return resp.BulkString(members[0]), store.DidNotWrite(), nil
	}
	n := c.count
	if n < 0 {
		// Negative count allows repeats.
		out := make([]string, -n)
		for i := range out {
			out[i] = members[i%len(members)]
		}
		return stringArray(out), store.DidNotWrite(), nil
	}
	if n > int64(len(members)) {
		n = int64(len(members))
	}
	return stringArray(members[:n]), store.DidNotWrite(), nil
}

type smoveCmd struct {
	base
	member string
}

func parseSMove(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("smove")
	}
	return &smoveCmd{
		base:   mkBase("smove", cmn.FlagWrite, string(args[0]), string(args[1])),
		member: string(args[2]),
	}, nil
}

func (c *smoveCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	src, dst := c.keys[0], c.keys[1]
	srcCache, se, err := ctx.lookup(src, store.KindSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if se == nil {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	if _, ok := se.Data.Set[c.member]; !ok {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	dstCache, de, err := ctx.lookup(dst, store.KindSet)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	// The member leaves the source first - even when src == dst, where the
	// removal stands and no insert follows.
	oldSrcSize := se.Size
	delete(se.Data.Set, c.member)
	if len(se.Data.Set) == 0 {
		srcCache.Pop(src)
	} else {
		srcCache.Bump(src, se, oldSrcSize)
	}
	if src == dst {
		return resp.Int(1), store.Wrote(1), nil
	}
	if de == nil {
		de, _ = dstCache.GetOrInsertWith(dst, ctx.Now, store.NewSet)
	}
	oldDstSize := de.Size
	de.Data.Set[c.member] = struct{}{}
	dstCache.Bump(dst, de, oldDstSize)
	return resp.Int(1), store.Wrote(2), nil
}

//
// SINTER / SUNION / SDIFF (+STORE)
//

type setOpCmd struct {
	base
	store bool
}

func parseSetOp(name string, withStore bool) parseFn {
	min := 1
	if withStore {
		min = 2
	}
	return func(args [][]byte) (Command, error) {
		if len(args) < min {
			return nil, cmn.ErrWrongArgCount(name)
		}
		flags := cmn.FlagReadonly
		if withStore {
			flags = cmn.FlagWrite | cmn.FlagDenyOOM
		}
		return &setOpCmd{
			base:  mkBase(name, flags, toStrings(args)...),
			store: withStore,
		}, nil
	}
}

func (c *setOpCmd) operate(ctx *Context, srcKeys []string) (map[string]struct{}, error) {
	var result map[string]struct{}
	for i, key := range srcKeys {
		_, e, err := ctx.lookup(key, store.KindSet)
		if err != nil {
			return nil, err
		}
		cur := map[string]struct{}{}
		if e != nil {
			cur = e.Data.Set
		}
		if i == 0 {
			result = make(map[string]struct{}, len(cur))
			for m := range cur {
				result[m] = struct{}{}
			}
			continue
		}
		switch c.name {
		case "sinter", "sinterstore":
			for m := range result {
				if _, ok := cur[m]; !ok {
					delete(result, m)
				}
			}
		case "sunion", "sunionstore":
			for m := range cur {
				result[m] = struct{}{}
			}
		default: // sdiff, sdiffstore
			for m := range cur {
				delete(result, m)
			}
		}
	}
	return result, nil
}

func (c *setOpCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	srcKeys := c.keys
	var dst string
	if c.store {
		dst, srcKeys = c.keys[0], c.keys[1:]
	}
	result, err := c.operate(ctx, srcKeys)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if !c.store {
		out := make([]resp.Value, 0, len(result))
		for m := range result {
			out = append(out, resp.BulkString(m))
		}
		return resp.ArrV(out), store.DidNotWrite(), nil
	}
	sc := ctx.Locks.CacheFor(dst)
	old := sc.Get(dst, ctx.Now)
	if len(result) == 0 {
		outcome := store.DidNotWrite()
		if sc.Pop(dst) != nil {
			outcome = store.Deleted(1)
		}
		return resp.Int(0), outcome, nil
	}
	v := store.NewSet()
	v.Data.Set = result
	v.Touch()
	if old != nil {
		v.Version = old.Version + 1
	}
	sc.Put(dst, v)
	return resp.Int(int64(len(result))), store.Wrote(1), nil
}
