// Package command implements the typed command surface: parsing RESP
// argument vectors into closed-world command values, the lock planner
// binding, and per-command execution against the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"bytes"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

func init() {
	register("lpush", parsePush(store.Left, false))
	register("rpush", parsePush(store.Right, false))
	register("lpushx", parsePush(store.Left, true))
	register("rpushx", parsePush(store.Right, true))
	register("lpop", parsePop(store.Left))
	register("rpop", parsePop(store.Right))
	register("lrange", parseLRange)
	register("lindex", parseLIndex)
	register("llen", parseLLen)
	register("linsert", parseLInsert)
	register("lrem", parseLRem)
	register("lset", parseLSet)
	register("ltrim", parseLTrim)
	register("lpos", parseLPos)
	register("lmove", parseLMove)
}

//
// LPUSH / RPUSH / LPUSHX / RPUSHX
//

type pushCmd struct {
	base
	values       [][]byte
	side         store.ListSide
	onlyIfExists bool
}

func parsePush(side store.ListSide, onlyIfExists bool) parseFn {
	name := "lpush"
	if side == store.Right {
		name = "rpush"
	}
	if onlyIfExists {
		name += "x"
	}
	return func(args [][]byte) (Command, error) {
		if len(args) < 2 {
			return nil, cmn.ErrWrongArgCount(name)
		}
		return &pushCmd{
			base:         mkBase(name, cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])),
			values:       args[1:],
			side:         side,
			onlyIfExists: onlyIfExists,
		}, nil
	}
}

func (c *pushCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindList)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		if c.onlyIfExists {
			return resp.Int(0), store.DidNotWrite(), nil
		}
		e, _ = sc.GetOrInsertWith(key, ctx.Now, store.NewList)
	}
	oldSize := e.Size
	for _, v := range c.values {
		if c.side == store.Left {
			e.Data.List = append([][]byte{v}, e.Data.List...)
		} else {
			e.Data.List = append(e.Data.List, v)
		}
	}
	sc.Bump(key, e, oldSize)
	return resp.Int(int64(len(e.Data.List))), store.Wrote(1), nil
}

//
// LPOP / RPOP
//

type popCmd struct {
	base
	count    int64
	hasCount bool
	side     store.ListSide
}

func parsePop(side store.ListSide) parseFn {
	name := "lpop"
	if side == store.Right {
		name = "rpop"
	}
	return func(args [][]byte) (Command, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, cmn.ErrWrongArgCount(name)
		}
		c := &popCmd{base: mkBase(name, cmn.FlagWrite, string(args[0])), side: side}
		if len(args) == 2 {
			n, err := parseInt(args[1])
			if err != nil || n < 0 {
				return nil, cmn.ErrNotAnInteger
			}
			c.count, c.hasCount = n, true
		}
		return c, nil
	}
}

func (c *popCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindList)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		if c.hasCount {
			return resp.NullArray(), store.DidNotWrite(), nil
		}
		return resp.Null(), store.DidNotWrite(), nil
	}
	n := int64(1)
	if c.hasCount {
		n = c.count
	}
	if n > int64(len(e.Data.List)) {
		n = int64(len(e.Data.List))
	}
	popped := make([][]byte, 0, n)
	oldSize := e.Size
	for i := int64(0); i < n; i++ {
		if c.side == store.Left {
			popped = append(popped, e.Data.List[0])
			e.Data.List = e.Data.List[1:]
		} else {
			popped = append(popped, e.Data.List[len(e.Data.List)-1])
			e.Data.List = e.Data.List[:len(e.Data.List)-1]
		}
	}
	outcome := store.Wrote(1)
	if len(e.Data.List) == 0 {
		sc.Pop(key)
		outcome = store.Deleted(1)
	} else {
		sc.Bump(key, e, oldSize)
	}
	if c.hasCount {
		return bulkArray(popped), outcome, nil
	}
	if len(popped) == 0 {
		return resp.Null(), store.DidNotWrite(), nil
	}
	return resp.Bulk(popped[0]), outcome, nil
}

//
// LRANGE / LINDEX / LLEN
//

type lrangeCmd struct {
	base
	start, stop int64
}

func parseLRange(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("lrange")
	}
	start, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	stop, err := parseInt(args[2])
	if err != nil {
		return nil, err
	}
	return &lrangeCmd{base: mkBase("lrange", cmn.FlagReadonly, string(args[0])), start: start, stop: stop}, nil
}

func (c *lrangeCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindList)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Arr(), store.DidNotWrite(), nil
	}
	start, stop, ok := normalizeRange(c.start, c.stop, int64(len(e.Data.List)))
	if !ok {
		return resp.Arr(), store.DidNotWrite(), nil
	}
	return bulkArray(e.Data.List[start : stop+1]), store.DidNotWrite(), nil
}

type lindexCmd struct {
	base
	index int64
}

func parseLIndex(args [][]byte) (Command, error) {
	if len(args) != 2 {
		return nil, cmn.ErrWrongArgCount("lindex")
	}
	i, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	return &lindexCmd{base: mkBase("lindex", cmn.FlagReadonly, string(args[0])), index: i}, nil
}

func (c *lindexCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindList)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Null(), store.DidNotWrite(), nil
	}
	i := c.index
	n := int64(len(e.Data.List))
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return resp.Null(), store.DidNotWrite(), nil
	}
	return resp.Bulk(e.Data.List[i]), store.DidNotWrite(), nil
}

type llenCmd struct{ base }

func parseLLen(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("llen")
	}
	return &llenCmd{mkBase("llen", cmn.FlagReadonly, string(args[0]))}, nil
}

func (c *llenCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindList)
	if err != nil || e == nil {
		return resp.Int(0), store.DidNotWrite(), err
	}
	return resp.Int(int64(len(e.Data.List))), store.DidNotWrite(), nil
}

//
// LINSERT
//

type linsertCmd struct {
	base
	pivot, value []byte
	before       bool
}

func parseLInsert(args [][]byte) (Command, error) {
	if len(args) != 4 {
		return nil, cmn.ErrWrongArgCount("linsert")
	}
	var before bool
	switch {
	case eqFold(args[1], "before"):
		before = true
	case eqFold(args[1], "after"):
	default:
		return nil, cmn.ErrSyntax
	}
	return &linsertCmd{
		base:   mkBase("linsert", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])),
		pivot:  args[2],
		value:  args[3],
		before: before,
	}, nil
}

func (c *linsertCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindList)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	at := -1
	for i, el := range e.Data.List {
		if bytes.Equal(el, c.pivot) {
			at = i
			break
		}
	}
	if at < 0 {
		return resp.Int(-1), store.DidNotWrite(), nil
	}
	if !c.before {
		at++
	}
	oldSize := e.Size
	e.Data.List = append(e.Data.List[:at], append([][]byte{c.value}, e.Data.List[at:]...)...)
	sc.Bump(key, e, oldSize)
	return resp.Int(int64(len(e.Data.List))), store.Wrote(1), nil
}

//
// LREM
//

type lremCmd struct {
	base
	value []byte
	count int64
}

func parseLRem(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("lrem")
	}
	n, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	return &lremCmd{base: mkBase("lrem", cmn.FlagWrite, string(args[0])), count: n, value: args[2]}, nil
}

func (c *lremCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindList)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	limit := c.count
	if limit < 0 {
		limit = -limit
	}
	fromTail := c.count < 0
	kept := make([][]byte, 0, len(e.Data.List))
	removed := int64(0)
	src := e.Data.List
	if fromTail {
		for i := len(src) - 1; i >= 0; i-- {
			if (c.count != 0 && removed == limit) || !bytes.Equal(src[i], c.value) {
				kept = append(kept, src[i])
			} else {
				removed++
			}
		}
		// Restore head-to-tail order.
		for l, r := 0, len(kept)-1; l < r; l, r = l+1, r-1 {
			kept[l], kept[r] = kept[r], kept[l]
		}
	} else {
		for _, el := range src {
			if (c.count != 0 && removed == limit) || !bytes.Equal(el, c.value) {
				kept = append(kept, el)
			} else {
				removed++
			}
		}
	}
	if removed == 0 {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	oldSize := e.Size
	e.Data.List = kept
	outcome := store.Wrote(1)
	if len(kept) == 0 {
		sc.Pop(key)
		outcome = store.Deleted(1)
	} else {
		sc.Bump(key, e, oldSize)
	}
	return resp.Int(removed), outcome, nil
}

//
// LSET
//

type lsetCmd struct {
	base
	value []byte
	index int64
}

func parseLSet(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("lset")
	}
	i, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	return &lsetCmd{base: mkBase("lset", cmn.FlagWrite, string(args[0])), index: i, value: args[2]}, nil
}

func (c *lsetCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindList)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	// A missing key and an empty list answer identically.
	if e == nil || len(e.Data.List) == 0 {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrKeyNotFound
	}
	i := c.index
	n := int64(len(e.Data.List))
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return resp.Value{}, store.DidNotWrite(), cmn.NewErr(cmn.KindInvalidRequest, "index out of range")
	}
	oldSize := e.Size
	e.Data.List[i] = c.value
	sc.Bump(key, e, oldSize)
	return resp.OK(), store.Wrote(1), nil
}

//
// LTRIM
//

type ltrimCmd struct {
	base
	start, stop int64
}

func parseLTrim(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("ltrim")
	}
	start, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	stop, err := parseInt(args[2])
	if err != nil {
		return nil, err
	}
	return &ltrimCmd{base: mkBase("ltrim", cmn.FlagWrite, string(args[0])), start: start, stop: stop}, nil
}

func (c *ltrimCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindList)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.OK(), store.DidNotWrite(), nil
	}
	start, stop, ok := normalizeRange(c.start, c.stop, int64(len(e.Data.List)))
	if !ok {
		sc.Pop(key)
		return resp.OK(), store.Deleted(1), nil
	}
	oldSize := e.Size
	e.Data.List = e.Data.List[start : stop+1]
	sc.Bump(key, e, oldSize)
	return resp.OK(), store.Wrote(1), nil
}

//
// LPOS
//

type lposCmd struct {
	base
	value    []byte
	rank     int64
	count    int64
	maxlen   int64
	hasCount bool
}

func parseLPos(args [][]byte) (Command, error) {
	if len(args) < 2 {
		return nil, cmn.ErrWrongArgCount("lpos")
	}
	c := &lposCmd{base: mkBase("lpos", cmn.FlagReadonly, string(args[0])), value: args[1], rank: 1}
	for i := 2; i < len(args); i++ {
		if i+1 >= len(args) {
			return nil, cmn.ErrSyntax
		}
		n, err := parseInt(args[i+1])
		if err != nil {
			return nil, err
		}
		switch {
		case eqFold(args[i], "rank"):
			if n == 0 {
				return nil, cmn.NewErr(cmn.KindInvalidRequest, "RANK can't be zero")
			}
			c.rank = n
		case eqFold(args[i], "count"):
			if n < 0 {
				return nil, cmn.NewErr(cmn.KindInvalidRequest, "COUNT can't be negative")
			}
			c.count, c.hasCount = n, true
		case eqFold(args[i], "maxlen"):
			if n < 0 {
				return nil, cmn.NewErr(cmn.KindInvalidRequest, "MAXLEN can't be negative")
			}
			c.maxlen = n
		default:
			return nil, cmn.ErrSyntax
		}
		i++
	}
	return c, nil
}

func (c *lposCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindList)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	nilReply := resp.Null()
	if c.hasCount {
		nilReply = resp.Arr()
	}
	if e == nil {
		return nilReply, store.DidNotWrite(), nil
	}
	list := e.Data.List
	want := int64(1)
	if c.hasCount {
		want = c.count // 0 = all
	}
	var found []int64
	scanned := int64(0)
	match := func(i int) bool {
		scanned++
		return bytes.Equal(list[i], c.value)
	}
	skip := c.rank
	if skip < 0 {
		skip = -skip
	}
	if c.rank > 0 {
		for i := 0; i < len(list); i++ {
			if c.maxlen > 0 && scanned >= c.maxlen {
				break
			}
			if !match(i) {
				continue
			}
			if skip > 1 {
				skip--
				continue
			}
			found = append(found, int64(i))
			if want != 0 && int64(len(found)) == want {
				break
			}
		}
	} else {
		for i := len(list) - 1; i >= 0; i-- {
			if c.maxlen > 0 && scanned >= c.maxlen {
				break
			}
			if !match(i) {
				continue
			}
			if skip > 1 {
				skip--
				continue
			}
			found = append(found, int64(i))
			if want != 0 && int64(len(found)) == want {
				break
			}
		}
	}
	if !c.hasCount {
		if len(found) == 0 {
			return resp.Null(), store.DidNotWrite(), nil
		}
		return resp.Int(found[0]), store.DidNotWrite(), nil
	}
	out := make([]resp.Value, len(found))
	for i, pos := range found {
		out[i] = resp.Int(pos)
	}
	return resp.ArrV(out), store.DidNotWrite(), nil
}

//
// LMOVE
//

type lmoveCmd struct {
	base
	from, to store.ListSide
}

func parseSide(b []byte) (store.ListSide, error) {
	switch {
	case eqFold(b, "left"):
		return store.Left, nil
	case eqFold(b, "right"):
		return store.Right, nil
	default:
		return 0, cmn.ErrSyntax
	}
}

func parseLMove(args [][]byte) (Command, error) {
	if len(args) != 4 {
		return nil, cmn.ErrWrongArgCount("lmove")
	}
	from, err := parseSide(args[2])
	if err != nil {
		return nil, err
	}
	to, err := parseSide(args[3])
	if err != nil {
		return nil, err
	}
	return &lmoveCmd{
		base: mkBase("lmove", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0]), string(args[1])),
		from: from, to: to,
	}, nil
}

func (c *lmoveCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	el, moved, err := store.MoveListElement(ctx.Locks, c.keys[0], c.keys[1], c.from, c.to, ctx.Now)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if !moved {
		return resp.Null(), store.DidNotWrite(), nil
	}
	return resp.Bulk(el), store.Wrote(2), nil
}
