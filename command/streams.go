// Package command implements the typed command surface: parsing RESP
// argument vectors into closed-world command values, the lock planner
// binding, and per-command execution against the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"strconv"
	"strings"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

func init() {
	register("xadd", parseXAdd)
	register("xlen", parseXLen)
	register("xrange", parseXRange)
}

func formatStreamID(id store.StreamID) string {
	return strconv.FormatUint(id.Ms, 10) + "-" + strconv.FormatUint(id.Seq, 10)
}

// parseStreamID accepts "ms", "ms-seq", and the range shorthands "-" / "+".
func parseStreamID(s string, max bool) (store.StreamID, error) {
	switch s {
	case "-":
		return store.StreamID{}, nil
	case "+":
		return store.StreamID{Ms: ^uint64(0), Seq: ^uint64(0)}, nil
	}
	ms, seq, found := strings.Cut(s, "-")
	id := store.StreamID{}
	v, err := strconv.ParseUint(ms, 10, 64)
	if err != nil {
		return id, cmn.NewErr(cmn.KindInvalidRequest, "invalid stream ID specified as stream command argument")
	}
	id.Ms = v
	if found {
		v, err := strconv.ParseUint(seq, 10, 64)
		if err != nil {
			return id, cmn.NewErr(cmn.KindInvalidRequest, "invalid stream ID specified as stream command argument")
		}
		id.Seq = v
	} else if max {
		id.Seq = ^uint64(0)
	}
	return id, nil
}

func idLess(a, b store.StreamID) bool {
	if a.Ms != b.Ms {
		return a.Ms < b.Ms
	}
	return a.Seq < b.Seq
}

type xaddCmd struct {
	base
	id     string // "*" for auto
	fields [][]byte
}

func parseXAdd(args [][]byte) (Command, error) {
	if len(args) < 4 || len(args)%2 != 0 {
		return nil, cmn.ErrWrongArgCount("xadd")
	}
	return &xaddCmd{
		base:   mkBase("xadd", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])),
		id:     string(args[1]),
		fields: args[2:],
	}, nil
}

func (c *xaddCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindStream)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		e, _ = sc.GetOrInsertWith(key, ctx.Now, store.NewStream)
	}
	st := e.Data.Stream
	var id store.StreamID
	if c.id == "*" {
		id = store.StreamID{Ms: uint64(ctx.Now)}
		if !idLess(st.LastID, id) {
			id = store.StreamID{Ms: st.LastID.Ms, Seq: st.LastID.Seq + 1}
		}
	} else {
		id, err = parseStreamID(c.id, false)
		if err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
		if !idLess(st.LastID, id) {
			return resp.Value{}, store.DidNotWrite(),
				cmn.NewErr(cmn.KindInvalidRequest,
					"The ID specified in XADD is equal or smaller than the target stream top item")
		}
	}
	oldSize := e.Size
	st.Entries = append(st.Entries, store.StreamEntry{ID: id, Fields: c.fields})
	st.LastID = id
	sc.Bump(key, e, oldSize)
	return resp.BulkString(formatStreamID(id)), store.Wrote(1), nil
}

type xlenCmd struct{ base }

func parseXLen(args [][]byte) (Command, error) {
	if len(args) != 1 {
		return nil, cmn.ErrWrongArgCount("xlen")
	}
	return &xlenCmd{mkBase("xlen", cmn.FlagReadonly, string(args[0]))}, nil
}

func (c *xlenCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindStream)
	if err != nil || e == nil {
		return resp.Int(0), store.DidNotWrite(), err
	}
	return resp.Int(int64(len(e.Data.Stream.Entries))), store.DidNotWrite(), nil
}

type xrangeCmd struct {
	base
	start, end store.StreamID
	count      int64
}

func parseXRange(args [][]byte) (Command, error) {
	if len(args) < 3 {
		return nil, cmn.ErrWrongArgCount("xrange")
	}
	start, err := parseStreamID(string(args[1]), false)
	if err != nil {
		return nil, err
	}
	end, err := parseStreamID(string(args[2]), true)
	if err != nil {
		return nil, err
	}
	c := &xrangeCmd{base: mkBase("xrange", cmn.FlagReadonly, string(args[0])), start: start, end: end, count: -1}
	if len(args) == 5 {
		if !eqFold(args[3], "count") {
			return nil, cmn.ErrSyntax
		}
		n, err := parseInt(args[4])
		if err != nil {
			return nil, err
		}
		c.count = n
	} else if len(args) != 3 {
		return nil, cmn.ErrSyntax
	}
	return c, nil
}

func (c *xrangeCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	_, e, err := ctx.lookup(c.keys[0], store.KindStream)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if e == nil {
		return resp.Arr(), store.DidNotWrite(), nil
	}
	var out []resp.Value
	for _, en := range e.Data.Stream.Entries {
		if idLess(en.ID, c.start) || idLess(c.end, en.ID) {
			continue
		}
		out = append(out, resp.Arr(resp.BulkString(formatStreamID(en.ID)), bulkArray(en.Fields)))
		if c.count >= 0 && int64(len(out)) == c.count {
			break
		}
	}
	return resp.ArrV(out), store.DidNotWrite(), nil
}
