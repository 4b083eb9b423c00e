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

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

// The scripting, probabilistic-datatype, and search engines are external
// collaborators. The core routes their commands through these interfaces and
// reports the subsystem as unavailable when none is installed.

type (
	// ScriptEngine executes EVAL/EVALSHA bodies. The engine receives the
	// keyspace through the same command surface it was called from and is
	// responsible for its own timeout and memory ceiling (script_timeout_ms,
	// script_memory_limit_mb).
	ScriptEngine interface {
		Eval(ctx context.Context, script string, keys []string, args [][]byte) (resp.Value, error)
		EvalSHA(ctx context.Context, sha string, keys []string, args [][]byte) (resp.Value, error)
		Load(script string) (sha string, err error)
	}

	// ProbEngine owns the HyperLogLog and Bloom payloads stored under
	// KindHLL/KindBloom entries. The core hands it the opaque bytes and
	// stores back what it returns.
	ProbEngine interface {
		PFAdd(raw []byte, items [][]byte) (updated []byte, changed bool, err error)
		PFCount(raws [][]byte) (int64, error)
		PFMerge(raws [][]byte) ([]byte, error)
		BFReserve(errorRate float64, capacity int64) ([]byte, error)
		BFAdd(raw []byte, item []byte) (updated []byte, added bool, err error)
		BFExists(raw []byte, item []byte) (bool, error)
	}

	// SearchEngine serves the FT.* surface over its own inverted index.
	SearchEngine interface {
		Execute(ctx context.Context, sub string, args [][]byte) (resp.Value, error)
	}

	// Modules aggregates the installed collaborators; any field may be nil.
	Modules struct {
		Scripting ScriptEngine
		Prob      ProbEngine
		Search    SearchEngine
	}
)

func init() {
	register("eval", parseEval(false))
	register("evalsha", parseEval(true))
	register("script", parseScript)
	register("pfadd", parsePFAdd)
	register("pfcount", parsePFCount)
	register("pfmerge", parsePFMerge)
	register("bf.reserve", parseBFReserve)
	register("bf.add", parseBFAdd)
	register("bf.exists", parseBFExists)
	register("ft.create", parseFT("ft.create"))
	register("ft.search", parseFT("ft.search"))
	register("ft.drop", parseFT("ft.drop"))
	register("ft.info", parseFT("ft.info"))
}

func errModuleUnavailable(what string) error {
	return cmn.ErrInvalidState("the " + what + " subsystem is not loaded")
}

//
// EVAL / EVALSHA / SCRIPT
//

type evalCmd struct {
	base
	body string
	args [][]byte
	sha  bool
}

func parseEval(sha bool) parseFn {
	name := "eval"
	if sha {
		name = "evalsha"
	}
	return func(args [][]byte) (Command, error) {
		if len(args) < 2 {
			return nil, cmn.ErrWrongArgCount(name)
		}
		numKeys, err := parseInt(args[1])
		if err != nil || numKeys < 0 || int64(len(args)-2) < numKeys {
			return nil, cmn.NewErr(cmn.KindInvalidRequest, "Number of keys can't be greater than number of args")
		}
		keys := toStrings(args[2 : 2+numKeys])
		return &evalCmd{
			base: mkBase(name, cmn.FlagWrite|cmn.FlagScripting|cmn.FlagMovableKeys, keys...),
			body: string(args[0]),
			args: args[2+numKeys:],
			sha:  sha,
		}, nil
	}
}

func (c *evalCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.Mods == nil || ctx.Mods.Scripting == nil {
		return resp.Value{}, store.DidNotWrite(), errModuleUnavailable("scripting")
	}
	var (
		v   resp.Value
		err error
	)
	if c.sha {
		v, err = ctx.Mods.Scripting.EvalSHA(ctx.Ctx, c.body, c.keys, c.args)
	} else {
		v, err = ctx.Mods.Scripting.Eval(ctx.Ctx, c.body, c.keys, c.args)
	}
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	// The engine reports its own writes through the commands it invokes; at
	// this level the script is a write-shaped black box.
	return v, store.Wrote(0), nil
}

type scriptCmd struct {
	base
	sub  string
	body string
}

func parseScript(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("script")
	}
	c := &scriptCmd{base: mkBase("script", cmn.FlagScripting), sub: strings.ToLower(string(args[0]))}
	if c.sub == "load" {
		if len(args) != 2 {
			return nil, cmn.ErrWrongArgCount("script|load")
		}
		c.body = string(args[1])
	}
	return c, nil
}

func (c *scriptCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.Mods == nil || ctx.Mods.Scripting == nil {
		return resp.Value{}, store.DidNotWrite(), errModuleUnavailable("scripting")
	}
	switch c.sub {
	case "load":
		sha, err := ctx.Mods.Scripting.Load(c.body)
		if err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
		return resp.BulkString(sha), store.DidNotWrite(), nil
	default:
		return resp.Value{}, store.DidNotWrite(),
			cmn.NewErr(cmn.KindInvalidRequest, "unknown SCRIPT subcommand '%s'", c.sub)
	}
}

//
// PF*
//

type pfaddCmd struct {
	base
	items [][]byte
}

func parsePFAdd(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("pfadd")
	}
	return &pfaddCmd{base: mkBase("pfadd", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])), items: args[1:]}, nil
}

func (c *pfaddCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.Mods == nil || ctx.Mods.Prob == nil {
		return resp.Value{}, store.DidNotWrite(), errModuleUnavailable("hyperloglog")
	}
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindHLL)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	var raw []byte
	if e != nil {
		raw = e.Data.Raw
	}
	updated, changed, err := ctx.Mods.Prob.PFAdd(raw, c.items)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if !changed {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	if e == nil {
		v := &store.StoredValue{Data: store.DataValue{Kind: store.KindHLL, Raw: updated}, Version: 1}
		v.Touch()
		sc.Put(key, v)
	} else {
		oldSize := e.Size
		e.Data.Raw = updated
		sc.Bump(key, e, oldSize)
	}
	return resp.Int(1), store.Wrote(1), nil
}

type pfcountCmd struct{ base }

func parsePFCount(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("pfcount")
	}
	return &pfcountCmd{mkBase("pfcount", cmn.FlagReadonly, toStrings(args)...)}, nil
}

func (c *pfcountCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.Mods == nil || ctx.Mods.Prob == nil {
		return resp.Value{}, store.DidNotWrite(), errModuleUnavailable("hyperloglog")
	}
	raws := make([][]byte, 0, len(c.keys))
	for _, key := range c.keys {
		_, e, err := ctx.lookup(key, store.KindHLL)
		if err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
		if e != nil {
			raws = append(raws, e.Data.Raw)
		}
	}
	n, err := ctx.Mods.Prob.PFCount(raws)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	return resp.Int(n), store.DidNotWrite(), nil
}

type pfmergeCmd struct{ base }

func parsePFMerge(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("pfmerge")
	}
	return &pfmergeCmd{mkBase("pfmerge", cmn.FlagWrite|cmn.FlagDenyOOM, toStrings(args)...)}, nil
}

func (c *pfmergeCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.Mods == nil || ctx.Mods.Prob == nil {
		return resp.Value{}, store.DidNotWrite(), errModuleUnavailable("hyperloglog")
	}
	raws := make([][]byte, 0, len(c.keys))
	for _, key := range c.keys {
		_, e, err := ctx.lookup(key, store.KindHLL)
		if err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
		if e != nil {
			raws = append(raws, e.Data.Raw)
		}
	}
	merged, err := ctx.Mods.Prob.PFMerge(raws)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	dst := c.keys[0]
	sc := ctx.Locks.CacheFor(dst)
	v := &store.StoredValue{Data: store.DataValue{Kind: store.KindHLL, Raw: merged}, Version: 1}
	v.Touch()
	if old := sc.Get(dst, ctx.Now); old != nil {
		v.Version = old.Version + 1
	}
	sc.Put(dst, v)
	return resp.OK(), store.Wrote(1), nil
}

//
// BF.*
//

type bfReserveCmd struct {
	base
	errorRate float64
	capacity  int64
}

func parseBFReserve(args [][]byte) (Command, error) {
	if len(args) != 3 {
		return nil, cmn.ErrWrongArgCount("bf.reserve")
	}
	rate, err := parseFloat(args[1])
	if err != nil {
		return nil, err
	}
	capa, err := parseInt(args[2])
	if err != nil {
		return nil, err
	}
	return &bfReserveCmd{
		base:      mkBase("bf.reserve", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])),
		errorRate: rate,
		capacity:  capa,
	}, nil
}

func (c *bfReserveCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.Mods == nil || ctx.Mods.Prob == nil {
		return resp.Value{}, store.DidNotWrite(), errModuleUnavailable("bloom")
	}
	key := c.keys[0]
	sc := ctx.Locks.CacheFor(key)
	if sc.Get(key, ctx.Now) != nil {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrKeyExists
	}
	raw, err := ctx.Mods.Prob.BFReserve(c.errorRate, c.capacity)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	v := &store.StoredValue{Data: store.DataValue{Kind: store.KindBloom, Raw: raw}, Version: 1}
	v.Touch()
	sc.Put(key, v)
	return resp.OK(), store.Wrote(1), nil
}

type bfAddCmd struct {
	base
	item []byte
}

func parseBFAdd(args [][]byte) (Command, error) {
	if len(args) != 2 {
		return nil, cmn.ErrWrongArgCount("bf.add")
	}
	return &bfAddCmd{base: mkBase("bf.add", cmn.FlagWrite|cmn.FlagDenyOOM, string(args[0])), item: args[1]}, nil
}

func (c *bfAddCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.Mods == nil || ctx.Mods.Prob == nil {
		return resp.Value{}, store.DidNotWrite(), errModuleUnavailable("bloom")
	}
	key := c.keys[0]
	sc, e, err := ctx.lookup(key, store.KindBloom)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	var raw []byte
	if e != nil {
		raw = e.Data.Raw
	}
	updated, added, err := ctx.Mods.Prob.BFAdd(raw, c.item)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if !added {
		return resp.Int(0), store.DidNotWrite(), nil
	}
	if e == nil {
		v := &store.StoredValue{Data: store.DataValue{Kind: store.KindBloom, Raw: updated}, Version: 1}
		v.Touch()
		sc.Put(key, v)
	} else {
		oldSize := e.Size
		e.Data.Raw = updated
		sc.Bump(key, e, oldSize)
	}
	return resp.Int(1), store.Wrote(1), nil
}

type bfExistsCmd struct {
	base
	item []byte
}

func parseBFExists(args [][]byte) (Command, error) {
	if len(args) != 2 {
		return nil, cmn.ErrWrongArgCount("bf.exists")
	}
	return &bfExistsCmd{base: mkBase("bf.exists", cmn.FlagReadonly, string(args[0])), item: args[1]}, nil
}

func (c *bfExistsCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.Mods == nil || ctx.Mods.Prob == nil {
		return resp.Value{}, store.DidNotWrite(), errModuleUnavailable("bloom")
	}
	_, e, err := ctx.lookup(c.keys[0], store.KindBloom)
	if err != nil || e == nil {
		return resp.Int(0), store.DidNotWrite(), err
	}
	ok, err := ctx.Mods.Prob.BFExists(e.Data.Raw, c.item)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if ok {
		return resp.Int(1), store.DidNotWrite(), nil
	}
	return resp.Int(0), store.DidNotWrite(), nil
}

//
// FT.*
//

type ftCmd struct {
	base
	args [][]byte
}

func parseFT(name string) parseFn {
	return func(args [][]byte) (Command, error) {
		return &ftCmd{base: mkBase(name, cmn.FlagReadonly), args: args}, nil
	}
}

func (c *ftCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.Mods == nil || ctx.Mods.Search == nil {
		return resp.Value{}, store.DidNotWrite(), errModuleUnavailable("search")
	}
	v, err := ctx.Mods.Search.Execute(ctx.Ctx, strings.TrimPrefix(c.name, "ft."), c.args)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	return v, store.DidNotWrite(), nil
}
