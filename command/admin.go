// Package command implements the typed command surface: parsing RESP
// argument vectors into closed-world command values, the lock planner
// binding, and per-command execution against the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

func init() {
	register("auth", parseAuth)
	register("config", parseConfig)
	register("acl", parseAcl)
	register("slowlog", parseSlowlog)
	register("latency", parseLatency)
	register("info", parseInfo)
	register("client", parseClient)
	register("debug", parseDebug)
	register("bgrewriteaof", parseBgRewriteAof)
	register("save", parseSave)
	register("bgsave", parseSave)
}

//
// AUTH
//

type authCmd struct {
	base
	user     string
	password string
}

func parseAuth(args [][]byte) (Command, error) {
	switch len(args) {
	case 1:
		return &authCmd{base: mkBase("auth", 0), user: "default", password: string(args[0])}, nil
	case 2:
		return &authCmd{base: mkBase("auth", 0), user: string(args[0]), password: string(args[1])}, nil
	default:
		return nil, cmn.ErrWrongArgCount("auth")
	}
}

func (c *authCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	u := ctx.Acl.Current().LookupUser(c.user)
	if u == nil || u.Password != c.password {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrWrongPass
	}
	ctx.Sess.SetUser(u)
	return resp.OK(), store.DidNotWrite(), nil
}

//
// CONFIG
//

type configCmd struct {
	base
	sub   string
	param string
	value string
}

func parseConfig(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("config")
	}
	c := &configCmd{base: mkBase("config", cmn.FlagAdmin), sub: strings.ToLower(string(args[0]))}
	switch c.sub {
	case "get":
		if len(args) != 2 {
			return nil, cmn.ErrWrongArgCount("config|get")
		}
		c.param = strings.ToLower(string(args[1]))
	case "set":
		if len(args) != 3 {
			return nil, cmn.ErrWrongArgCount("config|set")
		}
		c.param = strings.ToLower(string(args[1]))
		c.value = string(args[2])
	case "rewrite":
		if len(args) != 1 {
			return nil, cmn.ErrWrongArgCount("config|rewrite")
		}
	default:
		return nil, cmn.NewErr(cmn.KindInvalidRequest, "unknown CONFIG subcommand '%s'", c.sub)
	}
	return c, nil
}

func (c *configCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	switch c.sub {
	case "get":
		v, ok := ctx.Control.ConfigValue(c.param)
		if !ok {
			return resp.Arr(), store.DidNotWrite(), nil
		}
		return resp.Arr(resp.BulkString(c.param), resp.BulkString(v)), store.DidNotWrite(), nil
	case "set":
		if err := ctx.Control.ApplyConfig(c.param, c.value); err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
		return resp.OK(), store.DidNotWrite(), nil
	default: // rewrite
		if err := ctx.Control.RewriteConfig(); err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
		return resp.OK(), store.DidNotWrite(), nil
	}
}

//
// ACL
//

type aclCmd struct {
	base
	sub  string
	args []string
}

func parseAcl(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("acl")
	}
	return &aclCmd{
		base: mkBase("acl", cmn.FlagAdmin),
		sub:  strings.ToLower(string(args[0])),
		args: toStrings(args[1:]),
	}, nil
}

func (c *aclCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	switch c.sub {
	case "whoami":
		if u := ctx.Sess.User(); u != nil {
			return resp.BulkString(u.Name), store.DidNotWrite(), nil
		}
		return resp.BulkString("default"), store.DidNotWrite(), nil
	case "list", "users":
		return stringArray(ctx.Acl.Current().Users()), store.DidNotWrite(), nil
	case "setuser":
		if len(c.args) < 2 {
			return resp.Value{}, store.DidNotWrite(), cmn.ErrWrongArgCount("acl|setuser")
		}
		ctx.Acl.SetUser(c.args[0], c.args[1], c.args[2:])
		return resp.OK(), store.DidNotWrite(), nil
	case "deluser":
		if len(c.args) != 1 {
			return resp.Value{}, store.DidNotWrite(), cmn.ErrWrongArgCount("acl|deluser")
		}
		if ctx.Acl.DelUser(c.args[0]) {
			return resp.Int(1), store.DidNotWrite(), nil
		}
		return resp.Int(0), store.DidNotWrite(), nil
	case "save":
		if err := ctx.Acl.Save(); err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
		return resp.OK(), store.DidNotWrite(), nil
	case "load":
		if err := ctx.Acl.Load(); err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
		return resp.OK(), store.DidNotWrite(), nil
	default:
		return resp.Value{}, store.DidNotWrite(),
			cmn.NewErr(cmn.KindInvalidRequest, "unknown ACL subcommand '%s'", c.sub)
	}
}

//
// SLOWLOG
//

type slowlogCmd struct {
	base
	sub   string
	count int64
}

func parseSlowlog(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("slowlog")
	}
	c := &slowlogCmd{base: mkBase("slowlog", cmn.FlagAdmin), sub: strings.ToLower(string(args[0]))}
	if c.sub == "get" && len(args) == 2 {
		n, err := parseInt(args[1])
		if err != nil {
			return nil, err
		}
		c.count = n
	} else if c.sub == "get" {
		c.count = 10
	}
	return c, nil
}

func (c *slowlogCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	switch c.sub {
	case "get":
		samples := ctx.Monitor.Recent(int(c.count))
		out := make([]resp.Value, 0, len(samples))
		for _, s := range samples {
			cmdArr := make([]resp.Value, 0, len(s.Args)+1)
			cmdArr = append(cmdArr, resp.BulkString(s.Command))
			for _, a := range s.Args {
				cmdArr = append(cmdArr, resp.Bulk(a))
			}
			out = append(out, resp.Arr(
				resp.Int(int64(s.ID)),
				resp.Int(s.At.Unix()),
				resp.Int(s.Latency.Microseconds()),
				resp.ArrV(cmdArr),
			))
		}
		return resp.ArrV(out), store.DidNotWrite(), nil
	case "len":
		return resp.Int(int64(ctx.Monitor.Len())), store.DidNotWrite(), nil
	case "reset":
		ctx.Monitor.Reset()
		return resp.OK(), store.DidNotWrite(), nil
	default:
		return resp.Value{}, store.DidNotWrite(),
			cmn.NewErr(cmn.KindInvalidRequest, "unknown SLOWLOG subcommand '%s'", c.sub)
	}
}

//
// LATENCY
//

type latencyCmd struct {
	base
	sub   string
	event string
}

func parseLatency(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("latency")
	}
	c := &latencyCmd{base: mkBase("latency", cmn.FlagAdmin), sub: strings.ToLower(string(args[0]))}
	if c.sub == "history" {
		if len(args) != 2 {
			return nil, cmn.ErrWrongArgCount("latency|history")
		}
		c.event = string(args[1])
	}
	return c, nil
}

func (c *latencyCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	switch c.sub {
	case "history":
		samples := ctx.Monitor.History(c.event)
		out := make([]resp.Value, 0, len(samples))
		var first time.Time
		for i, s := range samples {
			if i == 0 {
				first = s.At
			}
			out = append(out, resp.Arr(
				resp.Int(int64(s.At.Sub(first).Seconds())),
				resp.Int(s.Latency.Microseconds()),
			))
		}
		return resp.ArrV(out), store.DidNotWrite(), nil
	case "reset":
		ctx.Monitor.Reset()
		return resp.Int(0), store.DidNotWrite(), nil
	case "doctor":
		max, n := ctx.Monitor.MaxLatency()
		if n == 0 {
			return resp.BulkString("No latency samples available."), store.DidNotWrite(), nil
		}
		report := fmt.Sprintf("SpinelDB Latency Doctor\n- Max latency so far: %d microseconds.\n"+
			"- High latency is often caused by:\n"+
			"  - Slow commands. Use SLOWLOG to inspect your slow commands.\n"+
			"  - AOF fsync blocking the event loop. Check your fsync policy.\n"+
			"  - High system load. Check CPU and I/O usage.\n", max.Microseconds())
		return resp.BulkString(report), store.DidNotWrite(), nil
	default:
		return resp.Value{}, store.DidNotWrite(),
			cmn.NewErr(cmn.KindInvalidRequest, "unknown LATENCY subcommand '%s'", c.sub)
	}
}

//
// INFO
//

type infoCmd struct{ base }

func parseInfo(args [][]byte) (Command, error) {
	return &infoCmd{mkBase("info", 0)}, nil
}

func (c *infoCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Server\r\nspineldb_version:1.0.0\r\n\r\n")
	fmt.Fprintf(&sb, "# Memory\r\nused_memory:%d\r\nmaxmemory:%d\r\n\r\n",
		ctx.DB.UsedMemory(), ctx.Rom.Get().MaxMemory)
	fmt.Fprintf(&sb, "# Keyspace\r\ndb0:keys=%d\r\n\r\n", ctx.DB.KeyCount())
	fmt.Fprintf(&sb, "# Replication\r\nrole:master\r\n")
	return resp.BulkString(sb.String()), store.DidNotWrite(), nil
}

//
// CLIENT
//

type clientCmd struct {
	base
	sub  string
	name string
}

func parseClient(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("client")
	}
	c := &clientCmd{base: mkBase("client", 0), sub: strings.ToLower(string(args[0]))}
	if c.sub == "setname" {
		if len(args) != 2 {
			return nil, cmn.ErrWrongArgCount("client|setname")
		}
		c.name = string(args[1])
	}
	return c, nil
}

func (c *clientCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	switch c.sub {
	case "id":
		return resp.Int(int64(ctx.Sess.ID())), store.DidNotWrite(), nil
	case "getname":
		if name := ctx.Sess.ClientName(); name != "" {
			return resp.BulkString(name), store.DidNotWrite(), nil
		}
		return resp.Null(), store.DidNotWrite(), nil
	case "setname":
		ctx.Sess.SetClientName(c.name)
		return resp.OK(), store.DidNotWrite(), nil
	default:
		return resp.Value{}, store.DidNotWrite(),
			cmn.NewErr(cmn.KindInvalidRequest, "unknown CLIENT subcommand '%s'", c.sub)
	}
}

//
// DEBUG
//

type debugCmd struct {
	base
	sub     string
	key     string
	seconds float64
}

func parseDebug(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("debug")
	}
	c := &debugCmd{base: mkBase("debug", cmn.FlagAdmin), sub: strings.ToLower(string(args[0]))}
	switch c.sub {
	case "sleep":
		if len(args) != 2 {
			return nil, cmn.ErrWrongArgCount("debug|sleep")
		}
		f, err := parseFloat(args[1])
		if err != nil {
			return nil, err
		}
		c.seconds = f
	case "object":
		if len(args) != 2 {
			return nil, cmn.ErrWrongArgCount("debug|object")
		}
		c.key = string(args[1])
		c.keys = []string{c.key}
	}
	return c, nil
}

func (c *debugCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	switch c.sub {
	case "sleep":
		select {
		case <-time.After(time.Duration(c.seconds * float64(time.Second))):
		case <-ctx.Ctx.Done():
		}
		return resp.OK(), store.DidNotWrite(), nil
	case "object":
		e := ctx.Locks.CacheFor(c.key).Get(c.key, ctx.Now)
		if e == nil {
			return resp.Value{}, store.DidNotWrite(), cmn.ErrKeyNotFound
		}
		return resp.Simple(fmt.Sprintf("Value at:%s type:%s serializedlength:%d version:%d",
			c.key, e.Data.Kind, e.Size, e.Version)), store.DidNotWrite(), nil
	default:
		return resp.Value{}, store.DidNotWrite(),
			cmn.NewErr(cmn.KindInvalidRequest, "unknown DEBUG subcommand '%s'", c.sub)
	}
}

//
// persistence triggers
//

type bgRewriteAofCmd struct{ base }

func parseBgRewriteAof(args [][]byte) (Command, error) {
	if len(args) != 0 {
		return nil, cmn.ErrWrongArgCount("bgrewriteaof")
	}
	return &bgRewriteAofCmd{mkBase("bgrewriteaof", cmn.FlagAdmin)}, nil
}

func (c *bgRewriteAofCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if err := ctx.Control.TriggerAofRewrite(); err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	return resp.Simple("Background append only file rewriting started"), store.DidNotWrite(), nil
}

type saveCmd struct{ base }

func parseSave(args [][]byte) (Command, error) {
	if len(args) != 0 {
		return nil, cmn.ErrWrongArgCount("save")
	}
	return &saveCmd{mkBase("save", cmn.FlagAdmin)}, nil
}

func (c *saveCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if err := ctx.Control.TriggerSnapshot(); err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	return resp.OK(), store.DidNotWrite(), nil
}
