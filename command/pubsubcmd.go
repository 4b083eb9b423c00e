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
	register("subscribe", parseSub("subscribe"))
	register("unsubscribe", parseSub("unsubscribe"))
	register("psubscribe", parseSub("psubscribe"))
	register("punsubscribe", parseSub("punsubscribe"))
	register("publish", parsePublish)
	register("pubsub", parsePubSubIntrospect)
}

type subCmd struct {
	base
	channels []string
}

func parseSub(name string) parseFn {
	return func(args [][]byte) (Command, error) {
		if name == "subscribe" || name == "psubscribe" {
			if len(args) < 1 {
				return nil, cmn.ErrWrongArgCount(name)
			}
		}
		return &subCmd{base: mkBase(name, cmn.FlagPubSub), channels: toStrings(args)}, nil
	}
}

// Channels exposes the subscription targets for the ACL channel check.
func (c *subCmd) Channels() []string { return c.channels }

func (c *subCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	sub := ctx.Sess.Subscriber()
	var names []string
	var counts []int
	switch c.name {
	case "subscribe":
		names, counts = c.channels, ctx.Hub.Subscribe(sub, c.channels...)
	case "psubscribe":
		names, counts = c.channels, ctx.Hub.PSubscribe(sub, c.channels...)
	case "unsubscribe":
		names, counts = ctx.Hub.Unsubscribe(sub, c.channels...)
	default:
		names, counts = ctx.Hub.PUnsubscribe(sub, c.channels...)
	}
	frames := make([]resp.Value, 0, len(names))
	for i, name := range names {
		frames = append(frames, resp.Arr(
			resp.BulkString(c.name),
			resp.BulkString(name),
			resp.Int(int64(counts[i])),
		))
	}
	if len(frames) == 0 {
		// UNSUBSCRIBE with nothing subscribed still confirms once.
		frames = append(frames, resp.Arr(
			resp.BulkString(c.name), resp.Null(), resp.Int(0)))
	}
	return resp.Multi(frames...), store.DidNotWrite(), nil
}

type publishCmd struct {
	base
	channel string
	payload []byte
}

func parsePublish(args [][]byte) (Command, error) {
	if len(args) != 2 {
		return nil, cmn.ErrWrongArgCount("publish")
	}
	return &publishCmd{
		base:    mkBase("publish", cmn.FlagPubSub),
		channel: string(args[0]),
		payload: args[1],
	}, nil
}

func (c *publishCmd) Channels() []string { return []string{c.channel} }

func (c *publishCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	n := ctx.Hub.Publish(c.channel, c.payload)
	return resp.Int(int64(n)), store.DidNotWrite(), nil
}

type pubsubIntrospectCmd struct {
	base
	sub string
}

func parsePubSubIntrospect(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("pubsub")
	}
	return &pubsubIntrospectCmd{base: mkBase("pubsub", cmn.FlagPubSub), sub: string(args[0])}, nil
}

func (c *pubsubIntrospectCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if !eqFold([]byte(c.sub), "channels") {
		return resp.Value{}, store.DidNotWrite(),
			cmn.NewErr(cmn.KindInvalidRequest, "unknown PUBSUB subcommand '%s'", c.sub)
	}
	return stringArray(ctx.Hub.ActiveChannels()), store.DidNotWrite(), nil
}

// ChannelsOf extracts the channels a command touches, for the ACL gate.
func ChannelsOf(c Command) []string {
	if cc, ok := c.(interface{ Channels() []string }); ok {
		return cc.Channels()
	}
	return nil
}
