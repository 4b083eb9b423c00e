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

	"github.com/spineldb/spineldb/cluster"
	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

func init() {
	register("cluster", parseCluster)
	register("asking", parseAsking)
	register("migrate", parseMigrate)
}

type clusterCmd struct {
	base
	sub  string
	args []string
}

func parseCluster(args [][]byte) (Command, error) {
	if len(args) < 1 {
		return nil, cmn.ErrWrongArgCount("cluster")
	}
	return &clusterCmd{
		base: mkBase("cluster", cmn.FlagAdmin),
		sub:  strings.ToLower(string(args[0])),
		args: toStrings(args[1:]),
	}, nil
}

func (c *clusterCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	if ctx.Slots == nil {
		return resp.Value{}, store.DidNotWrite(),
			cmn.ErrInvalidState("This instance has cluster support disabled")
	}
	switch c.sub {
	case "myid":
		return resp.BulkString(ctx.Slots.SelfID()), store.DidNotWrite(), nil
	case "keyslot":
		if len(c.args) != 1 {
			return resp.Value{}, store.DidNotWrite(), cmn.ErrWrongArgCount("cluster|keyslot")
		}
		return resp.Int(int64(cluster.HashSlot(c.args[0]))), store.DidNotWrite(), nil
	case "setslot":
		return c.setSlot(ctx)
	case "getkeysinslot":
		return c.getKeysInSlot(ctx)
	case "countkeysinslot":
		slot, err := c.slotArg(0)
		if err != nil {
			return resp.Value{}, store.DidNotWrite(), err
		}
		keys := keysInSlot(ctx, slot, -1)
		return resp.Int(int64(len(keys))), store.DidNotWrite(), nil
	case "slots":
		return c.slots(ctx)
	default:
		return resp.Value{}, store.DidNotWrite(),
			cmn.NewErr(cmn.KindInvalidRequest, "unknown CLUSTER subcommand '%s'", c.sub)
	}
}

func (c *clusterCmd) slotArg(i int) (uint16, error) {
	if i >= len(c.args) {
		return 0, cmn.ErrWrongArgCount("cluster")
	}
	n, err := strconv.Atoi(c.args[i])
	if err != nil || n < 0 || n >= cluster.NumSlots {
		return 0, cmn.NewErr(cmn.KindInvalidRequest, "Invalid or out of range slot")
	}
	return uint16(n), nil
}

func (c *clusterCmd) setSlot(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	slot, err := c.slotArg(0)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	if len(c.args) < 2 {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrWrongArgCount("cluster|setslot")
	}
	mode := strings.ToLower(c.args[1])
	var node string
	if len(c.args) > 2 {
		node = c.args[2]
	}
	switch mode {
	case "migrating":
		ctx.Slots.SetMigrating(slot, node)
	case "importing":
		ctx.Slots.SetImporting(slot, node)
	case "node":
		ctx.Slots.AssignSlot(slot, node)
	case "stable":
		ctx.Slots.ClearTransition(slot)
	default:
		return resp.Value{}, store.DidNotWrite(), cmn.ErrSyntax
	}
	return resp.OK(), store.DidNotWrite(), nil
}

func (c *clusterCmd) getKeysInSlot(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	slot, err := c.slotArg(0)
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	count := 10
	if len(c.args) > 1 {
		n, err := strconv.Atoi(c.args[1])
		if err != nil || n < 0 {
			return resp.Value{}, store.DidNotWrite(), cmn.ErrNotAnInteger
		}
		count = n
	}
	return stringArray(keysInSlot(ctx, slot, count)), store.DidNotWrite(), nil
}

// keysInSlot walks shard by shard under per-shard locks; count < 0 means all.
func keysInSlot(ctx *Context, slot uint16, count int) []string {
	var out []string
	now := store.NowMs()
	for i := 0; i < store.NumShards; i++ {
		ls := ctx.DB.LockIndex(i)
		sc := ls.Cache(i)
		for _, k := range sc.Keys() {
			e := sc.Peek(k)
			if e == nil || e.IsExpired(now) {
				continue
			}
			if cluster.HashSlot(k) == slot {
				out = append(out, k)
				if count >= 0 && len(out) == count {
					ls.Release()
					return out
				}
			}
		}
		ls.Release()
	}
	return out
}

func (c *clusterCmd) slots(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	// Contiguous ranges owned by this node, in the standard reply shape;
	// slots owned by other nodes are not listed.
	type nodeRange struct {
		start, end uint16
		id, addr   string
	}
	var ranges []nodeRange
	for _, slot := range ctx.Slots.SlotsOwnedBy(ctx.Slots.SelfID()) {
		id, addr := ctx.Slots.Owner(slot)
		if n := len(ranges); n > 0 && ranges[n-1].end == slot-1 && ranges[n-1].id == id {
			ranges[n-1].end = slot
			continue
		}
		ranges = append(ranges, nodeRange{start: slot, end: slot, id: id, addr: addr})
	}
	out := make([]resp.Value, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, resp.Arr(
			resp.Int(int64(r.start)),
			resp.Int(int64(r.end)),
			resp.Arr(resp.BulkString(r.addr), resp.BulkString(r.id)),
		))
	}
	return resp.ArrV(out), store.DidNotWrite(), nil
}

//
// ASKING
//

type askingCmd struct{ base }

func parseAsking(args [][]byte) (Command, error) {
	if len(args) != 0 {
		return nil, cmn.ErrWrongArgCount("asking")
	}
	return &askingCmd{mkBase("asking", 0)}, nil
}

func (c *askingCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	// One-shot: consumed by the next key-bearing command's slot check.
	ctx.Sess.ArmAsking()
	return resp.OK(), store.DidNotWrite(), nil
}

//
// MIGRATE
//

type migrateCmd struct {
	base
	host      string
	port      int
	timeoutMs int64
}

func parseMigrate(args [][]byte) (Command, error) {
	if len(args) != 5 {
		return nil, cmn.ErrWrongArgCount("migrate")
	}
	port, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return nil, cmn.ErrNotAnInteger
	}
	timeoutMs, err := parseInt(args[4])
	if err != nil {
		return nil, err
	}
	return &migrateCmd{
		base:      mkBase("migrate", cmn.FlagWrite|cmn.FlagAdmin|cmn.FlagMovableKeys, string(args[2])),
		host:      string(args[0]),
		port:      port,
		timeoutMs: timeoutMs,
	}, nil
}

// Execute copies the key to the destination node over the internal client and
// deletes it locally on acknowledgment. Only string payloads travel; a key of
// any other kind is refused with WRONGTYPE and stays local. The peer
// round-trip runs outside any shard lock.
func (c *migrateCmd) Execute(ctx *Context) (resp.Value, store.WriteOutcome, error) {
	key := c.keys[0]
	// Snapshot under the held lock, then release before dialing.
	sc := ctx.Locks.CacheFor(key)
	e := sc.Get(key, ctx.Now)
	if e == nil {
		return resp.Simple("NOKEY"), store.DidNotWrite(), nil
	}
	if e.Data.Kind != store.KindString {
		return resp.Value{}, store.DidNotWrite(), cmn.ErrWrongType
	}
	payload := append([]byte(nil), e.Data.Str...)
	ctx.Locks.Release()

	peer, err := cluster.Dial(c.host + ":" + strconv.Itoa(c.port))
	if err != nil {
		return resp.Value{}, store.DidNotWrite(), err
	}
	defer peer.Close()
	if _, err := peer.Do([]byte("SET"), []byte(key), payload); err != nil {
		return resp.Value{}, store.DidNotWrite(),
			cmn.NewErr(cmn.KindInternal, "migrate transfer failed: %v", err)
	}

	ls := ctx.DB.LockSingle(key)
	deleted := ls.CacheFor(key).Pop(key) != nil
	ls.Release()
	if !deleted {
		return resp.OK(), store.DidNotWrite(), nil
	}
	return resp.OK(), store.Deleted(1), nil
}
