// Package cluster provides the cluster-command substrate: the slot ownership
// map, MOVED/ASK redirects, the internal peer client, and the reshard task.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package cluster

import (
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/spineldb/spineldb/resp"
)

const peerDialTimeout = 5 * time.Second

// Client is the lightweight internal client used by resharding and slot
// administration. It speaks the same wire protocol as any other client and
// always runs outside any shard lock.
type Client struct {
	conn net.Conn
	r    *resp.Reader
	w    *resp.Writer
}

// Dial connects to a peer's client port.
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, peerDialTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "dial peer %s", addr)
	}
	return &Client{conn: conn, r: resp.NewReader(conn), w: resp.NewWriter(conn)}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Do issues one command and returns the reply frame. An error-frame reply is
// surfaced as a Go error.
func (c *Client) Do(args ...[]byte) (resp.Value, error) {
	frames := make([]resp.Value, len(args))
	for i, a := range args {
		frames[i] = resp.Bulk(a)
	}
	if err := c.w.Write(resp.ArrV(frames)); err != nil {
		return resp.Value{}, err
	}
	if err := c.w.Flush(); err != nil {
		return resp.Value{}, err
	}
	v, err := c.r.ReadValue()
	if err != nil {
		return resp.Value{}, err
	}
	if v.Kind == resp.KindError {
		return resp.Value{}, errors.New(v.Str)
	}
	return v, nil
}

func bs(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

// SetSlot issues CLUSTER SETSLOT <slot> <subcommand> [node].
func (c *Client) SetSlot(slot uint16, sub, nodeID string) error {
	args := bs("CLUSTER", "SETSLOT", strconv.Itoa(int(slot)), sub)
	if nodeID != "" {
		args = append(args, []byte(nodeID))
	}
	_, err := c.Do(args...)
	return err
}

// GetKeysInSlot issues CLUSTER GETKEYSINSLOT and returns the key batch.
func (c *Client) GetKeysInSlot(slot uint16, count int) ([]string, error) {
	v, err := c.Do(bs("CLUSTER", "GETKEYSINSLOT", strconv.Itoa(int(slot)), strconv.Itoa(count))...)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(v.Array))
	for _, el := range v.Array {
		keys = append(keys, string(el.Bulk))
	}
	return keys, nil
}

// Migrate issues MIGRATE for one key toward the destination node.
func (c *Client) Migrate(host string, port int, key string, timeoutMs int64) error {
	_, err := c.Do(bs("MIGRATE", host, strconv.Itoa(port), key, "0",
		strconv.FormatInt(timeoutMs, 10))...)
	return err
}
