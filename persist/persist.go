// Package persist implements the durability collaborators: the append-only
// operation log and the point-in-time snapshot. The core hands every write,
// with its outcome, to a Propagator right after the shard locks are released.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package persist

import (
	"github.com/spineldb/spineldb/store"
)

// Propagator receives each completed write operation. When the fsync policy
// is "always" the call must not return until the op is durable; the router
// holds the client reply until then.
type Propagator interface {
	Propagate(name string, args [][]byte, outcome store.WriteOutcome) error
	Close() error
}

// Noop drops everything; used when persistence is disabled.
type Noop struct{}

func (Noop) Propagate(string, [][]byte, store.WriteOutcome) error { return nil }
func (Noop) Close() error                                         { return nil }
