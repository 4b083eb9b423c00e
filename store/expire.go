// Package store implements the sharded keyspace: typed values, per-shard
// caches with secondary indexes, the lock planner, and the blocking-command
// coordinator.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package store

import (
	"context"
	"time"
)

const (
	sweepInterval      = 100 * time.Millisecond
	sweepBatchPerShard = 20
)

// Sweeper actively deletes expired entries in the background. Reads already
// treat stale entries as absent; the sweeper reclaims their memory.
type Sweeper struct {
	db       *Db
	onExpire func(keys []string)
}

// NewSweeper wires the sweeper to db. onExpire (optional) receives the keys
// of each deleted batch after the shard lock is dropped, for propagation,
// waiter wakeup, and stats.
func NewSweeper(db *Db, onExpire func(keys []string)) *Sweeper {
	return &Sweeper{db: db, onExpire: onExpire}
}

// Run loops until ctx ends. Intended as an errgroup task.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce walks every shard once, deleting up to sweepBatchPerShard stale
// entries per shard. Returns the total deleted.
func (s *Sweeper) SweepOnce() (deleted int) {
	now := NowMs()
	for i := 0; i < NumShards; i++ {
		sh := s.db.shards[i]
		sh.mu.Lock()
		stale := sh.cache.ExpiredSample(now, sweepBatchPerShard)
		for _, k := range stale {
			sh.cache.Pop(k)
		}
		sh.mu.Unlock()
		if len(stale) > 0 {
			deleted += len(stale)
			if s.onExpire != nil {
				s.onExpire(stale)
			}
		}
	}
	return deleted
}
