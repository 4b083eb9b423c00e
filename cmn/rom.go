// Package cmn provides common constants, types, and utilities shared by all
// SpinelDB packages.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package cmn

import (
	"sync/atomic"
	"time"
)

// Read-mostly snapshot of the hot configuration options. Command execution
// reads these on every request; CONFIG SET swaps in a new immutable snapshot
// instead of mutating in place.

type RomSnapshot struct {
	MaxMemory       int64
	MaxBitopAlloc   int64
	ScriptTimeout   time.Duration
	ScriptMemLimit  int64
	ReadOnlyReplica bool
}

type Rom struct {
	p atomic.Pointer[RomSnapshot]
}

func NewRom(cfg *Config) *Rom {
	r := &Rom{}
	r.Set(cfg)
	return r
}

// Set derives a fresh snapshot from cfg and publishes it.
func (r *Rom) Set(cfg *Config) {
	r.p.Store(&RomSnapshot{
		MaxMemory:      cfg.MaxMemory,
		MaxBitopAlloc:  cfg.MaxBitopAlloc,
		ScriptTimeout:  time.Duration(cfg.ScriptTimeoutMs) * time.Millisecond,
		ScriptMemLimit: cfg.ScriptMemLimitMB << 20,
	})
}

func (r *Rom) Get() *RomSnapshot { return r.p.Load() }

// Swap publishes snap and returns the previous snapshot.
func (r *Rom) Swap(snap *RomSnapshot) *RomSnapshot { return r.p.Swap(snap) }
