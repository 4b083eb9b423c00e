// Package store implements the sharded keyspace: typed values, per-shard
// caches with secondary indexes, the lock planner, and the blocking-command
// coordinator.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package store

import (
	"context"
	"sync"
	"time"

	"github.com/spineldb/spineldb/cmn"
)

type ListSide int

const (
	Left ListSide = iota
	Right
)

type (
	waiter struct {
		ch        chan struct{}
		sessionID uint64
	}

	// BlockerManager coordinates BLPOP/BRPOP/BLMOVE/BZPOP*: waiters register
	// against keys before the locks that observed emptiness are dropped, so a
	// value produced between the empty check and the suspend is never missed.
	// Wake delivery is a non-blocking send on a one-slot channel - idempotent
	// and coalescing by construction.
	BlockerManager struct {
		mu    sync.Mutex
		byKey map[string]map[*waiter]struct{}
	}
)

func NewBlockerManager() *BlockerManager {
	return &BlockerManager{byKey: make(map[string]map[*waiter]struct{})}
}

// Wake signals every waiter registered against key. Safe to call for keys
// with no waiters; must be called by every mutation that could satisfy a
// blocking command. Callers hold no shard lock.
func (bm *BlockerManager) Wake(key string) {
	bm.mu.Lock()
	for w := range bm.byKey[key] {
		select {
		case w.ch <- struct{}{}:
		default:
		}
	}
	bm.mu.Unlock()
}

// Waiters reports the number of registrations against key (introspection).
func (bm *BlockerManager) Waiters(key string) int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return len(bm.byKey[key])
}

func (bm *BlockerManager) register(keys []string, w *waiter) {
	bm.mu.Lock()
	for _, k := range keys {
		set := bm.byKey[k]
		if set == nil {
			set = make(map[*waiter]struct{})
			bm.byKey[k] = set
		}
		set[w] = struct{}{}
	}
	bm.mu.Unlock()
}

func (bm *BlockerManager) deregister(keys []string, w *waiter) {
	bm.mu.Lock()
	for _, k := range keys {
		if set := bm.byKey[k]; set != nil {
			delete(set, w)
			if len(set) == 0 {
				delete(bm.byKey, k)
			}
		}
	}
	bm.mu.Unlock()
}

// BlockingListPop implements BLPOP/BRPOP over keys. A zero timeout blocks
// until the context ends. Returns ("", nil, nil) on timeout.
func (bm *BlockerManager) BlockingListPop(ctx context.Context, db *Db, sessionID uint64,
	keys []string, side ListSide, timeout time.Duration) (string, []byte, error) {
	w := &waiter{ch: make(chan struct{}, 1), sessionID: sessionID}
	timerC, stop := deadlineChan(timeout)
	defer stop()
	for {
		key, el, err := bm.tryListPop(db, keys, side, w)
		if err != nil || key != "" {
			return key, el, err
		}
		select {
		case <-w.ch:
			bm.deregister(keys, w)
		case <-timerC:
			bm.deregister(keys, w)
			return "", nil, nil
		case <-ctx.Done():
			bm.deregister(keys, w)
			return "", nil, ctx.Err()
		}
	}
}

// tryListPop attempts an immediate pop under the multi-shard lock; when all
// lists are empty it registers w before the guards are released.
func (bm *BlockerManager) tryListPop(db *Db, keys []string, side ListSide, w *waiter) (string, []byte, error) {
	ls := db.LockKeys(keys)
	key, el, err := TryListPop(ls, keys, side, NowMs())
	if err != nil || key != "" {
		ls.Release()
		return key, el, err
	}
	bm.register(keys, w)
	ls.Release()
	return "", nil, nil
}

// TryListPop pops from the first non-empty list among keys under the caller's
// guard set. Returns ("", nil, nil) when every list is empty or absent.
func TryListPop(ls *LockSet, keys []string, side ListSide, nowMs int64) (string, []byte, error) {
	for _, k := range keys {
		sc := ls.CacheFor(k)
		e := sc.Get(k, nowMs)
		if e == nil {
			continue
		}
		if e.Data.Kind != KindList {
			return "", nil, cmn.ErrWrongType
		}
		if len(e.Data.List) == 0 {
			continue
		}
		return k, popListSide(sc, k, e, side), nil
	}
	return "", nil, nil
}

// TryZPop removes the min- or max-scored member from the first non-empty
// sorted set among keys under the caller's guard set.
func TryZPop(ls *LockSet, keys []string, min bool, nowMs int64) (string, ZSetEntry, bool, error) {
	for _, k := range keys {
		sc := ls.CacheFor(k)
		e := sc.Get(k, nowMs)
		if e == nil {
			continue
		}
		if e.Data.Kind != KindZSet {
			return "", ZSetEntry{}, false, cmn.ErrWrongType
		}
		if e.Data.ZSet.Len() == 0 {
			continue
		}
		entries := e.Data.ZSet.Entries()
		picked := entries[0]
		if !min {
			picked = entries[len(entries)-1]
		}
		oldSize := e.Size
		e.Data.ZSet.Remove(picked.Member)
		if e.Data.ZSet.Len() == 0 {
			sc.Pop(k)
		} else {
			sc.Bump(k, e, oldSize)
		}
		return k, picked, true, nil
	}
	return "", ZSetEntry{}, false, nil
}

// BlockingZPop implements BZPOPMIN/BZPOPMAX. min selects the lowest-scored
// member; otherwise the highest. Returns ok=false on timeout.
func (bm *BlockerManager) BlockingZPop(ctx context.Context, db *Db, sessionID uint64,
	keys []string, min bool, timeout time.Duration) (key string, entry ZSetEntry, ok bool, err error) {
	w := &waiter{ch: make(chan struct{}, 1), sessionID: sessionID}
	timerC, stop := deadlineChan(timeout)
	defer stop()
	for {
		key, entry, ok, err = bm.tryZPop(db, keys, min, w)
		if err != nil || ok {
			return key, entry, ok, err
		}
		select {
		case <-w.ch:
			bm.deregister(keys, w)
		case <-timerC:
			bm.deregister(keys, w)
			return "", ZSetEntry{}, false, nil
		case <-ctx.Done():
			bm.deregister(keys, w)
			return "", ZSetEntry{}, false, ctx.Err()
		}
	}
}

func (bm *BlockerManager) tryZPop(db *Db, keys []string, min bool, w *waiter) (string, ZSetEntry, bool, error) {
	ls := db.LockKeys(keys)
	key, picked, ok, err := TryZPop(ls, keys, min, NowMs())
	if err != nil || ok {
		ls.Release()
		return key, picked, ok, err
	}
	bm.register(keys, w)
	ls.Release()
	return "", ZSetEntry{}, false, nil
}

// BlockingMove implements BLMOVE: the source pop and destination push happen
// atomically under the two-shard lock. Returns (nil, nil) on timeout.
func (bm *BlockerManager) BlockingMove(ctx context.Context, db *Db, sessionID uint64,
	src, dst string, from, to ListSide, timeout time.Duration) ([]byte, error) {
	w := &waiter{ch: make(chan struct{}, 1), sessionID: sessionID}
	srcKeys := []string{src}
	timerC, stop := deadlineChan(timeout)
	defer stop()
	for {
		el, moved, err := bm.tryMove(db, src, dst, from, to, w)
		if err != nil {
			return nil, err
		}
		if moved {
			return el, nil
		}
		select {
		case <-w.ch:
			bm.deregister(srcKeys, w)
		case <-timerC:
			bm.deregister(srcKeys, w)
			return nil, nil
		case <-ctx.Done():
			bm.deregister(srcKeys, w)
			return nil, ctx.Err()
		}
	}
}

func (bm *BlockerManager) tryMove(db *Db, src, dst string, from, to ListSide, w *waiter) ([]byte, bool, error) {
	ls := db.LockKeys([]string{src, dst})
	now := NowMs()
	el, moved, err := MoveListElement(ls, src, dst, from, to, now)
	if err != nil {
		ls.Release()
		return nil, false, err
	}
	if moved {
		ls.Release()
		return el, true, nil
	}
	bm.register([]string{src}, w)
	ls.Release()
	return nil, false, nil
}

// MoveListElement is the shared LMOVE/BLMOVE primitive: pops from src per
// `from` and pushes onto dst per `to` under the caller's guard set. Reports
// moved=false when src holds no element. The destination type is validated
// before the source is touched.
func MoveListElement(ls *LockSet, src, dst string, from, to ListSide, nowMs int64) ([]byte, bool, error) {
	srcCache := ls.CacheFor(src)
	se := srcCache.Get(src, nowMs)
	if se == nil {
		return nil, false, nil
	}
	if se.Data.Kind != KindList {
		return nil, false, cmn.ErrWrongType
	}
	if len(se.Data.List) == 0 {
		return nil, false, nil
	}
	dstCache := ls.CacheFor(dst)
	if de := dstCache.Get(dst, nowMs); de != nil && de.Data.Kind != KindList {
		return nil, false, cmn.ErrWrongType
	}
	el := popListSide(srcCache, src, se, from)
	de, _ := dstCache.GetOrInsertWith(dst, nowMs, NewList)
	oldSize := de.Size
	if to == Left {
		de.Data.List = append([][]byte{el}, de.Data.List...)
	} else {
		de.Data.List = append(de.Data.List, el)
	}
	dstCache.Bump(dst, de, oldSize)
	return el, true, nil
}

// popListSide removes one element and settles the entry, deleting the key
// when the list drains.
func popListSide(sc *ShardCache, key string, e *StoredValue, side ListSide) []byte {
	oldSize := e.Size
	var el []byte
	if side == Left {
		el = e.Data.List[0]
		e.Data.List = e.Data.List[1:]
	} else {
		el = e.Data.List[len(e.Data.List)-1]
		e.Data.List = e.Data.List[:len(e.Data.List)-1]
	}
	if len(e.Data.List) == 0 {
		sc.Pop(key)
	} else {
		sc.Bump(key, e, oldSize)
	}
	return el
}

// deadlineChan returns a channel that fires after d, or never for d <= 0.
func deadlineChan(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}
