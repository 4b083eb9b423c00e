// Package store implements the sharded keyspace.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func pushList(t *testing.T, db *Db, key string, vals ...string) {
	t.Helper()
	ls := db.LockSingle(key)
	sc := ls.CacheFor(key)
	e, _ := sc.GetOrInsertWith(key, NowMs(), NewList)
	oldSize := e.Size
	for _, v := range vals {
		e.Data.List = append(e.Data.List, []byte(v))
	}
	sc.Bump(key, e, oldSize)
	ls.Release()
}

func TestBlockingPopImmediate(t *testing.T) {
	db := NewDb()
	bm := NewBlockerManager()
	pushList(t, db, "q", "hello")

	key, el, err := bm.BlockingListPop(context.Background(), db, 1, []string{"q"}, Right, time.Second)
	require.NoError(t, err)
	require.Equal(t, "q", key)
	require.Equal(t, "hello", string(el))

	// The drained list key is gone.
	ls := db.LockSingle("q")
	require.Nil(t, ls.CacheFor("q").Peek("q"))
	ls.Release()
}

func TestBlockingPopTimeout(t *testing.T) {
	db := NewDb()
	bm := NewBlockerManager()
	start := time.Now()
	key, el, err := bm.BlockingListPop(context.Background(), db, 1, []string{"nope"}, Left, 50*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, key)
	require.Nil(t, el)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.Zero(t, bm.Waiters("nope"), "timeout must deregister")
}

func TestBlockingPopHandoff(t *testing.T) {
	db := NewDb()
	bm := NewBlockerManager()

	type result struct {
		key string
		el  []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		key, el, err := bm.BlockingListPop(context.Background(), db, 1, []string{"q"}, Right, 5*time.Second)
		done <- result{key, el, err}
	}()

	// Wait until the waiter is registered, then produce and wake - the
	// writer-side protocol every mutation follows.
	require.Eventually(t, func() bool { return bm.Waiters("q") == 1 }, time.Second, time.Millisecond)
	pushList(t, db, "q", "hello")
	bm.Wake("q")

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.Equal(t, "q", r.key)
		require.Equal(t, "hello", string(r.el))
	case <-time.After(2 * time.Second):
		t.Fatal("woken client never received the element")
	}

	// The handed-off element is visible to nobody else.
	ls := db.LockSingle("q")
	require.Nil(t, ls.CacheFor("q").Peek("q"))
	ls.Release()
}

func TestBlockingPopSingleConsumer(t *testing.T) {
	db := NewDb()
	bm := NewBlockerManager()

	got := make(chan string, 2)
	for i := 0; i < 2; i++ {
		go func(id uint64) {
			key, el, err := bm.BlockingListPop(context.Background(), db, id, []string{"q"}, Left, 2*time.Second)
			if err == nil && key != "" {
				got <- string(el)
			} else {
				got <- ""
			}
		}(uint64(i + 1))
	}
	require.Eventually(t, func() bool { return bm.Waiters("q") == 2 }, time.Second, time.Millisecond)
	pushList(t, db, "q", "only")
	bm.Wake("q")

	first, second := <-got, <-got
	winners := 0
	for _, v := range []string{first, second} {
		if v == "only" {
			winners++
		}
	}
	require.Equal(t, 1, winners, "exactly one waiter sees the element")
}

func TestBlockingPopWrongType(t *testing.T) {
	db := NewDb()
	bm := NewBlockerManager()
	ls := db.LockSingle("s")
	ls.CacheFor("s").Put("s", NewString([]byte("x")))
	ls.Release()

	_, _, err := bm.BlockingListPop(context.Background(), db, 1, []string{"s"}, Left, time.Second)
	require.Error(t, err)
}

func TestBlockingPopCancel(t *testing.T) {
	db := NewDb()
	bm := NewBlockerManager()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := bm.BlockingListPop(ctx, db, 1, []string{"q"}, Left, 0)
		done <- err
	}()
	require.Eventually(t, func() bool { return bm.Waiters("q") == 1 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter did not return")
	}
	require.Zero(t, bm.Waiters("q"), "disconnect must deregister")
}

func TestBlockingMove(t *testing.T) {
	db := NewDb()
	bm := NewBlockerManager()

	done := make(chan []byte, 1)
	go func() {
		el, err := bm.BlockingMove(context.Background(), db, 1, "src", "dst", Right, Left, 5*time.Second)
		require.NoError(t, err)
		done <- el
	}()
	require.Eventually(t, func() bool { return bm.Waiters("src") == 1 }, time.Second, time.Millisecond)
	pushList(t, db, "src", "payload")
	bm.Wake("src")

	select {
	case el := <-done:
		require.Equal(t, "payload", string(el))
	case <-time.After(2 * time.Second):
		t.Fatal("blmove never completed")
	}

	ls := db.LockKeys([]string{"src", "dst"})
	require.Nil(t, ls.CacheFor("src").Peek("src"))
	de := ls.CacheFor("dst").Peek("dst")
	require.NotNil(t, de)
	require.Equal(t, [][]byte{[]byte("payload")}, de.Data.List)
	ls.Release()
}

func TestBlockingZPop(t *testing.T) {
	db := NewDb()
	bm := NewBlockerManager()

	ls := db.LockSingle("z")
	sc := ls.CacheFor("z")
	v := NewZSet()
	v.Data.ZSet.Add("low", 1)
	v.Data.ZSet.Add("high", 9)
	v.Touch()
	sc.Put("z", v)
	ls.Release()

	key, entry, ok, err := bm.BlockingZPop(context.Background(), db, 1, []string{"z"}, true, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "z", key)
	require.Equal(t, "low", entry.Member)

	key, entry, ok, err = bm.BlockingZPop(context.Background(), db, 1, []string{"z"}, false, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "high", entry.Member)
	require.Equal(t, "z", key)
}

func TestWakeIsIdempotent(t *testing.T) {
	bm := NewBlockerManager()
	// No waiters, repeated wakes: must not panic or leak.
	bm.Wake("ghost")
	bm.Wake("ghost")
	require.Zero(t, bm.Waiters("ghost"))
}
