// Package command implements the typed command surface.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import "testing"

func TestZAddZRangeOrdering(t *testing.T) {
	h := newHarness(t)
	requireInt(t, h.must("ZADD", "k", "3", "c", "1", "a", "2", "b"), 3)
	requireBulkArray(t, h.must("ZRANGE", "k", "0", "-1"), "a", "b", "c")
	requireBulkArray(t, h.must("ZREVRANGE", "k", "0", "-1"), "c", "b", "a")
	requireBulkArray(t, h.must("ZRANGE", "k", "0", "1", "WITHSCORES"), "a", "1", "b", "2")
}

func TestZAddLexTieBreak(t *testing.T) {
	h := newHarness(t)
	h.must("ZADD", "k", "1", "bb", "1", "aa", "1", "cc")
	requireBulkArray(t, h.must("ZRANGE", "k", "0", "-1"), "aa", "bb", "cc")
}

func TestZAddUpdateAndFlags(t *testing.T) {
	h := newHarness(t)
	requireInt(t, h.must("ZADD", "k", "1", "m"), 1)
	requireInt(t, h.must("ZADD", "k", "5", "m"), 0)
	requireBulk(t, h.must("ZSCORE", "k", "m"), "5")

	requireInt(t, h.must("ZADD", "k", "NX", "9", "m"), 0)
	requireBulk(t, h.must("ZSCORE", "k", "m"), "5")

	requireInt(t, h.must("ZADD", "k", "XX", "CH", "7", "m"), 1)
	requireBulk(t, h.must("ZSCORE", "k", "m"), "7")

	requireInt(t, h.must("ZADD", "k", "XX", "1", "newmember"), 0)
	requireNull(t, h.must("ZSCORE", "k", "newmember"))

	requireBulk(t, h.must("ZADD", "k", "INCR", "3", "m"), "10")
}

func TestZRemZCard(t *testing.T) {
	h := newHarness(t)
	h.must("ZADD", "k", "1", "a", "2", "b")
	requireInt(t, h.must("ZCARD", "k"), 2)
	requireInt(t, h.must("ZREM", "k", "a", "zz"), 1)
	requireInt(t, h.must("ZREM", "k", "b"), 1)
	requireInt(t, h.must("EXISTS", "k"), 0)
	requireInt(t, h.must("ZCARD", "k"), 0)
}

func TestZCountBounds(t *testing.T) {
	h := newHarness(t)
	h.must("ZADD", "k", "1", "a", "2", "b", "3", "c")
	requireInt(t, h.must("ZCOUNT", "k", "-inf", "+inf"), 3)
	requireInt(t, h.must("ZCOUNT", "k", "1", "2"), 2)
	requireInt(t, h.must("ZCOUNT", "k", "(1", "2"), 1)
	requireInt(t, h.must("ZCOUNT", "k", "(1", "(2"), 0)
}

func TestZRangeByScore(t *testing.T) {
	h := newHarness(t)
	h.must("ZADD", "k", "1", "a", "2", "b", "3", "c", "4", "d")
	requireBulkArray(t, h.must("ZRANGEBYSCORE", "k", "2", "3"), "b", "c")
	requireBulkArray(t, h.must("ZRANGEBYSCORE", "k", "(2", "+inf"), "c", "d")
	requireBulkArray(t, h.must("ZRANGEBYSCORE", "k", "-inf", "+inf", "LIMIT", "1", "2"), "b", "c")
	requireBulkArray(t, h.must("ZRANGEBYSCORE", "k", "2", "2", "WITHSCORES"), "b", "2")
}

func TestZRangeByLexAndCount(t *testing.T) {
	h := newHarness(t)
	h.must("ZADD", "k", "0", "a", "0", "b", "0", "c", "0", "d")
	requireBulkArray(t, h.must("ZRANGEBYLEX", "k", "-", "+"), "a", "b", "c", "d")
	requireBulkArray(t, h.must("ZRANGEBYLEX", "k", "[b", "[c"), "b", "c")
	requireBulkArray(t, h.must("ZRANGEBYLEX", "k", "(b", "+"), "c", "d")
	requireInt(t, h.must("ZLEXCOUNT", "k", "-", "+"), 4)
	requireInt(t, h.must("ZLEXCOUNT", "k", "[b", "(d"), 2)
	h.fails("ZRANGEBYLEX", "k", "b", "c")
}

func TestZIncrBy(t *testing.T) {
	h := newHarness(t)
	requireBulk(t, h.must("ZINCRBY", "k", "5", "m"), "5")
	requireBulk(t, h.must("ZINCRBY", "k", "2.5", "m"), "7.5")
	requireBulk(t, h.must("ZINCRBY", "k", "-7.5", "m"), "0")
}

func TestZPopMinMax(t *testing.T) {
	h := newHarness(t)
	h.must("ZADD", "k", "1", "a", "2", "b", "3", "c")
	requireBulkArray(t, h.must("ZPOPMIN", "k"), "a", "1")
	requireBulkArray(t, h.must("ZPOPMAX", "k"), "c", "3")
	requireBulkArray(t, h.must("ZPOPMIN", "k", "5"), "b", "2")
	requireInt(t, h.must("EXISTS", "k"), 0)
}

func TestZRemRangeVariants(t *testing.T) {
	h := newHarness(t)
	seed := func() {
		h.must("DEL", "k")
		h.must("ZADD", "k", "1", "a", "2", "b", "3", "c", "4", "d")
	}
	seed()
	requireInt(t, h.must("ZREMRANGEBYSCORE", "k", "2", "3"), 2)
	requireBulkArray(t, h.must("ZRANGE", "k", "0", "-1"), "a", "d")

	seed()
	requireInt(t, h.must("ZREMRANGEBYRANK", "k", "0", "1"), 2)
	requireBulkArray(t, h.must("ZRANGE", "k", "0", "-1"), "c", "d")

	seed()
	requireInt(t, h.must("ZREMRANGEBYLEX", "k", "[a", "[b"), 2)
	requireBulkArray(t, h.must("ZRANGE", "k", "0", "-1"), "c", "d")

	requireInt(t, h.must("ZREMRANGEBYSCORE", "k", "0", "100"), 2)
	requireInt(t, h.must("EXISTS", "k"), 0)
}

func TestZStoreAggregates(t *testing.T) {
	h := newHarness(t)
	h.must("ZADD", "z1", "1", "a", "2", "b")
	h.must("ZADD", "z2", "3", "b", "4", "c")

	requireInt(t, h.must("ZUNIONSTORE", "dst", "2", "z1", "z2"), 3)
	requireBulkArray(t, h.must("ZRANGE", "dst", "0", "-1", "WITHSCORES"),
		"a", "1", "c", "4", "b", "5")

	requireInt(t, h.must("ZINTERSTORE", "dst", "2", "z1", "z2"), 1)
	requireBulkArray(t, h.must("ZRANGE", "dst", "0", "-1", "WITHSCORES"), "b", "5")

	requireInt(t, h.must("ZINTERSTORE", "dst", "2", "z1", "z2", "AGGREGATE", "MIN"), 1)
	requireBulkArray(t, h.must("ZRANGE", "dst", "0", "-1", "WITHSCORES"), "b", "2")

	requireInt(t, h.must("ZUNIONSTORE", "dst", "2", "z1", "z2", "WEIGHTS", "10", "1", "AGGREGATE", "MAX"), 3)
	requireBulkArray(t, h.must("ZRANGE", "dst", "0", "-1", "WITHSCORES"),
		"c", "4", "a", "10", "b", "20")
}

func TestZStoreWithPlainSets(t *testing.T) {
	h := newHarness(t)
	h.must("SADD", "s", "a", "b")
	h.must("ZADD", "z", "5", "b")
	requireInt(t, h.must("ZUNIONSTORE", "dst", "2", "s", "z"), 2)
	requireBulkArray(t, h.must("ZRANGE", "dst", "0", "-1", "WITHSCORES"), "a", "1", "b", "6")
}
