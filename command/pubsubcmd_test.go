// Package command implements the typed command surface.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package command

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spineldb/spineldb/resp"
)

func TestSubscribeConfirmations(t *testing.T) {
	h := newHarness(t)
	v := h.must("SUBSCRIBE", "a", "b")
	require.Equal(t, resp.KindMulti, v.Kind)
	require.Len(t, v.Array, 2)
	requireInt(t, v.Array[0].Array[2], 1)
	requireInt(t, v.Array[1].Array[2], 2)
	require.Equal(t, "subscribe", string(v.Array[0].Array[0].Bulk))
}

func TestPublishReachesSubscriber(t *testing.T) {
	h := newHarness(t)
	h.must("SUBSCRIBE", "news")
	requireInt(t, h.must("PUBLISH", "news", "hello"), 1)

	msg := <-h.sess.sub.C
	requireBulkArray(t, msg, "message", "news", "hello")

	requireInt(t, h.must("PUBLISH", "nobody", "x"), 0)
}

func TestUnsubscribeCounts(t *testing.T) {
	h := newHarness(t)
	h.must("SUBSCRIBE", "a", "b")
	v := h.must("UNSUBSCRIBE", "a")
	require.Equal(t, resp.KindMulti, v.Kind)
	requireInt(t, v.Array[0].Array[2], 1)

	// Bare unsubscribe with nothing left still confirms.
	h.must("UNSUBSCRIBE")
	v = h.must("UNSUBSCRIBE")
	require.Len(t, v.Array, 1)
	requireInt(t, v.Array[0].Array[2], 0)
}

func TestPatternSubscription(t *testing.T) {
	h := newHarness(t)
	h.must("PSUBSCRIBE", "news:*")
	requireInt(t, h.must("PUBLISH", "news:tech", "x"), 1)
	msg := <-h.sess.sub.C
	requireBulkArray(t, msg, "pmessage", "news:*", "news:tech", "x")
}

func TestPubsubChannels(t *testing.T) {
	h := newHarness(t)
	h.must("SUBSCRIBE", "alpha")
	require.ElementsMatch(t, []string{"alpha"}, membersOf(h.must("PUBSUB", "CHANNELS")))
	h.fails("PUBSUB", "NUMSUB9000")
}

func TestChannelsOfExtraction(t *testing.T) {
	c, err := Parse(rawArgs([]string{"SUBSCRIBE", "x", "y"}))
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, ChannelsOf(c))

	c, err = Parse(rawArgs([]string{"PUBLISH", "ch", "payload"}))
	require.NoError(t, err)
	require.Equal(t, []string{"ch"}, ChannelsOf(c))

	c, err = Parse(rawArgs([]string{"GET", "k"}))
	require.NoError(t, err)
	require.Nil(t, ChannelsOf(c))
}
