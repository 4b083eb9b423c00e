// Package pubsub implements the publish/subscribe hub: channel and pattern
// subscriptions with per-session delivery queues.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package pubsub

import (
	"sync"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/resp"
)

const subscriberQueueLen = 128

type (
	// Subscriber is one session's view of the hub. C carries fully formed
	// message frames; a slow consumer drops messages rather than blocking
	// the publisher.
	Subscriber struct {
		C        chan resp.Value
		ID       uint64
		channels map[string]struct{}
		patterns map[string]struct{}
	}

	Hub struct {
		mu       sync.RWMutex
		channels map[string]map[*Subscriber]struct{}
		patterns map[string]map[*Subscriber]struct{}
	}
)

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*Subscriber]struct{}),
		patterns: make(map[string]map[*Subscriber]struct{}),
	}
}

func NewSubscriber(id uint64) *Subscriber {
	return &Subscriber{
		ID:       id,
		C:        make(chan resp.Value, subscriberQueueLen),
		channels: make(map[string]struct{}),
		patterns: make(map[string]struct{}),
	}
}

// Count returns the subscriber's total subscription count (channels plus
// patterns), the number RESP subscribe confirmations carry.
func (s *Subscriber) Count() int { return len(s.channels) + len(s.patterns) }

func (s *Subscriber) Channels() []string { return keysOf(s.channels) }
func (s *Subscriber) Patterns() []string { return keysOf(s.patterns) }

func keysOf(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Subscribe adds sub to each channel; returns the running count after each
// addition, matching the RESP confirmation sequence.
func (h *Hub) Subscribe(sub *Subscriber, channels ...string) []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	counts := make([]int, 0, len(channels))
	for _, ch := range channels {
		set := h.channels[ch]
		if set == nil {
			set = make(map[*Subscriber]struct{})
			h.channels[ch] = set
		}
		set[sub] = struct{}{}
		sub.channels[ch] = struct{}{}
		counts = append(counts, sub.Count())
	}
	return counts
}

// Unsubscribe removes sub from the given channels, or from all of its
// channels when none are named. Returns the removed names paired with the
// remaining counts.
func (h *Hub) Unsubscribe(sub *Subscriber, channels ...string) ([]string, []int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(channels) == 0 {
		channels = keysOf(sub.channels)
	}
	counts := make([]int, 0, len(channels))
	for _, ch := range channels {
		if set := h.channels[ch]; set != nil {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.channels, ch)
			}
		}
		delete(sub.channels, ch)
		counts = append(counts, sub.Count())
	}
	return channels, counts
}

// PSubscribe mirrors Subscribe for glob patterns.
func (h *Hub) PSubscribe(sub *Subscriber, patterns ...string) []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	counts := make([]int, 0, len(patterns))
	for _, p := range patterns {
		set := h.patterns[p]
		if set == nil {
			set = make(map[*Subscriber]struct{})
			h.patterns[p] = set
		}
		set[sub] = struct{}{}
		sub.patterns[p] = struct{}{}
		counts = append(counts, sub.Count())
	}
	return counts
}

// PUnsubscribe mirrors Unsubscribe for glob patterns.
func (h *Hub) PUnsubscribe(sub *Subscriber, patterns ...string) ([]string, []int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(patterns) == 0 {
		patterns = keysOf(sub.patterns)
	}
	counts := make([]int, 0, len(patterns))
	for _, p := range patterns {
		if set := h.patterns[p]; set != nil {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.patterns, p)
			}
		}
		delete(sub.patterns, p)
		counts = append(counts, sub.Count())
	}
	return patterns, counts
}

// Detach removes every subscription of sub (client disconnect).
func (h *Hub) Detach(sub *Subscriber) {
	h.Unsubscribe(sub)
	h.PUnsubscribe(sub)
}

// Publish delivers payload to every matching channel and pattern subscriber;
// returns the number of receivers.
func (h *Hub) Publish(channel string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	msg := resp.Arr(resp.BulkString("message"), resp.BulkString(channel), resp.Bulk(payload))
	for sub := range h.channels[channel] {
		if deliver(sub, msg) {
			n++
		}
	}
	for pat, subs := range h.patterns {
		if !cmn.GlobMatch(pat, channel) {
			continue
		}
		pmsg := resp.Arr(resp.BulkString("pmessage"), resp.BulkString(pat),
			resp.BulkString(channel), resp.Bulk(payload))
		for sub := range subs {
			if deliver(sub, pmsg) {
				n++
			}
		}
	}
	return n
}

// ActiveChannels reports active channels (PUBSUB CHANNELS).
func (h *Hub) ActiveChannels() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.channels))
	for ch := range h.channels {
		out = append(out, ch)
	}
	return out
}

func deliver(sub *Subscriber, msg resp.Value) bool {
	select {
	case sub.C <- msg:
		return true
	default:
		return false
	}
}
