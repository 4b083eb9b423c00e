// Package server owns the TCP listener, per-connection sessions, and the
// command router pipeline.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package server

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/command"
	"github.com/spineldb/spineldb/resp"
	"github.com/spineldb/spineldb/store"
)

// txnExempt commands bypass queuing while a MULTI is open.
var txnExempt = map[string]struct{}{
	"multi": {}, "exec": {}, "discard": {}, "watch": {}, "unwatch": {},
}

// dispatch is the single-command pipeline: parse, queue-or-gate, ACL, OOM,
// lock plan, slot check, execute, propagate, wake, sample.
func (s *Server) dispatch(ctx context.Context, sess *session, raw [][]byte) resp.Value {
	start := time.Now()
	name := strings.ToLower(string(raw[0]))

	cmd, err := command.Parse(raw)
	if err != nil {
		if s.txns.InTxn(sess.id) {
			s.txns.MarkError(sess.id)
		}
		s.runtime.Commands.WithLabelValues(name, "err").Inc()
		return resp.ErrValue(err)
	}
	flags := cmd.Flags()
	keys := cmd.Keys()

	// Transaction queuing. SUBSCRIBE-family commands abort the transaction
	// instead of queuing.
	if _, exempt := txnExempt[name]; !exempt && s.txns.InTxn(sess.id) {
		if flags.Contains(cmn.FlagPubSub) && strings.HasSuffix(name, "subscribe") {
			s.txns.MarkError(sess.id)
			return resp.Err("ERR " + strings.ToUpper(name) + " is not allowed in transactions")
		}
		if flags.Contains(cmn.FlagAdmin) {
			s.txns.MarkError(sess.id)
			return resp.Err("ERR " + strings.ToUpper(name) + " is not allowed in transactions")
		}
		if err := s.txns.Queue(sess.id, cmd); err != nil {
			return resp.ErrValue(err)
		}
		return resp.Simple("QUEUED")
	}

	// ACL gate.
	enforcer := s.aclStore.Current()
	if enforcer.Enabled() {
		if !enforcer.CheckPermission(sess.user, raw[1:], name, flags, keys, command.ChannelsOf(cmd)) {
			s.runtime.Commands.WithLabelValues(name, "denied").Inc()
			if sess.user == nil {
				return resp.ErrValue(cmn.ErrAuthRequired)
			}
			return resp.ErrValue(cmn.ErrNoPermission(name))
		}
	}

	// Memory ceiling for DENY_OOM commands, against the advertised policy.
	if flags.Contains(cmn.FlagDenyOOM) {
		if max := s.rom.Get().MaxMemory; max > 0 && s.db.UsedMemory() > max {
			s.runtime.Commands.WithLabelValues(name, "err").Inc()
			return resp.ErrValue(cmn.ErrMaxMemory)
		}
	}

	asking := sess.takeAsking()
	locks := command.PlanLocks(s.db, cmd)

	// Cluster slot check under the already-held guards: presence decides
	// between serving and an ASK redirect for MIGRATING slots.
	if s.slots != nil && len(keys) > 0 && !flags.Contains(cmn.FlagAdmin) {
		present := true
		now := store.NowMs()
		for _, k := range keys {
			if !locks.Holds(s.db.ShardIndex(k)) {
				continue
			}
			if e := locks.CacheFor(k).Peek(k); e == nil || e.IsExpired(now) {
				present = false
				break
			}
		}
		if err := s.slots.Check(keys, present, asking); err != nil {
			locks.Release()
			s.runtime.Commands.WithLabelValues(name, "redirect").Inc()
			return resp.ErrValue(err)
		}
	}

	cctx := s.execContext(ctx, sess, locks, raw)
	val, outcome, err := cmd.Execute(cctx)
	locks.Release()

	if err != nil {
		if se, ok := err.(*cmn.ServerErr); ok && se.Kind == cmn.KindInternal {
			log.Error().Str("cmd", name).Str("detail", se.Msg).Msg("internal error")
		}
		s.runtime.Commands.WithLabelValues(name, "err").Inc()
		return resp.ErrValue(err)
	}

	if outcome.DidWrite() {
		s.runtime.DirtyCounter.Add(float64(outcome.KeyCount))
		// Propagation to durability happens after lock release and, for an
		// "always" fsync policy, before the reply is flushed.
		if !flags.Contains(cmn.FlagNoPropagate) {
			if perr := s.prop.Propagate(name, raw[1:], outcome); perr != nil {
				log.Error().Str("cmd", name).Err(perr).Msg("propagation failed")
			}
		}
		// Any mutation may unblock a waiting BLPOP/BZPOP/BLMOVE.
		for _, k := range keys {
			s.blockers.Wake(k)
		}
	}

	s.monitor.AddSample(name, raw[1:], time.Since(start))
	s.runtime.Commands.WithLabelValues(name, "ok").Inc()
	return val
}
