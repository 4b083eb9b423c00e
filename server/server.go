// Package server owns the TCP listener, per-connection sessions, and the
// command router pipeline: ACL gate, lock plan, execution, propagation, and
// latency sampling.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	ratomic "sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/spineldb/spineldb/acl"
	"github.com/spineldb/spineldb/cluster"
	"github.com/spineldb/spineldb/cmn"
	"github.com/spineldb/spineldb/command"
	"github.com/spineldb/spineldb/persist"
	"github.com/spineldb/spineldb/pubsub"
	"github.com/spineldb/spineldb/stats"
	"github.com/spineldb/spineldb/store"
)

type Server struct {
	cfg      *cmn.Config
	cfgMu    sync.Mutex
	rom      *cmn.Rom
	db       *store.Db
	blockers *store.BlockerManager
	hub      *pubsub.Hub
	txns     *command.TxnRegistry
	aclStore *acl.Store
	monitor  *stats.LatencyMonitor
	runtime  *stats.Runtime
	slots    *cluster.SlotMap // nil when cluster mode is off
	prop     persist.Propagator
	mods     *command.Modules
	sweeper  *store.Sweeper

	ln     net.Listener
	nextID ratomic.Uint64
}

// New wires a server from its configuration. Collaborators that are disabled
// by config resolve to no-ops.
func New(cfg *cmn.Config) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		rom:      cmn.NewRom(cfg),
		db:       store.NewDb(),
		blockers: store.NewBlockerManager(),
		hub:      pubsub.NewHub(),
		txns:     command.NewTxnRegistry(),
		aclStore: acl.NewStore(cfg.Acl, cfg.AclFile),
		monitor:  stats.NewLatencyMonitor(),
		prop:     persist.Noop{},
		mods:     &command.Modules{},
	}
	s.runtime = stats.NewRuntime(func() float64 { return float64(s.db.UsedMemory()) })
	s.sweeper = store.NewSweeper(s.db, s.onExpired)

	if cfg.Cluster.Enabled {
		nodeID := cfg.Cluster.NodeID
		if nodeID == "" {
			nodeID = "node-" + cfg.Addr
		}
		s.slots = cluster.NewSlotMap(nodeID, cfg.Addr)
	}
	if cfg.Persistence.AofEnabled {
		aof, err := persist.OpenAof(cfg.Persistence.Dir+"/spineldb.aof", cfg.Persistence.FsyncPolicy)
		if err != nil {
			return nil, err
		}
		s.prop = aof
		if err := s.replayAof(aof); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// DB exposes the keyspace (tests, embedded use).
func (s *Server) DB() *store.Db { return s.db }

// SetModules installs the scripting/probabilistic/search collaborators.
func (s *Server) SetModules(m *command.Modules) { s.mods = m }

// Run serves until ctx is cancelled. The active-expiry sweeper and the
// optional metrics endpoint run as siblings in the same errgroup; a failure
// of either tears the server down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	log.Info().Str("addr", s.cfg.Addr).Msg("spineldb listening")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.sweeper.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		ln.Close()
		return s.prop.Close()
	})
	if s.cfg.MetricsAddr != "" {
		g.Go(func() error { return s.serveMetrics(ctx) })
	}
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
					return err
				}
			}
			sess := s.newSession(conn)
			go sess.serve(ctx)
		}
	})
	err = g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

func (s *Server) serveMetrics(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.MetricsAddr, Handler: s.runtime.Handler()}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// onExpired runs after the sweeper dropped a batch (no shard lock held).
func (s *Server) onExpired(keys []string) {
	for _, k := range keys {
		s.runtime.ExpiredKeys.Inc()
		s.blockers.Wake(k)
	}
	args := make([][]byte, len(keys))
	for i, k := range keys {
		args[i] = []byte(k)
	}
	if err := s.prop.Propagate("del", args, store.Deleted(uint64(len(keys)))); err != nil {
		log.Error().Err(err).Msg("propagate expired batch")
	}
}

func (s *Server) replayAof(aof *persist.Aof) error {
	sys := &systemSession{id: s.nextID.Add(1)}
	return aof.Replay(func(name string, args [][]byte) error {
		raw := append([][]byte{[]byte(name)}, args...)
		c, err := command.Parse(raw)
		if err != nil {
			return err
		}
		locks := command.PlanLocks(s.db, c)
		defer locks.Release()
		cctx := s.execContext(context.Background(), sys, locks, raw)
		_, _, err = c.Execute(cctx)
		return err
	})
}

func (s *Server) execContext(ctx context.Context, sess command.Session,
	locks *store.LockSet, raw [][]byte) *command.Context {
	return &command.Context{
		Ctx:      ctx,
		DB:       s.db,
		Locks:    locks,
		Sess:     sess,
		Blockers: s.blockers,
		Hub:      s.hub,
		Txns:     s.txns,
		Rom:      s.rom,
		Acl:      s.aclStore,
		Monitor:  s.monitor,
		Stats:    s.runtime,
		Slots:    s.slots,
		Control:  (*serverControl)(s),
		Mods:     s.mods,
		RawArgs:  raw[1:],
		Now:      store.NowMs(),
	}
}

//
// ServerControl
//

type serverControl Server

func (sc *serverControl) ApplyConfig(param, value string) error {
	s := (*Server)(sc)
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return cmn.NewErr(cmn.KindInvalidRequest, "argument couldn't be parsed into an integer")
	}
	switch param {
	case "maxmemory":
		s.cfg.MaxMemory = n
	case "max_bitop_alloc_size":
		s.cfg.MaxBitopAlloc = n
	case "script_timeout_ms":
		s.cfg.ScriptTimeoutMs = n
	case "script_memory_limit_mb":
		s.cfg.ScriptMemLimitMB = n
	default:
		return cmn.NewErr(cmn.KindInvalidRequest, "unknown configuration parameter '%s'", param)
	}
	s.rom.Set(s.cfg)
	return nil
}

func (sc *serverControl) ConfigValue(param string) (string, bool) {
	s := (*Server)(sc)
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	switch param {
	case "maxmemory":
		return strconv.FormatInt(s.cfg.MaxMemory, 10), true
	case "max_bitop_alloc_size":
		return strconv.FormatInt(s.cfg.MaxBitopAlloc, 10), true
	case "script_timeout_ms":
		return strconv.FormatInt(s.cfg.ScriptTimeoutMs, 10), true
	case "script_memory_limit_mb":
		return strconv.FormatInt(s.cfg.ScriptMemLimitMB, 10), true
	case "acl_file":
		return s.cfg.AclFile, true
	default:
		return "", false
	}
}

func (sc *serverControl) RewriteConfig() error {
	s := (*Server)(sc)
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.cfg.Rewrite()
}

func (sc *serverControl) TriggerAofRewrite() error {
	s := (*Server)(sc)
	aof, ok := s.prop.(*persist.Aof)
	if !ok {
		return cmn.ErrInvalidState("append-only persistence is disabled")
	}
	dump := persist.DumpDb(s.db)
	go func() {
		if err := aof.Rewrite(dump); err != nil {
			log.Error().Err(err).Msg("aof rewrite failed")
		}
	}()
	return nil
}

func (sc *serverControl) TriggerSnapshot() error {
	s := (*Server)(sc)
	if s.cfg.Persistence.Dir == "" {
		return cmn.ErrInvalidState("no persistence directory configured")
	}
	return persist.WriteSnapshot(s.db, s.cfg.Persistence.Dir+"/spineldb.snapshot")
}

// systemSession stands in for replay and background contexts.
type systemSession struct {
	id   uint64
	user *acl.User
	name string
}

func (ss *systemSession) ID() uint64                   { return ss.id }
func (ss *systemSession) User() *acl.User              { return ss.user }
func (ss *systemSession) SetUser(u *acl.User)          { ss.user = u }
func (ss *systemSession) ClientName() string           { return ss.name }
func (ss *systemSession) SetClientName(n string)       { ss.name = n }
func (ss *systemSession) ArmAsking()                   {}
func (ss *systemSession) Subscriber() *pubsub.Subscriber { return nil }
