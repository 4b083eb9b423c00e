// Package server owns the TCP listener, per-connection sessions, and the
// command router pipeline.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package server

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/spineldb/spineldb/acl"
	"github.com/spineldb/spineldb/pubsub"
	"github.com/spineldb/spineldb/resp"
)

// session is one client connection: the RESP reader/writer, the identity and
// transaction handle, the pub/sub subscriber, and the cluster ASKING one-shot.
type session struct {
	srv    *Server
	conn   net.Conn
	reader *resp.Reader
	writer *resp.Writer
	wmu    sync.Mutex

	id     uint64
	user   *acl.User
	name   string
	asking bool
	sub    *pubsub.Subscriber
}

func (s *Server) newSession(conn net.Conn) *session {
	id := s.nextID.Add(1)
	return &session{
		srv:    s,
		conn:   conn,
		reader: resp.NewReader(conn),
		writer: resp.NewWriter(conn),
		id:     id,
		sub:    pubsub.NewSubscriber(id),
	}
}

//
// command.Session
//

func (se *session) ID() uint64                     { return se.id }
func (se *session) User() *acl.User                { return se.user }
func (se *session) SetUser(u *acl.User)            { se.user = u }
func (se *session) ClientName() string             { return se.name }
func (se *session) SetClientName(n string)         { se.name = n }
func (se *session) ArmAsking()                     { se.asking = true }
func (se *session) Subscriber() *pubsub.Subscriber { return se.sub }

// takeAsking consumes the one-shot flag.
func (se *session) takeAsking() bool {
	v := se.asking
	se.asking = false
	return v
}

func (se *session) write(v resp.Value) error {
	se.wmu.Lock()
	defer se.wmu.Unlock()
	if err := se.writer.Write(v); err != nil {
		return err
	}
	return se.writer.Flush()
}

// serve runs the session until disconnect. A second goroutine pumps pub/sub
// deliveries onto the shared writer.
func (se *session) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer se.close()

	se.srv.runtime.Connections.Inc()
	defer se.srv.runtime.Connections.Dec()

	go se.pumpMessages(ctx)

	for {
		raw, err := se.reader.ReadCommand()
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				log.Debug().Uint64("session", se.id).Err(err).Msg("read failed, closing")
			}
			return
		}
		if strings.EqualFold(string(raw[0]), "quit") {
			se.write(resp.OK())
			return
		}
		reply := se.srv.dispatch(ctx, se, raw)
		if err := se.write(reply); err != nil {
			return
		}
	}
}

func (se *session) pumpMessages(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-se.sub.C:
			if err := se.write(msg); err != nil {
				return
			}
		}
	}
}

// close releases everything the session owns: waiters go via the cancelled
// context; watches, queue, and subscriptions are dropped here.
func (se *session) close() {
	se.srv.txns.Discard(se.id)
	se.srv.hub.Detach(se.sub)
	se.conn.Close()
}
