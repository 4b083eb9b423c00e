// Package cmn provides common constants, types, and utilities shared by all
// SpinelDB packages.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package cmn

import (
	"fmt"
	"strconv"
)

// ErrKind enumerates every failure class the server can produce. The wire
// prefix of a reply is derived from the kind, never from free-form text.
type ErrKind int

const (
	KindIO ErrKind = iota
	KindUnknownCommand
	KindSyntax
	KindWrongArgCount
	KindWrongType
	KindNotAnInteger
	KindNotAFloat
	KindOverflow
	KindKeyNotFound
	KindKeyExists
	KindAuthRequired
	KindInvalidPassword
	KindNoPermission
	KindInvalidRequest
	KindInvalidState
	KindTxnAborted
	KindMaxMemory
	KindReadOnly
	KindReplicationLoop
	KindScriptTimeout
	KindMoved
	KindAsk
	KindCrossSlot
	KindClusterDown
	KindNoGroup
	KindInternal
)

// ServerErr is the single error type crossing the core. Slot and Addr are
// meaningful only for KindMoved and KindAsk.
type ServerErr struct {
	Msg  string
	Addr string
	Kind ErrKind
	Slot uint16
}

func (e *ServerErr) Error() string { return e.Wire() }

// Wire renders the error exactly as it must appear after the '-' marker of a
// RESP error frame.
func (e *ServerErr) Wire() string {
	switch e.Kind {
	case KindWrongType:
		return "WRONGTYPE Operation against a key holding the wrong kind of value"
	case KindAuthRequired:
		return "NOAUTH Authentication required"
	case KindInvalidPassword:
		return "WRONGPASS invalid username-password pair"
	case KindNoPermission:
		return "NOPERM this user has no permissions to run the '" + e.Msg + "' command"
	case KindTxnAborted:
		return "EXECABORT Transaction discarded because of previous errors"
	case KindMaxMemory:
		return "OOM command not allowed when used memory > 'maxmemory'"
	case KindReadOnly:
		return "READONLY You can't write against a read only replica"
	case KindMoved:
		return "MOVED " + strconv.Itoa(int(e.Slot)) + " " + e.Addr
	case KindAsk:
		return "ASK " + strconv.Itoa(int(e.Slot)) + " " + e.Addr
	case KindCrossSlot:
		return "CROSSSLOT Keys in request don't hash to the same slot"
	case KindClusterDown:
		return "CLUSTERDOWN " + e.Msg
	case KindNoGroup:
		return "NOGROUP No such consumer group '" + e.Msg + "'"
	case KindNotAnInteger:
		return "ERR value is not an integer or out of range"
	case KindNotAFloat:
		return "ERR value is not a valid float"
	case KindOverflow:
		return "ERR increment or decrement would overflow"
	case KindSyntax:
		return "ERR syntax error"
	case KindWrongArgCount:
		return "ERR wrong number of arguments for '" + e.Msg + "' command"
	case KindUnknownCommand:
		return "ERR unknown command '" + e.Msg + "'"
	case KindKeyNotFound:
		return "ERR no such key"
	case KindScriptTimeout:
		return "ERR script timed out"
	case KindInternal:
		// Internal detail is logged at the failure site; the client gets a
		// generic reply.
		return "ERR internal server error"
	default:
		return "ERR " + e.Msg
	}
}

func NewErr(kind ErrKind, format string, a ...any) *ServerErr {
	msg := format
	if len(a) > 0 {
		msg = fmt.Sprintf(format, a...)
	}
	return &ServerErr{Kind: kind, Msg: msg}
}

var (
	ErrSyntax       = &ServerErr{Kind: KindSyntax}
	ErrWrongType    = &ServerErr{Kind: KindWrongType}
	ErrNotAnInteger = &ServerErr{Kind: KindNotAnInteger}
	ErrNotAFloat    = &ServerErr{Kind: KindNotAFloat}
	ErrOverflow     = &ServerErr{Kind: KindOverflow}
	ErrKeyNotFound  = &ServerErr{Kind: KindKeyNotFound}
	ErrKeyExists    = &ServerErr{Kind: KindKeyExists, Msg: "key already exists"}
	ErrAuthRequired = &ServerErr{Kind: KindAuthRequired}
	ErrWrongPass    = &ServerErr{Kind: KindInvalidPassword}
	ErrTxnAborted   = &ServerErr{Kind: KindTxnAborted}
	ErrMaxMemory    = &ServerErr{Kind: KindMaxMemory}
	ErrCrossSlot    = &ServerErr{Kind: KindCrossSlot}
)

func ErrWrongArgCount(cmd string) *ServerErr {
	return &ServerErr{Kind: KindWrongArgCount, Msg: cmd}
}

func ErrUnknownCommand(cmd string) *ServerErr {
	return &ServerErr{Kind: KindUnknownCommand, Msg: cmd}
}

func ErrNoPermission(cmd string) *ServerErr {
	return &ServerErr{Kind: KindNoPermission, Msg: cmd}
}

func ErrMoved(slot uint16, addr string) *ServerErr {
	return &ServerErr{Kind: KindMoved, Slot: slot, Addr: addr}
}

func ErrAsk(slot uint16, addr string) *ServerErr {
	return &ServerErr{Kind: KindAsk, Slot: slot, Addr: addr}
}

func ErrInternal(format string, a ...any) *ServerErr {
	return NewErr(KindInternal, format, a...)
}

func ErrInvalidState(format string, a ...any) *ServerErr {
	return NewErr(KindInvalidState, format, a...)
}

// IsKind reports whether err is a *ServerErr of the given kind.
func IsKind(err error, kind ErrKind) bool {
	se, ok := err.(*ServerErr)
	return ok && se.Kind == kind
}
