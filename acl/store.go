// Package acl implements the access-control enforcer: static command and
// category rules, glob-compiled key and channel patterns, and dynamic
// argument-based conditions.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package acl

import (
	"bytes"
	"os"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	natomic "github.com/natefinch/atomic"

	"github.com/spineldb/spineldb/cmn"
)

var js = jsoniter.ConfigCompatibleWithStandardLibrary

// Store holds the live Enforcer behind an atomic pointer. Readers (every
// command) load the snapshot lock-free; writers (ACL SETUSER, ACL LOAD)
// rebuild the config under the write mutex and swap.
type Store struct {
	cur  atomic.Pointer[Enforcer]
	mu   sync.Mutex
	cfg  cmn.AclConfig
	path string
}

func NewStore(cfg cmn.AclConfig, path string) *Store {
	s := &Store{cfg: cfg, path: path}
	s.cur.Store(NewEnforcer(&cfg))
	return s
}

// Current returns the live snapshot.
func (s *Store) Current() *Enforcer { return s.cur.Load() }

// SetUser creates or replaces a user and publishes a new snapshot.
func (s *Store) SetUser(name, password string, rules []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := false
	for i := range s.cfg.Users {
		if s.cfg.Users[i].Name == name {
			s.cfg.Users[i] = cmn.AclUserConfig{Name: name, Password: password, Rules: rules}
			replaced = true
			break
		}
	}
	if !replaced {
		s.cfg.Users = append(s.cfg.Users, cmn.AclUserConfig{Name: name, Password: password, Rules: rules})
	}
	s.cur.Store(NewEnforcer(&s.cfg))
}

// DelUser removes a user; reports whether it existed.
func (s *Store) DelUser(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cfg.Users {
		if s.cfg.Users[i].Name == name {
			s.cfg.Users = append(s.cfg.Users[:i], s.cfg.Users[i+1:]...)
			s.cur.Store(NewEnforcer(&s.cfg))
			return true
		}
	}
	return false
}

// Save writes the ACL config to its file atomically. Fails when no acl_file
// is configured.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return cmn.NewErr(cmn.KindInvalidState, "no acl_file configured")
	}
	data, err := js.MarshalIndent(&s.cfg, "", "  ")
	if err != nil {
		return err
	}
	return natomic.WriteFile(s.path, bytes.NewReader(data))
}

// Load replaces the live rule set from the configured file.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return cmn.NewErr(cmn.KindInvalidState, "no acl_file configured")
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var cfg cmn.AclConfig
	if err := js.Unmarshal(raw, &cfg); err != nil {
		return cmn.NewErr(cmn.KindInvalidRequest, "acl file: %v", err)
	}
	s.cfg = cfg
	s.cur.Store(NewEnforcer(&s.cfg))
	return nil
}
