// Package persist implements the durability collaborators: the append-only
// operation log and the point-in-time snapshot.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package persist

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/buntdb"

	"github.com/spineldb/spineldb/store"
)

var js = jsoniter.ConfigCompatibleWithStandardLibrary

const aofSeqWidth = 20

type (
	// aofRecord is one journaled operation.
	aofRecord struct {
		Name string   `json:"name"`
		Args []string `json:"args"`
	}

	// Aof journals write operations into a buntdb log keyed by a
	// zero-padded monotonic sequence number; replay walks the keys in
	// order. The "always" fsync policy maps onto buntdb's Always
	// SyncPolicy.
	Aof struct {
		db   *buntdb.DB
		mu   sync.Mutex
		seq  uint64
		path string
	}
)

// OpenAof opens (or creates) the journal. fsyncPolicy is one of "always",
// "everysec", "no".
func OpenAof(path, fsyncPolicy string) (*Aof, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open aof %s", path)
	}
	var cfg buntdb.Config
	if err := db.ReadConfig(&cfg); err != nil {
		db.Close()
		return nil, err
	}
	switch fsyncPolicy {
	case "always":
		cfg.SyncPolicy = buntdb.Always
	case "no":
		cfg.SyncPolicy = buntdb.Never
	default:
		cfg.SyncPolicy = buntdb.EverySecond
	}
	if err := db.SetConfig(cfg); err != nil {
		db.Close()
		return nil, err
	}
	a := &Aof{db: db, path: path}
	if err := a.loadSeq(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Aof) loadSeq() error {
	return a.db.View(func(tx *buntdb.Tx) error {
		return tx.Descend("", func(key, _ string) bool {
			if n, err := parseSeq(key); err == nil {
				a.seq = n + 1
			}
			return false // highest key only
		})
	})
}

func seqKey(n uint64) string { return fmt.Sprintf("%0*d", aofSeqWidth, n) }

func parseSeq(key string) (uint64, error) {
	var n uint64
	_, err := fmt.Sscanf(key, "%d", &n)
	return n, err
}

// Propagate journals one write. NoPropagate-flagged commands never reach
// here; the router filters them.
func (a *Aof) Propagate(name string, args [][]byte, outcome store.WriteOutcome) error {
	if !outcome.DidWrite() {
		return nil
	}
	rec := aofRecord{Name: name, Args: make([]string, len(args))}
	for i, arg := range args {
		rec.Args[i] = string(arg)
	}
	data, err := js.Marshal(&rec)
	if err != nil {
		return err
	}
	a.mu.Lock()
	key := seqKey(a.seq)
	a.seq++
	a.mu.Unlock()
	return a.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(data), nil)
		return err
	})
}

// Replay feeds every journaled operation, in sequence order, to apply.
// Records that no longer parse are logged and skipped rather than aborting
// startup.
func (a *Aof) Replay(apply func(name string, args [][]byte) error) error {
	return a.db.View(func(tx *buntdb.Tx) error {
		var inner error
		err := tx.Ascend("", func(key, value string) bool {
			var rec aofRecord
			if err := js.Unmarshal([]byte(value), &rec); err != nil {
				log.Warn().Str("seq", key).Err(err).Msg("skipping corrupt aof record")
				return true
			}
			args := make([][]byte, len(rec.Args))
			for i, s := range rec.Args {
				args[i] = []byte(s)
			}
			if err := apply(rec.Name, args); err != nil {
				inner = errors.Wrapf(err, "replay %s at seq %s", rec.Name, key)
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
		return inner
	})
}

// Rewrite compacts the journal to a canonical SET-per-key form derived from
// the live keyspace (string payloads; richer kinds are restored from the
// snapshot). The whole rewrite runs as one buntdb transaction and cannot be
// cancelled part way through.
func (a *Aof) Rewrite(dump []SnapshotEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.db.Update(func(tx *buntdb.Tx) error {
		if err := tx.DeleteAll(); err != nil {
			return err
		}
		seq := uint64(0)
		for i := range dump {
			en := &dump[i]
			if en.Kind != store.KindString.String() {
				continue
			}
			rec := aofRecord{Name: "set", Args: []string{en.Key, en.Str}}
			data, err := js.Marshal(&rec)
			if err != nil {
				return err
			}
			if _, _, err := tx.Set(seqKey(seq), string(data), nil); err != nil {
				return err
			}
			seq++
		}
		a.seq = seq
		return nil
	})
	if err != nil {
		return err
	}
	return a.db.Shrink()
}

func (a *Aof) Close() error { return a.db.Close() }
