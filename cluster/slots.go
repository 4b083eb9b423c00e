// Package cluster provides the cluster-command substrate: the slot ownership
// map, MOVED/ASK redirects, the internal peer client, and the reshard task.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package cluster

import (
	"strings"
	"sync"

	"github.com/spineldb/spineldb/cmn"
)

// NumSlots is fixed by the cluster wire protocol.
const NumSlots = 16384

// crc16tab is the CCITT polynomial table the slot mapping is defined over.
var crc16tab [256]uint16

func init() {
	const poly = 0x1021
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for b := 0; b < 8; b++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		crc16tab[i] = crc
	}
}

func crc16(b []byte) (crc uint16) {
	for _, c := range b {
		crc = crc<<8 ^ crc16tab[byte(crc>>8)^c]
	}
	return crc
}

// HashSlot maps a key to its slot, honoring {hash tag} sub-key selection.
func HashSlot(key string) uint16 {
	if open := strings.IndexByte(key, '{'); open >= 0 {
		if close := strings.IndexByte(key[open+1:], '}'); close > 0 {
			key = key[open+1 : open+1+close]
		}
	}
	return crc16([]byte(key)) % NumSlots
}

type slotState struct {
	owner     string // node id
	addr      string // client address of the owner
	migrating string // destination node id while MIGRATING, else ""
	importing string // source node id while IMPORTING, else ""
}

// SlotMap is the per-node view of slot ownership. Readers vastly outnumber
// writers; writers hold the mutex only for the swap of individual states.
type SlotMap struct {
	mu     sync.RWMutex
	slots  [NumSlots]slotState
	selfID string
	addrs  map[string]string // node id -> client addr
}

func NewSlotMap(selfID, selfAddr string) *SlotMap {
	sm := &SlotMap{selfID: selfID, addrs: map[string]string{selfID: selfAddr}}
	for i := range sm.slots {
		sm.slots[i] = slotState{owner: selfID, addr: selfAddr}
	}
	return sm
}

func (sm *SlotMap) SelfID() string { return sm.selfID }

// SetNodeAddr records the client address of a peer.
func (sm *SlotMap) SetNodeAddr(nodeID, addr string) {
	sm.mu.Lock()
	sm.addrs[nodeID] = addr
	sm.mu.Unlock()
}

// AssignSlot transfers ownership of slot to nodeID and clears any migration
// state.
func (sm *SlotMap) AssignSlot(slot uint16, nodeID string) {
	sm.mu.Lock()
	sm.slots[slot] = slotState{owner: nodeID, addr: sm.addrs[nodeID]}
	sm.mu.Unlock()
}

// SetMigrating marks slot as streaming out to dstID.
func (sm *SlotMap) SetMigrating(slot uint16, dstID string) {
	sm.mu.Lock()
	sm.slots[slot].migrating = dstID
	sm.mu.Unlock()
}

// SetImporting marks slot as streaming in from srcID.
func (sm *SlotMap) SetImporting(slot uint16, srcID string) {
	sm.mu.Lock()
	sm.slots[slot].importing = srcID
	sm.mu.Unlock()
}

// ClearTransition drops MIGRATING/IMPORTING state for slot.
func (sm *SlotMap) ClearTransition(slot uint16) {
	sm.mu.Lock()
	sm.slots[slot].migrating = ""
	sm.slots[slot].importing = ""
	sm.mu.Unlock()
}

// Owner returns the owning node id and its client address.
func (sm *SlotMap) Owner(slot uint16) (string, string) {
	sm.mu.RLock()
	st := sm.slots[slot]
	sm.mu.RUnlock()
	return st.owner, st.addr
}

// Check validates a key set against the map from this node's perspective.
//
//   - keys in different slots: CROSSSLOT
//   - slot owned elsewhere: MOVED
//   - slot MIGRATING here, key absent, client sent ASKING: ASK redirect
//
// keyPresent reports whether every key is materialized locally; asking is the
// session's armed one-shot flag.
func (sm *SlotMap) Check(keys []string, keyPresent, asking bool) error {
	if len(keys) == 0 {
		return nil
	}
	slot := HashSlot(keys[0])
	for _, k := range keys[1:] {
		if HashSlot(k) != slot {
			return cmn.ErrCrossSlot
		}
	}
	sm.mu.RLock()
	st := sm.slots[slot]
	sm.mu.RUnlock()
	switch {
	case st.owner != sm.selfID && st.importing == "":
		return cmn.ErrMoved(slot, st.addr)
	case st.owner != sm.selfID && st.importing != "" && !asking:
		return cmn.ErrMoved(slot, st.addr)
	case st.migrating != "" && !keyPresent && asking:
		sm.mu.RLock()
		addr := sm.addrs[st.migrating]
		sm.mu.RUnlock()
		return cmn.ErrAsk(slot, addr)
	}
	return nil
}

// SlotsOwnedBy lists the slots a node currently owns.
func (sm *SlotMap) SlotsOwnedBy(nodeID string) []uint16 {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	var out []uint16
	for i := range sm.slots {
		if sm.slots[i].owner == nodeID {
			out = append(out, uint16(i))
		}
	}
	return out
}
