// Package cluster provides the cluster-command substrate: the slot ownership
// map, MOVED/ASK redirects, the internal peer client, and the reshard task.
/*
 * Copyright (c) 2024-2026, SpinelDB Authors. All rights reserved.
 */
package cluster

import (
	"context"
	"net"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const reshardBatch = 64

// ReshardSpec names one resharding job: move the given slots from this node
// to the destination node.
type ReshardSpec struct {
	Slots     []uint16
	DstID     string
	DstAddr   string
	TimeoutMs int64
}

// Reshard streams the named slots to the destination as a cancellation-aware
// background task. Per slot: set IMPORTING on the destination, set MIGRATING
// locally, move keys in batches, then broadcast the ownership change.
// Checkpointing is per slot; a cancelled run leaves completed slots owned by
// the destination and the in-flight slot re-runnable.
func Reshard(ctx context.Context, sm *SlotMap, spec ReshardSpec,
	localKeysInSlot func(slot uint16, count int) []string,
	migrateKey func(ctx context.Context, key, dstAddr string) error) error {

	dst, err := Dial(spec.DstAddr)
	if err != nil {
		return err
	}
	defer dst.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for _, slot := range spec.Slots {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := moveSlot(ctx, sm, dst, spec, slot, localKeysInSlot, migrateKey); err != nil {
				return errors.Wrapf(err, "reshard slot %d", slot)
			}
			log.Info().Uint16("slot", slot).Str("dst", spec.DstID).Msg("slot resharded")
		}
		return nil
	})
	return g.Wait()
}

func moveSlot(ctx context.Context, sm *SlotMap, dst *Client, spec ReshardSpec, slot uint16,
	localKeysInSlot func(slot uint16, count int) []string,
	migrateKey func(ctx context.Context, key, dstAddr string) error) error {

	if err := dst.SetSlot(slot, "IMPORTING", sm.SelfID()); err != nil {
		return err
	}
	sm.SetMigrating(slot, spec.DstID)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		keys := localKeysInSlot(slot, reshardBatch)
		if len(keys) == 0 {
			break
		}
		for _, key := range keys {
			if err := migrateKey(ctx, key, spec.DstAddr); err != nil {
				return errors.Wrapf(err, "migrate key %q", key)
			}
		}
	}

	// Ownership change: the destination first (it can serve immediately),
	// then the local map.
	if err := dst.SetSlot(slot, "NODE", spec.DstID); err != nil {
		return err
	}
	sm.AssignSlot(slot, spec.DstID)
	sm.ClearTransition(slot)
	return nil
}

// BusAddr computes the cluster bus address from a client address and the
// configured port offset.
func BusAddr(clientAddr string, offset int) (string, error) {
	host, portStr, err := net.SplitHostPort(clientAddr)
	if err != nil {
		return "", err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(port+offset)), nil
}
