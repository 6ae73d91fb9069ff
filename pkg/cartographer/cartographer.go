// Package cartographer maintains scramjet's view of cluster topology
// and the current epoch's leader schedule, and answers the routing
// question the transport layer depends on: which validator owns a
// given slot, and where does scramjet reach it (see spec §4.1).
package cartographer

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dotslashapaar/scramjet/pkg/blocklist"
	"github.com/dotslashapaar/scramjet/pkg/errs"
	"github.com/dotslashapaar/scramjet/pkg/log"
	"github.com/dotslashapaar/scramjet/pkg/metrics"
	"github.com/dotslashapaar/scramjet/pkg/rpcclient"
	"github.com/dotslashapaar/scramjet/pkg/types"

	"sync"
)

// Cartographer resolves slots to validator ingress addresses. Reads
// (the hot path, exercised by every transaction send) never block on
// writes: each internal map is entirely rebuilt off to the side and
// swapped in under a brief write lock.
type Cartographer struct {
	rpc       *rpcclient.Client
	blocklist *blocklist.Manager

	nodeMapMu sync.RWMutex
	nodeMap   map[types.ValidatorKey]types.IngressAddress

	scheduleMu sync.RWMutex
	schedule   map[uint64]types.ValidatorKey

	currentSlot  atomic.Uint64
	currentEpoch atomic.Uint64
}

// New creates a Cartographer backed by the given RPC client and blocklist.
func New(rpc *rpcclient.Client, bl *blocklist.Manager) *Cartographer {
	return &Cartographer{
		rpc:       rpc,
		blocklist: bl,
		nodeMap:   make(map[types.ValidatorKey]types.IngressAddress),
		schedule:  make(map[uint64]types.ValidatorKey),
	}
}

// GetKnownSlot returns the most recently observed slot (lock-free).
func (c *Cartographer) GetKnownSlot() uint64 {
	return c.currentSlot.Load()
}

// GetKnownEpoch returns the most recently observed epoch (lock-free).
func (c *Cartographer) GetKnownEpoch() uint64 {
	return c.currentEpoch.Load()
}

// UpdateSlot records a freshly observed slot.
func (c *Cartographer) UpdateSlot(slot uint64) {
	old := c.currentSlot.Swap(slot)
	if slot > old {
		log.Logger.Debug().Uint64("from", old).Uint64("to", slot).Msg("slot advanced")
	}
	metrics.KnownSlot.Set(float64(slot))
}

// GetTarget resolves the leader for slot to its ingress address. It
// returns an error (wrapping errs.NoLeaderFound) if there is no
// schedule entry, if the map has no known address for that leader, or
// if the leader is currently blocked.
func (c *Cartographer) GetTarget(slot uint64) (types.IngressAddress, error) {
	c.scheduleMu.RLock()
	leader, ok := c.schedule[slot]
	c.scheduleMu.RUnlock()
	if !ok {
		metrics.LeaderLookupTotal.WithLabelValues("miss").Inc()
		return types.IngressAddress{}, &errs.NoLeaderFound{Slot: slot}
	}

	if c.blocklist != nil && c.blocklist.IsBlocked(leader) {
		log.Logger.Debug().Stringer("leader", leader).Uint64("slot", slot).Msg("blocked leader for slot")
		metrics.LeaderLookupTotal.WithLabelValues("blocked").Inc()
		return types.IngressAddress{}, &errs.NoLeaderFound{Slot: slot}
	}

	c.nodeMapMu.RLock()
	addr, ok := c.nodeMap[leader]
	c.nodeMapMu.RUnlock()
	if !ok {
		metrics.LeaderLookupTotal.WithLabelValues("miss").Inc()
		return types.IngressAddress{}, &errs.NoLeaderFound{Slot: slot}
	}
	metrics.LeaderLookupTotal.WithLabelValues("hit").Inc()
	return addr, nil
}

// GetUpcomingLeaders returns deduplicated ingress addresses (in
// first-encounter order) for the next lookahead slots after current,
// excluding blocked validators and leaders with no known address.
func (c *Cartographer) GetUpcomingLeaders(current, lookahead uint64) []types.IngressAddress {
	c.scheduleMu.RLock()
	defer c.scheduleMu.RUnlock()
	c.nodeMapMu.RLock()
	defer c.nodeMapMu.RUnlock()

	seen := make(map[string]struct{})
	var targets []types.IngressAddress

	for i := uint64(1); i <= lookahead; i++ {
		leader, ok := c.schedule[current+i]
		if !ok {
			continue
		}
		if c.blocklist != nil && c.blocklist.IsBlocked(leader) {
			continue
		}
		addr, ok := c.nodeMap[leader]
		if !ok {
			continue
		}
		key := addr.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		targets = append(targets, addr)
	}
	return targets
}

// RefreshTopology fetches the cluster's node directory and rebuilds
// the validator-key-to-ingress-address map.
func (c *Cartographer) RefreshTopology(ctx context.Context) error {
	log.Logger.Info().Msg("refreshing cluster topology via RPC")

	nodes, err := c.rpc.GetClusterNodes(ctx)
	if err != nil {
		return fmt.Errorf("fetching cluster nodes: %w", err)
	}

	newMap := make(map[types.ValidatorKey]types.IngressAddress, len(nodes))
	for _, node := range nodes {
		if node.TPUQUIC == nil {
			continue
		}
		key, err := types.ParseValidatorKey(node.Pubkey)
		if err != nil {
			continue
		}
		addr, err := types.ParseIngressAddress(*node.TPUQUIC)
		if err != nil {
			continue
		}
		newMap[key] = addr
	}

	c.nodeMapMu.Lock()
	c.nodeMap = newMap
	c.nodeMapMu.Unlock()

	log.Logger.Info().Int("count", len(newMap)).Msg("topology updated")
	metrics.TopologyNodesKnown.Set(float64(len(newMap)))
	return nil
}

// UpdateSchedule refreshes the leader schedule for the current epoch,
// but only does the (relatively expensive) schedule fetch when the
// epoch has actually advanced since the last call, or on first run.
func (c *Cartographer) UpdateSchedule(ctx context.Context) error {
	epochInfo, err := c.rpc.GetEpochInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetching epoch info: %w", err)
	}

	storedEpoch := c.currentEpoch.Load()
	if epochInfo.Epoch <= storedEpoch && storedEpoch != 0 {
		return nil
	}

	log.Logger.Info().Uint64("epoch", epochInfo.Epoch).Msg("new epoch detected, fetching leader schedule")

	scheduleData, err := c.rpc.GetLeaderSchedule(ctx)
	if err != nil {
		return fmt.Errorf("fetching leader schedule: %w", err)
	}
	if len(scheduleData) == 0 {
		return &errs.ScheduleUnavailable{Epoch: epochInfo.Epoch}
	}

	startSlot := epochInfo.AbsoluteSlot - epochInfo.SlotIndex
	newSchedule := make(map[uint64]types.ValidatorKey)
	for pubkeyStr, relativeSlots := range scheduleData {
		key, err := types.ParseValidatorKey(pubkeyStr)
		if err != nil {
			continue
		}
		for _, rel := range relativeSlots {
			newSchedule[startSlot+rel] = key
		}
	}

	c.scheduleMu.Lock()
	c.schedule = newSchedule
	c.scheduleMu.Unlock()

	c.currentEpoch.Store(epochInfo.Epoch)
	metrics.KnownEpoch.Set(float64(epochInfo.Epoch))
	c.UpdateSlot(epochInfo.AbsoluteSlot)
	return nil
}

// FetchRPCSlot polls the current slot over RPC and records it. Used
// in polling mode, when no Geyser streaming feed is configured.
func (c *Cartographer) FetchRPCSlot(ctx context.Context) (uint64, error) {
	slot, err := c.rpc.GetSlot(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching slot: %w", err)
	}
	c.UpdateSlot(slot)
	return slot, nil
}
