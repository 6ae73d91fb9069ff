// Package scout keeps QUIC connections to upcoming slot leaders warm
// before any transaction needs to go out, trading idle handshake cost
// now for a hot connection on the send path later (see spec §4.4).
package scout

import (
	"context"
	"time"

	"github.com/dotslashapaar/scramjet/pkg/cartographer"
	"github.com/dotslashapaar/scramjet/pkg/log"
	"github.com/dotslashapaar/scramjet/pkg/metrics"
	"github.com/dotslashapaar/scramjet/pkg/transport"
)

// Scout periodically resolves the slots just ahead of the known
// current slot and prewarms a connection to each distinct leader.
type Scout struct {
	cartographer *cartographer.Cartographer
	engine       *transport.Engine
	interval     time.Duration
	lookahead    uint64
}

// New returns a scout bound to cg and engine, prewarming lookahead
// slots ahead of the current slot on each tick of interval.
func New(cg *cartographer.Cartographer, engine *transport.Engine, interval time.Duration, lookahead uint64) *Scout {
	return &Scout{
		cartographer: cg,
		engine:       engine,
		interval:     interval,
		lookahead:    lookahead,
	}
}

// Run ticks until ctx is canceled, prewarming connections on each tick.
func (s *Scout) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.prewarm(ctx)
		}
	}
}

func (s *Scout) prewarm(ctx context.Context) {
	slot := s.cartographer.GetKnownSlot()
	if slot == 0 {
		log.Logger.Debug().Msg("scout: no known slot yet, skipping prewarm")
		return
	}

	targets := s.cartographer.GetUpcomingLeaders(slot, s.lookahead)
	if len(targets) == 0 {
		return
	}

	warmed := 0
	for _, target := range targets {
		if _, err := s.engine.GetConnectionHandle(ctx, target); err != nil {
			log.Logger.Debug().Err(err).Stringer("target", target).Msg("scout: prewarm failed")
			continue
		}
		warmed++
	}

	if warmed > 0 {
		metrics.ScoutPrewarmedTotal.Add(float64(warmed))
		log.Logger.Debug().Int("count", warmed).Uint64("slot", slot).Msg("scout: prewarmed connections")
	}
}
