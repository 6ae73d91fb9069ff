package clock

import (
	"context"
	"time"

	"github.com/dotslashapaar/scramjet/pkg/cartographer"
	"github.com/dotslashapaar/scramjet/pkg/log"
	"github.com/dotslashapaar/scramjet/pkg/metrics"
)

// PollSource tracks slots by polling getSlot over plain RPC, used when
// no Geyser streaming endpoint is configured.
type PollSource struct {
	cartographer *cartographer.Cartographer
	interval     time.Duration
}

// NewPollSource returns a source that polls cg's RPC client every interval.
func NewPollSource(cg *cartographer.Cartographer, interval time.Duration) *PollSource {
	return &PollSource{cartographer: cg, interval: interval}
}

// Run polls until ctx is canceled. ready receives exactly one value:
// nil on the first successful poll, or the first poll's error if it
// fails. ready may be nil.
func (p *PollSource) Run(ctx context.Context, ready chan<- error) {
	first := true

	signal := func(err error) {
		if first {
			first = false
			if ready != nil {
				ready <- err
			}
		}
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	_, err := p.cartographer.FetchRPCSlot(ctx)
	if err != nil {
		log.Logger.Error().Err(err).Msg("initial slot poll failed")
	} else {
		metrics.SlotSourceConnected.WithLabelValues("poll").Set(1)
	}
	signal(err)

	for {
		select {
		case <-ctx.Done():
			metrics.SlotSourceConnected.WithLabelValues("poll").Set(0)
			return
		case <-ticker.C:
			if _, err := p.cartographer.FetchRPCSlot(ctx); err != nil {
				log.Logger.Warn().Err(err).Msg("slot poll failed")
				metrics.SlotSourceConnected.WithLabelValues("poll").Set(0)
				continue
			}
			metrics.SlotSourceConnected.WithLabelValues("poll").Set(1)
		}
	}
}
