// Package clock supplies scramjet's view of "now" in slot terms: a
// streaming source (Yellowstone Geyser gRPC) when configured, or a
// polling source (plain RPC getSlot) otherwise (see spec §4.2).
package clock

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/dotslashapaar/scramjet/internal/geyserpb"
	"github.com/dotslashapaar/scramjet/pkg/cartographer"
	"github.com/dotslashapaar/scramjet/pkg/errs"
	"github.com/dotslashapaar/scramjet/pkg/log"
	"github.com/dotslashapaar/scramjet/pkg/metrics"
)

// StreamSource tracks slots via a Geyser gRPC subscription.
type StreamSource struct {
	endpoint     string
	token        string
	cartographer *cartographer.Cartographer
}

// tokenAuth injects an x-token header on every outbound RPC, mirroring
// the URL-path-embedded-token convention Geyser endpoints commonly use.
type tokenAuth struct {
	token string
}

func (t tokenAuth) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	if t.token == "" {
		return nil, nil
	}
	return map[string]string{"x-token": t.token}, nil
}

func (t tokenAuth) RequireTransportSecurity() bool { return true }

// NewStreamSource parses a Geyser endpoint, extracting an auth token
// embedded in the URL path if present (e.g. https://host/TOKEN), and
// returns a source bound to cg.
func NewStreamSource(rawEndpoint string, cg *cartographer.Cartographer) (*StreamSource, error) {
	endpoint, token, err := parseEndpoint(rawEndpoint)
	if err != nil {
		return nil, err
	}
	return &StreamSource{endpoint: endpoint, token: token, cartographer: cg}, nil
}

// parseEndpoint extracts a path-embedded auth token (when the URL
// path is longer than 10 characters) and returns the endpoint
// rewritten down to scheme + authority.
func parseEndpoint(raw string) (endpoint, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid geyser endpoint %q: %w", raw, err)
	}

	if len(u.Path) > 10 {
		log.Logger.Info().Msg("geyser: extracting auth token from URL path")
		token = strings.TrimPrefix(u.Path, "/")
		u.Path = ""
	}

	return u.Scheme + "://" + u.Host, token, nil
}

// Run connects and streams slot updates until ctx is canceled,
// reconnecting with exponential backoff on failure. ready receives
// exactly one value: nil on the first successful connection, or the
// error from the first connection attempt if it fails before any
// later attempt succeeds. ready may be nil.
func (s *StreamSource) Run(ctx context.Context, ready chan<- error, initialDelay, maxDelay time.Duration) {
	retryDelay := initialDelay
	first := true

	signal := func(err error) {
		if first {
			first = false
			if ready != nil {
				ready <- err
			}
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}

		err := s.connectAndTrack(ctx, func() { signal(nil) })
		if err != nil {
			signal(err)
		}

		if err != nil {
			log.Logger.Error().Err(err).Dur("retry_in", retryDelay).Msg("geyser stream error, reconnecting")
		} else {
			retryDelay = initialDelay
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}

		retryDelay *= 2
		if retryDelay > maxDelay {
			retryDelay = maxDelay
		}
	}
}

func (s *StreamSource) connectAndTrack(ctx context.Context, onActive func()) error {
	log.Logger.Info().Str("endpoint", s.endpoint).Msg("geyser: connecting")

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(credentials.NewTLS(nil)),
	}
	if s.token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(tokenAuth{token: s.token}))
	}

	conn, err := grpc.NewClient(s.endpoint, opts...)
	if err != nil {
		return &errs.StreamingError{Cause: fmt.Errorf("dialing geyser endpoint: %w", err)}
	}
	defer conn.Close()

	client := geyserpb.NewClient(conn)
	stream, err := client.Subscribe(ctx)
	if err != nil {
		return &errs.StreamingError{Cause: err}
	}

	log.Logger.Info().Msg("geyser: subscribing to slot updates")
	req := &geyserpb.SubscribeRequest{
		Slots: map[string]geyserpb.SubscribeRequestFilterSlots{
			"client": {},
		},
	}
	if err := stream.Send(req); err != nil {
		return &errs.StreamingError{Cause: fmt.Errorf("sending subscribe request: %w", err)}
	}

	log.Logger.Info().Msg("geyser: stream active")
	metrics.SlotSourceConnected.WithLabelValues("stream").Set(1)
	defer metrics.SlotSourceConnected.WithLabelValues("stream").Set(0)
	onActive()

	for {
		update, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &errs.StreamingError{Cause: err}
		}
		if update.Slot == nil {
			continue
		}
		if update.Slot.Status == geyserpb.SlotStatusProcessed {
			s.cartographer.UpdateSlot(update.Slot.Slot)
		}
	}
}
