// Package geyserpb is a minimal hand-written client for the subset of
// the Yellowstone Geyser gRPC slot-subscription surface scramjet
// needs: a bidi-streaming Subscribe call carrying only slot updates
// (see spec §4.2). Rather than depending on generated protoc-gen-go
// bindings for the full Geyser proto (accounts, transactions, blocks,
// entries — none of which scramjet consumes), this package registers
// a small JSON codec with grpc's public codec-extension API and
// drives the stream directly through grpc.ClientConn.NewStream. The
// wire format is a real gRPC stream; only the payload encoding
// differs from the upstream's protobuf messages.
package geyserpb

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const codecName = "scramjet-geyser-json"

const subscribeMethod = "/geyser.Geyser/Subscribe"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements grpc/encoding.Codec over encoding/json so the
// stream can be driven without a full protobuf-generated message set.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string { return codecName }

// SubscribeRequestFilterSlots mirrors the upstream filter message;
// scramjet only ever sends the zero value (no commitment filter).
type SubscribeRequestFilterSlots struct {
	FilterByCommitment *string `json:"filterByCommitment,omitempty"`
}

// SubscribeRequest is the minimal outbound subscribe message: a slot
// filter keyed by an arbitrary client-chosen label.
type SubscribeRequest struct {
	Slots map[string]SubscribeRequestFilterSlots `json:"slots"`
}

// SlotStatus mirrors the upstream enum; only Processed is consumed.
const SlotStatusProcessed = 0

// SlotUpdate is the slot-update payload of a SubscribeUpdate.
type SlotUpdate struct {
	Slot   uint64 `json:"slot"`
	Status int32  `json:"status"`
}

// SubscribeUpdate is the inbound stream message. Slot is nil for
// update kinds scramjet does not request (accounts, transactions,
// blocks) and therefore never receives.
type SubscribeUpdate struct {
	Slot *SlotUpdate `json:"slot,omitempty"`
}

// Stream is a bidi stream of SubscribeRequest/SubscribeUpdate.
type Stream struct {
	grpc.ClientStream
}

// Send submits a subscribe request (scramjet sends exactly one, at
// stream start).
func (s *Stream) Send(req *SubscribeRequest) error {
	return s.ClientStream.SendMsg(req)
}

// Recv blocks for the next update, returning io.EOF when the server
// closes the stream.
func (s *Stream) Recv() (*SubscribeUpdate, error) {
	var update SubscribeUpdate
	if err := s.ClientStream.RecvMsg(&update); err != nil {
		return nil, err
	}
	return &update, nil
}

// Client is a thin wrapper around a grpc.ClientConn for the Subscribe call.
type Client struct {
	cc *grpc.ClientConn
}

// NewClient wraps an established connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc}
}

// Subscribe opens the bidi Subscribe stream.
func (c *Client) Subscribe(ctx context.Context) (*Stream, error) {
	desc := &grpc.StreamDesc{
		StreamName:    "Subscribe",
		ServerStreams: true,
		ClientStreams: true,
	}
	clientStream, err := c.cc.NewStream(ctx, desc, subscribeMethod, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, fmt.Errorf("opening subscribe stream: %w", err)
	}
	return &Stream{ClientStream: clientStream}, nil
}
