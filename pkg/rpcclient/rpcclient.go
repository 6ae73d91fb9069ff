// Package rpcclient is a minimal JSON-RPC client over the Solana RPC
// methods scramjet needs to bootstrap and maintain its view of the
// cluster (see spec §4.1). Each call gets its own bounded context,
// mirroring the per-call timeout idiom used throughout the codebase's
// other network clients.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dotslashapaar/scramjet/pkg/errs"
)

const defaultTimeout = 10 * time.Second

// Client is a thin JSON-RPC 2.0 wrapper around a Solana RPC HTTP endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

// New creates a client pointed at url.
func New(url string) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	reqBody, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return &errs.RpcError{Method: method, Cause: fmt.Errorf("marshaling request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return &errs.RpcError{Method: method, Cause: fmt.Errorf("building request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &errs.RpcError{Method: method, Cause: err}
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return &errs.RpcError{Method: method, Cause: fmt.Errorf("decoding response: %w", err)}
	}
	if rpcResp.Error != nil {
		return &errs.RpcError{Method: method, Cause: fmt.Errorf("code %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return &errs.RpcError{Method: method, Cause: fmt.Errorf("unmarshaling result: %w", err)}
	}
	return nil
}

// ClusterNode is a single entry from getClusterNodes.
type ClusterNode struct {
	Pubkey string  `json:"pubkey"`
	TPU    *string `json:"tpu"`
	TPUQUIC *string `json:"tpuQuic"`
}

// GetClusterNodes returns the cluster's current node directory.
func (c *Client) GetClusterNodes(ctx context.Context) ([]ClusterNode, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var nodes []ClusterNode
	if err := c.call(ctx, "getClusterNodes", nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// EpochInfo is the result of getEpochInfo.
type EpochInfo struct {
	Epoch        uint64 `json:"epoch"`
	SlotIndex    uint64 `json:"slotIndex"`
	SlotsInEpoch uint64 `json:"slotsInEpoch"`
	AbsoluteSlot uint64 `json:"absoluteSlot"`
}

// GetEpochInfo returns the current epoch and slot position within it.
func (c *Client) GetEpochInfo(ctx context.Context) (*EpochInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var info EpochInfo
	if err := c.call(ctx, "getEpochInfo", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetLeaderSchedule returns the current epoch's leader schedule: a map
// from validator pubkey (base58) to the list of slot indices (relative
// to the epoch's start slot) assigned to it.
func (c *Client) GetLeaderSchedule(ctx context.Context) (map[string][]uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var schedule map[string][]uint64
	if err := c.call(ctx, "getLeaderSchedule", []any{nil}, &schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// GetSlot returns the cluster's current slot height.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var slot uint64
	if err := c.call(ctx, "getSlot", nil, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// LatestBlockhash is the result of getLatestBlockhash's value field.
type LatestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// GetLatestBlockhash returns the most recent blockhash usable for
// building a transaction.
func (c *Client) GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var wrapper struct {
		Value LatestBlockhash `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", nil, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Value, nil
}
