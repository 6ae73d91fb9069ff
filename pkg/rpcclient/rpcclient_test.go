package rpcclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func jsonRPCServer(t *testing.T, result any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := rpcResponse{}
		raw, err := json.Marshal(result)
		if err != nil {
			t.Fatalf("marshal test result: %v", err)
		}
		resp.Result = raw
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode test response: %v", err)
		}
	}))
}

func TestGetSlot(t *testing.T) {
	server := jsonRPCServer(t, 12345)
	defer server.Close()

	client := New(server.URL)
	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot failed: %v", err)
	}
	if slot != 12345 {
		t.Errorf("unexpected slot: %d", slot)
	}
}

func TestGetEpochInfo(t *testing.T) {
	server := jsonRPCServer(t, EpochInfo{Epoch: 10, SlotIndex: 5, SlotsInEpoch: 432000, AbsoluteSlot: 4320005})
	defer server.Close()

	client := New(server.URL)
	info, err := client.GetEpochInfo(context.Background())
	if err != nil {
		t.Fatalf("GetEpochInfo failed: %v", err)
	}
	if info.Epoch != 10 || info.AbsoluteSlot != 4320005 {
		t.Errorf("unexpected epoch info: %+v", info)
	}
}

func TestGetLeaderSchedule(t *testing.T) {
	server := jsonRPCServer(t, map[string][]uint64{"validatorA": {0, 4, 8}})
	defer server.Close()

	client := New(server.URL)
	schedule, err := client.GetLeaderSchedule(context.Background())
	if err != nil {
		t.Fatalf("GetLeaderSchedule failed: %v", err)
	}
	if len(schedule["validatorA"]) != 3 {
		t.Errorf("unexpected schedule: %+v", schedule)
	}
}

func TestCallReturnsRpcError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rpcResponse{Error: &rpcError{Code: -32601, Message: "method not found"}})
	}))
	defer server.Close()

	client := New(server.URL)
	if _, err := client.GetSlot(context.Background()); err == nil {
		t.Fatal("expected error for rpc error response")
	}
}
